package social

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celerix-dev/pawgram/internal/auth"
	"github.com/celerix-dev/pawgram/internal/engine"
	"github.com/celerix-dev/pawgram/pkg/schema"
)

const (
	pngData  = "data:image/png;base64,iVBORw0KGgo="
	jpegData = "data:image/jpeg;base64,/9j/4AAQSkZJRg=="
)

type fixture struct {
	clock    *testclock.Clock
	store    *engine.MemStore
	accounts *Accounts
	posts    *Posts
	profiles *Profiles
	auth     *AuthService
	tokens   *auth.Tokens
	ledger   *auth.Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := testclock.NewClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	store := engine.NewMemStore(nil, nil)
	accounts := NewAccounts(store, clk, "")
	posts := NewPosts(store, accounts, clk)

	tokens, err := auth.NewTokens([]byte("secret"), "pawgram", time.Hour, clk)
	require.NoError(t, err)
	ledger, err := auth.OpenLedger(filepath.Join(t.TempDir(), "sessions.db"), clk)
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	return &fixture{
		clock:    clk,
		store:    store,
		accounts: accounts,
		posts:    posts,
		profiles: NewProfiles(accounts, posts),
		auth:     NewAuthService(accounts, tokens, ledger),
		tokens:   tokens,
		ledger:   ledger,
	}
}

func (f *fixture) register(t *testing.T, username string) {
	t.Helper()
	require.NoError(t, f.auth.Register(username, "pw-"+username))
}

func (f *fixture) post(t *testing.T, author, caption string) schema.Post {
	t.Helper()
	post, err := f.posts.Create(author, schema.NewPost{Image: pngData, Caption: caption})
	require.NoError(t, err)
	return post
}

func TestRegister_DuplicateKeepsCredential(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.auth.Register("alice", "pw1"))

	err := f.auth.Register("alice", "other")
	assert.True(t, errors.Is(err, errors.AlreadyExists), "got %v", err)

	_, err = f.auth.Login(context.Background(), "alice", "pw1")
	assert.NoError(t, err, "first password must still work")
	_, err = f.auth.Login(context.Background(), "alice", "other")
	assert.True(t, errors.Is(err, errors.Unauthorized), "got %v", err)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)
	for _, username := range []string{"", "has space", "a/b", "posts", "profile", string(make([]byte, 65))} {
		err := f.auth.Register(username, "pw")
		assert.True(t, errors.Is(err, errors.NotValid), "username %q: %v", username, err)
	}
	err := f.auth.Register("bob", "")
	assert.True(t, errors.Is(err, errors.NotValid), "got %v", err)
}

func TestRegister_Defaults(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice")

	account, err := f.accounts.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, DefaultAvatar, account.ProfilePicture)
	assert.Equal(t, "", account.Bio)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice")

	_, err := f.auth.Login(ctx, "nobody", "pw")
	assert.True(t, errors.Is(err, errors.NotFound), "got %v", err)

	_, err = f.auth.Login(ctx, "alice", "wrong")
	assert.True(t, errors.Is(err, errors.Unauthorized), "got %v", err)

	resp, err := f.auth.Login(ctx, "alice", "pw-alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", resp.User.Username)

	claims, err := auth.NewVerifier(f.tokens, f.ledger).Verify(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
}

func TestLogout_RevokesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice")
	verifier := auth.NewVerifier(f.tokens, f.ledger)

	first, err := f.auth.Login(ctx, "alice", "pw-alice")
	require.NoError(t, err)
	second, err := f.auth.Login(ctx, "alice", "pw-alice")
	require.NoError(t, err)

	claims, err := verifier.Verify(ctx, first.Token)
	require.NoError(t, err)
	require.NoError(t, f.auth.Logout(ctx, claims, false))

	_, err = verifier.Verify(ctx, first.Token)
	assert.True(t, errors.Is(err, errors.Forbidden), "got %v", err)
	_, err = verifier.Verify(ctx, second.Token)
	assert.NoError(t, err)

	claims, err = verifier.Verify(ctx, second.Token)
	require.NoError(t, err)
	require.NoError(t, f.auth.Logout(ctx, claims, true))
	_, err = verifier.Verify(ctx, second.Token)
	assert.True(t, errors.Is(err, errors.Forbidden), "got %v", err)
}

func TestCreatePost_SnapshotsAuthor(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice")

	post := f.post(t, "alice", "hi")
	assert.NotEmpty(t, post.ID)
	assert.Equal(t, "alice", post.Username)
	assert.Equal(t, DefaultAvatar, post.ProfilePicture)
	assert.Equal(t, "hi", post.Caption)
	assert.Empty(t, post.Reactions)
	assert.NotNil(t, post.Reactions)
}

func TestCreatePost_Validation(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice")

	_, err := f.posts.Create("alice", schema.NewPost{Image: ""})
	assert.True(t, errors.Is(err, errors.NotValid), "got %v", err)

	_, err = f.posts.Create("alice", schema.NewPost{Image: "data:text/plain;base64,aGk="})
	assert.True(t, errors.Is(err, errors.NotValid), "got %v", err)

	_, err = f.posts.Create("ghost", schema.NewPost{Image: pngData})
	assert.True(t, errors.Is(err, errors.NotFound), "got %v", err)
}

func TestListPosts_NewestFirst(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice")
	f.register(t, "bob")

	p1 := f.post(t, "alice", "one")
	f.clock.Advance(time.Second)
	p2 := f.post(t, "bob", "two")
	// Same timestamp as p2: insertion order decides.
	p3 := f.post(t, "alice", "three")

	posts, err := f.posts.List()
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, []string{p3.ID, p2.ID, p1.ID}, []string{posts[0].ID, posts[1].ID, posts[2].ID})

	mine, err := f.posts.ListByAuthor("alice")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, p3.ID, mine[0].ID)
	assert.Equal(t, p1.ID, mine[1].ID)
}

func TestDeletePost_OnlyAuthor(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice")
	f.register(t, "bob")
	post := f.post(t, "alice", "mine")

	err := f.posts.Delete("bob", post.ID)
	assert.True(t, errors.Is(err, errors.Forbidden), "got %v", err)
	_, err = f.posts.Get(post.ID)
	assert.NoError(t, err, "post must survive a forbidden delete")

	require.NoError(t, f.posts.Delete("alice", post.ID))
	_, err = f.posts.Get(post.ID)
	assert.True(t, errors.Is(err, errors.NotFound), "got %v", err)

	err = f.posts.Delete("alice", post.ID)
	assert.True(t, errors.Is(err, errors.NotFound), "got %v", err)
}

func TestReact_ReplacesOwnReaction(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice")
	post := f.post(t, "alice", "hi")

	_, err := f.posts.React(post.ID, "alice", "❤️")
	require.NoError(t, err)
	updated, err := f.posts.React(post.ID, "alice", "🐾")
	require.NoError(t, err)

	assert.Equal(t, []schema.Reaction{{Username: "alice", Type: "🐾"}}, updated.Reactions)

	stored, err := f.posts.Get(post.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Reactions, stored.Reactions)
}

func TestReact_DistinctReactorsCoexist(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice")
	post := f.post(t, "alice", "hi")

	f.posts.React(post.ID, "alice", "❤️")
	f.posts.React(post.ID, "bob", "😊")
	updated, err := f.posts.React(post.ID, "alice", "🐾")
	require.NoError(t, err)

	assert.Equal(t, []schema.Reaction{
		{Username: "alice", Type: "🐾"},
		{Username: "bob", Type: "😊"},
	}, updated.Reactions)
}

func TestReact_Errors(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice")
	post := f.post(t, "alice", "hi")

	_, err := f.posts.React("missing", "alice", "")
	assert.True(t, errors.Is(err, errors.NotFound), "missing post wins over bad symbol: %v", err)

	_, err = f.posts.React(post.ID, "alice", "")
	assert.True(t, errors.Is(err, errors.NotValid), "got %v", err)

	_, err = f.posts.React(post.ID, "alice", string(make([]byte, MaxReactionLen+1)))
	assert.True(t, errors.Is(err, errors.NotValid), "got %v", err)

	stored, _ := f.posts.Get(post.ID)
	assert.Empty(t, stored.Reactions)
}

func TestReact_ConcurrentReactorsAreNotLost(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice")
	post := f.post(t, "alice", "hi")

	const reactors = 50
	var wg sync.WaitGroup
	for i := 0; i < reactors; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f.posts.React(post.ID, fmt.Sprintf("user%d", i), "🐾")
		}(i)
	}
	wg.Wait()

	stored, err := f.posts.Get(post.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Reactions, reactors)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice")

	account, err := f.profiles.Update("alice", schema.ProfileUpdate{Bio: "new bio"})
	require.NoError(t, err)
	assert.Equal(t, "new bio", account.Bio)
	assert.Equal(t, DefaultAvatar, account.ProfilePicture)

	// Empty values leave fields alone.
	account, err = f.profiles.Update("alice", schema.ProfileUpdate{})
	require.NoError(t, err)
	assert.Equal(t, "new bio", account.Bio)

	_, err = f.profiles.Update("alice", schema.ProfileUpdate{ProfilePicture: "not a picture"})
	assert.True(t, errors.Is(err, errors.NotValid), "got %v", err)

	_, err = f.profiles.Update("ghost", schema.ProfileUpdate{Bio: "x"})
	assert.True(t, errors.Is(err, errors.NotFound), "got %v", err)
}

func TestUpdateProfile_DoesNotRewriteOldPosts(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice")
	before := f.post(t, "alice", "before")

	_, err := f.profiles.Update("alice", schema.ProfileUpdate{ProfilePicture: jpegData, Bio: "new bio"})
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	after := f.post(t, "alice", "after")

	info, err := f.profiles.UserInfo("alice")
	require.NoError(t, err)
	assert.Equal(t, "new bio", info.User.Bio)
	assert.Equal(t, jpegData, info.User.ProfilePicture)
	require.Len(t, info.Posts, 2)
	assert.Equal(t, after.ID, info.Posts[0].ID)
	assert.Equal(t, jpegData, info.Posts[0].ProfilePicture)
	assert.Equal(t, before.ID, info.Posts[1].ID)
	assert.Equal(t, DefaultAvatar, info.Posts[1].ProfilePicture)
}

func TestUserInfo_Unknown(t *testing.T) {
	f := newFixture(t)
	_, err := f.profiles.UserInfo("nobody")
	assert.True(t, errors.Is(err, errors.NotFound), "got %v", err)
}

func TestValidImageRef(t *testing.T) {
	valid := []string{
		pngData,
		jpegData,
		"https://example.com/cat.png",
		"http://localhost:5000/dog.jpg",
		"data:image/png;charset=utf-8;base64,iVBORw0KGgo=",
		DefaultAvatar,
	}
	for _, s := range valid {
		assert.True(t, ValidImageRef(s), s)
	}

	invalid := []string{
		"",
		"cat.png",
		"ftp://example.com/cat.png",
		"data:image/png;base64,",
		"data:image/png;base64,@@@",
		"data:image/png,rawbytes",
		"data:text/html;base64,aGk=",
		"data:image/;base64,aGk=",
		"data:image/png;xbase64,AAAA",
		"data:image/png;base64x,AAAA",
		"javascript:alert(1)",
	}
	for _, s := range invalid {
		assert.False(t, ValidImageRef(s), s)
	}
}
