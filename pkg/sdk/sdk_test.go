package sdk_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celerix-dev/pawgram/internal/api"
	"github.com/celerix-dev/pawgram/internal/auth"
	"github.com/celerix-dev/pawgram/internal/engine"
	"github.com/celerix-dev/pawgram/internal/social"
	"github.com/celerix-dev/pawgram/pkg/schema"
	"github.com/celerix-dev/pawgram/pkg/sdk"
)

// pngHeader is enough for content sniffing to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR")

func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := engine.NewMemStore(nil, nil)
	tokens, err := auth.NewTokens([]byte("sdk-secret"), "pawgram", time.Hour, nil)
	require.NoError(t, err)
	ledger, err := auth.OpenLedger(filepath.Join(t.TempDir(), "sessions.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	accounts := social.NewAccounts(store, nil, "")
	posts := social.NewPosts(store, accounts, nil)
	h := &api.Handler{
		Auth:     social.NewAuthService(accounts, tokens, ledger),
		Posts:    posts,
		Profiles: social.NewProfiles(accounts, posts),
		Verifier: auth.NewVerifier(tokens, ledger),
	}
	srv := httptest.NewServer(api.NewRouter(h, api.Options{MaxBodyBytes: 1 << 20}))
	t.Cleanup(srv.Close)
	return srv
}

func loggedIn(t *testing.T, base, username string) *sdk.Client {
	t.Helper()
	ctx := context.Background()
	c := sdk.New(base)
	require.NoError(t, c.Register(ctx, username, "pw-"+username))
	_, err := c.Login(ctx, username, "pw-"+username)
	require.NoError(t, err)
	return c
}

func TestClientWorkflow(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()
	alice := loggedIn(t, srv.URL, "alice")
	assert.NotEmpty(t, alice.Token())

	image, err := sdk.EncodeImage(pngHeader)
	require.NoError(t, err)
	post, err := alice.CreatePost(ctx, schema.NewPost{Image: image, Caption: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "alice", post.Username)

	feed, err := alice.Posts(ctx)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "hi", feed[0].Caption)

	_, err = alice.React(ctx, post.ID, "❤️")
	require.NoError(t, err)
	reacted, err := alice.React(ctx, post.ID, "🐾")
	require.NoError(t, err)
	assert.Equal(t, []schema.Reaction{{Username: "alice", Type: "🐾"}}, reacted.Reactions)

	account, err := alice.UpdateProfile(ctx, schema.ProfileUpdate{Bio: "new bio"})
	require.NoError(t, err)
	assert.Equal(t, "new bio", account.Bio)

	info, err := alice.User(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "new bio", info.User.Bio)
	assert.Len(t, info.Posts, 1)

	mine, err := alice.MyPosts(ctx)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	require.NoError(t, alice.DeletePost(ctx, post.ID))
	feed, err = alice.Posts(ctx)
	require.NoError(t, err)
	assert.Empty(t, feed)
}

func TestClientErrors(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()
	alice := loggedIn(t, srv.URL, "alice")
	bob := loggedIn(t, srv.URL, "bob")

	image, _ := sdk.EncodeImage(pngHeader)
	post, err := alice.CreatePost(ctx, schema.NewPost{Image: image})
	require.NoError(t, err)

	err = bob.DeletePost(ctx, post.ID)
	assert.True(t, errors.Is(err, errors.Forbidden), "got %v", err)
	var apiErr *sdk.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "you can only delete your own posts", apiErr.Message)

	_, err = bob.User(ctx, "nobody")
	assert.True(t, errors.Is(err, errors.NotFound), "got %v", err)

	err = sdk.New(srv.URL).Register(ctx, "alice", "again")
	assert.True(t, errors.Is(err, errors.BadRequest), "got %v", err)

	_, err = sdk.New(srv.URL).Posts(ctx)
	assert.True(t, errors.Is(err, errors.Unauthorized), "got %v", err)

	_, err = sdk.New(srv.URL, sdk.WithToken("garbage")).Posts(ctx)
	assert.True(t, errors.Is(err, errors.Forbidden), "got %v", err)
}

func TestClientLogout(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()
	alice := loggedIn(t, srv.URL, "alice")
	token := alice.Token()

	require.NoError(t, alice.Logout(ctx, false))
	assert.Empty(t, alice.Token())

	_, err := sdk.New(srv.URL, sdk.WithToken(token)).Posts(ctx)
	assert.True(t, errors.Is(err, errors.Forbidden), "revoked token: %v", err)
}

func TestClientConfig(t *testing.T) {
	srv := startServer(t)
	cfg, err := sdk.New(srv.URL).Config(context.Background())
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/api", cfg.APIURL)
}

func TestClientRetriesGetOnTransportError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			conn, _, err := w.(http.Hijacker).Hijack()
			if err == nil {
				conn.Close()
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	posts, err := sdk.New(srv.URL, sdk.WithToken("t")).Posts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientDoesNotRetryWrites(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			conn.Close()
		}
	}))
	defer srv.Close()

	_, err := sdk.New(srv.URL, sdk.WithToken("t")).CreatePost(context.Background(), schema.NewPost{Image: "x"})
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestEncodeImage(t *testing.T) {
	uri, err := sdk.EncodeImage(pngHeader)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"), uri)

	_, err = sdk.EncodeImage([]byte("just some text"))
	assert.True(t, errors.Is(err, errors.NotValid), "got %v", err)

	_, err = sdk.EncodeImageFile(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestFromEnv(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/api/posts", r.URL.Path)
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	t.Setenv("PAWGRAM_ADDR", srv.URL+"/")
	t.Setenv("PAWGRAM_TOKEN", "from-env")
	t.Setenv("PAWGRAM_INSECURE_TLS", "")

	_, err := sdk.FromEnv().Posts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer from-env", gotAuth)
}
