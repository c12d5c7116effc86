package social

import (
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/errors"

	"github.com/celerix-dev/pawgram/internal/engine"
	"github.com/celerix-dev/pawgram/internal/metrics"
	"github.com/celerix-dev/pawgram/pkg/schema"
)

// MaxReactionLen bounds the size of a reaction symbol in bytes.
const MaxReactionLen = 64

// Posts is the post store plus its authorization rules.
type Posts struct {
	store    engine.DocStore
	accounts *Accounts
	clock    clock.Clock
}

// NewPosts returns a post store.
func NewPosts(store engine.DocStore, accounts *Accounts, clk clock.Clock) *Posts {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Posts{store: store, accounts: accounts, clock: clk}
}

// Create publishes a post for author. The author's current username and
// avatar are copied into the post and never refreshed afterwards.
func (p *Posts) Create(author string, req schema.NewPost) (schema.Post, error) {
	account, err := p.accounts.Get(author)
	if err != nil {
		return schema.Post{}, err
	}
	image := strings.TrimSpace(req.Image)
	if image == "" || !ValidImageRef(image) {
		return schema.Post{}, errors.NotValidf("image")
	}

	post := schema.Post{
		ID:             uuid.NewString(),
		Username:       account.Username,
		ProfilePicture: account.ProfilePicture,
		Image:          image,
		Caption:        req.Caption,
		Reactions:      []schema.Reaction{},
		CreatedAt:      p.clock.Now().UTC(),
	}
	if err := engine.Insert(p.store, engine.Posts, post.ID, post); err != nil {
		return schema.Post{}, errors.Trace(err)
	}
	metrics.RecordPostCreated()
	logger.WithField("user", author).WithField("post", post.ID).Info("post created")
	return post, nil
}

// List returns every post, newest first.
func (p *Posts) List() ([]schema.Post, error) {
	return p.list(func(schema.Post) bool { return true })
}

// ListByAuthor returns username's posts, newest first.
func (p *Posts) ListByAuthor(username string) ([]schema.Post, error) {
	return p.list(func(post schema.Post) bool { return post.Username == username })
}

func (p *Posts) list(keep func(schema.Post) bool) ([]schema.Post, error) {
	all, err := engine.List[schema.Post](p.store, engine.Posts)
	if err != nil {
		return nil, errors.Trace(err)
	}
	posts := make([]schema.Post, 0, len(all))
	for _, post := range all {
		if keep(post) {
			posts = append(posts, normalize(post))
		}
	}
	// Insertion order reversed, then a stable sort, so equal timestamps
	// still list the most recently stored post first.
	slices.Reverse(posts)
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts, nil
}

// Get returns a single post.
func (p *Posts) Get(id string) (schema.Post, error) {
	post, err := engine.Get[schema.Post](p.store, engine.Posts, id)
	if errors.Is(err, errors.NotFound) {
		return schema.Post{}, errors.NotFoundf("post %q", id)
	}
	if err != nil {
		return schema.Post{}, errors.Trace(err)
	}
	return normalize(post), nil
}

// Delete removes a post. Only its author may do so.
func (p *Posts) Delete(requester, id string) error {
	post, err := p.Get(id)
	if err != nil {
		return err
	}
	if post.Username != requester {
		return errors.Forbiddenf("you can only delete your own posts")
	}
	err = p.store.Delete(engine.Posts, id)
	if errors.Is(err, errors.NotFound) {
		return errors.NotFoundf("post %q", id)
	}
	if err != nil {
		return errors.Trace(err)
	}
	logger.WithField("user", requester).WithField("post", id).Info("post deleted")
	return nil
}

// React sets reactor's reaction on a post, replacing any earlier reaction
// from the same user. The lookup, upsert and write happen as one store update.
func (p *Posts) React(id, reactor, symbol string) (schema.Post, error) {
	replaced := false
	post, err := engine.Update(p.store, engine.Posts, id, func(post *schema.Post) error {
		if symbol == "" || len(symbol) > MaxReactionLen {
			return errors.NotValidf("reaction type")
		}
		replaced = upsertReaction(post, reactor, symbol)
		return nil
	})
	if errors.Is(err, errors.NotFound) {
		return schema.Post{}, errors.NotFoundf("post %q", id)
	}
	if err != nil {
		return schema.Post{}, err
	}
	metrics.RecordReaction(replaced)
	logger.WithField("user", reactor).WithField("post", id).WithField("replaced", replaced).Debug("reaction stored")
	return normalize(post), nil
}

// upsertReaction replaces reactor's entry in place or appends a new one.
// It reports whether an existing entry was replaced.
func upsertReaction(post *schema.Post, reactor, symbol string) bool {
	for i := range post.Reactions {
		if post.Reactions[i].Username == reactor {
			post.Reactions[i].Type = symbol
			return true
		}
	}
	post.Reactions = append(post.Reactions, schema.Reaction{Username: reactor, Type: symbol})
	return false
}

func normalize(post schema.Post) schema.Post {
	if post.Reactions == nil {
		post.Reactions = []schema.Reaction{}
	}
	return post
}
