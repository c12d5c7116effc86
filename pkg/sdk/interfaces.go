package sdk

import (
	"context"
	"fmt"
	"net/http"

	"github.com/juju/errors"

	"github.com/celerix-dev/pawgram/pkg/schema"
)

// APIError is a non-2xx response from the server. It matches the juju/errors
// kind corresponding to its status, so callers can use errors.Is(err, errors.NotFound).
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pawgram: %d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
}

// Is reports whether target is the error kind matching e's status.
func (e *APIError) Is(target error) bool {
	switch target {
	case errors.NotFound:
		return e.Status == http.StatusNotFound
	case errors.Forbidden:
		return e.Status == http.StatusForbidden
	case errors.Unauthorized:
		return e.Status == http.StatusUnauthorized
	case errors.BadRequest, errors.NotValid:
		return e.Status == http.StatusBadRequest
	case errors.NotSupported:
		return e.Status == http.StatusNotImplemented
	}
	return false
}

// --- Functional Interfaces ---

// Authenticator opens and closes sessions.
type Authenticator interface {
	Register(ctx context.Context, username, password string) error
	Login(ctx context.Context, username, password string) (schema.LoginResponse, error)
	Logout(ctx context.Context, all bool) error
}

// FeedReader reads posts and profiles.
type FeedReader interface {
	Posts(ctx context.Context) ([]schema.Post, error)
	MyPosts(ctx context.Context) ([]schema.Post, error)
	User(ctx context.Context, username string) (schema.UserInfo, error)
}

// FeedWriter publishes, removes and reacts to posts.
type FeedWriter interface {
	CreatePost(ctx context.Context, post schema.NewPost) (schema.Post, error)
	DeletePost(ctx context.Context, id string) error
	React(ctx context.Context, id, reaction string) (schema.Post, error)
}

// ProfileEditor edits the logged-in user's profile.
type ProfileEditor interface {
	UpdateProfile(ctx context.Context, upd schema.ProfileUpdate) (schema.Account, error)
}

// Pawgram is the complete API surface.
type Pawgram interface {
	Authenticator
	FeedReader
	FeedWriter
	ProfileEditor
}

var _ Pawgram = (*Client)(nil)
