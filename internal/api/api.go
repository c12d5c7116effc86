// Package api serves the Pawgram REST interface over gin.
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/juju/errors"
	"github.com/sirupsen/logrus"

	"github.com/celerix-dev/pawgram/internal/auth"
	"github.com/celerix-dev/pawgram/internal/social"
	"github.com/celerix-dev/pawgram/pkg/schema"
)

var logger = logrus.WithField("component", "api")

const claimsKey = "pawgram.claims"

// Handler binds the social services to HTTP routes.
type Handler struct {
	Auth     *social.AuthService
	Posts    *social.Posts
	Profiles *social.Profiles
	Verifier *auth.Verifier
	Client   schema.ClientConfig
}

// Register creates an account.
func (h *Handler) Register(c *gin.Context) {
	var creds schema.Credentials
	if !bindCredentials(c, &creds) {
		return
	}
	if err := h.Auth.Register(creds.Username, creds.Password); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, schema.Message{Message: "User registered successfully"})
}

// Login exchanges credentials for a session token. Unknown users and wrong
// passwords are both reported as 400.
func (h *Handler) Login(c *gin.Context) {
	var creds schema.Credentials
	if !bindCredentials(c, &creds) {
		return
	}
	resp, err := h.Auth.Login(c.Request.Context(), creds.Username, creds.Password)
	if errors.Is(err, errors.NotFound) || errors.Is(err, errors.Unauthorized) {
		respond(c, http.StatusBadRequest, publicMessage(err))
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Logout revokes the caller's token, or all of the caller's sessions with ?all=true.
func (h *Handler) Logout(c *gin.Context) {
	all := c.Query("all") == "true"
	if err := h.Auth.Logout(c.Request.Context(), claims(c), all); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, schema.Message{Message: "Logged out"})
}

// Config returns settings the browser client needs before it can call the API.
func (h *Handler) Config(c *gin.Context) {
	cfg := h.Client
	if cfg.APIURL == "" {
		cfg.APIURL = requestOrigin(c) + "/api"
	}
	c.JSON(http.StatusOK, cfg)
}

// ListPosts returns the feed, newest first.
func (h *Handler) ListPosts(c *gin.Context) {
	posts, err := h.Posts.List()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

// CreatePost publishes a post as the caller.
func (h *Handler) CreatePost(c *gin.Context) {
	var req schema.NewPost
	if !bindJSON(c, &req) {
		return
	}
	post, err := h.Posts.Create(claims(c).Username, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

// DeletePost removes one of the caller's posts.
func (h *Handler) DeletePost(c *gin.Context) {
	if err := h.Posts.Delete(claims(c).Username, c.Param("postId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, schema.Message{Message: "Post deleted successfully"})
}

// reactionBody is the wire form of schema.ReactionRequest. Type stays raw so
// a wrongly typed symbol reaches the service, which looks the post up first.
type reactionBody struct {
	Type json.RawMessage `json:"type"`
}

// symbol returns the reaction as a string, or "" when it is not a JSON string.
func (b reactionBody) symbol() string {
	var s string
	if json.Unmarshal(b.Type, &s) != nil {
		return ""
	}
	return s
}

// React sets the caller's reaction on a post.
func (h *Handler) React(c *gin.Context) {
	var req reactionBody
	if !bindJSON(c, &req) {
		return
	}
	post, err := h.Posts.React(c.Param("postId"), claims(c).Username, req.symbol())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, schema.ReactionResponse{Message: "Reaction updated", Post: post})
}

// MyPosts returns the caller's own posts.
func (h *Handler) MyPosts(c *gin.Context) {
	posts, err := h.Posts.ListByAuthor(claims(c).Username)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

// UserInfo returns a user's public profile and posts.
func (h *Handler) UserInfo(c *gin.Context) {
	info, err := h.Profiles.UserInfo(c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// UpdateProfile edits the caller's avatar and bio.
func (h *Handler) UpdateProfile(c *gin.Context) {
	var upd schema.ProfileUpdate
	if !bindJSON(c, &upd) {
		return
	}
	account, err := h.Profiles.Update(claims(c).Username, upd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// token's claims on the context.
func (h *Handler) RequireAuth(c *gin.Context) {
	token := auth.BearerToken(c.GetHeader("Authorization"))
	cl, err := h.Verifier.Verify(c.Request.Context(), token)
	if err != nil {
		respondError(c, err)
		c.Abort()
		return
	}
	c.Set(claimsKey, cl)
	c.Next()
}

func claims(c *gin.Context) *auth.Claims {
	return c.MustGet(claimsKey).(*auth.Claims)
}

func bindCredentials(c *gin.Context, creds *schema.Credentials) bool {
	if err := c.ShouldBindJSON(creds); err != nil {
		if tooLarge(err) {
			respond(c, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		respond(c, http.StatusBadRequest, "username and password are required")
		return false
	}
	return true
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		if tooLarge(err) {
			respond(c, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		respond(c, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errors.NotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.Forbidden):
		return http.StatusForbidden
	case errors.Is(err, errors.Unauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errors.AlreadyExists), errors.Is(err, errors.NotValid):
		return http.StatusBadRequest
	case errors.Is(err, errors.NotSupported):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// sentenceKinds carry complete sentences ("invalid password"), so their kind
// suffix is dropped from the public message. The status code conveys it.
var sentenceKinds = []error{errors.Forbidden, errors.Unauthorized}

func publicMessage(err error) string {
	msg := err.Error()
	for _, kind := range sentenceKinds {
		if errors.Is(err, kind) {
			if trimmed := strings.TrimSuffix(msg, " "+kind.Error()); trimmed != "" {
				return trimmed
			}
		}
	}
	return msg
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.WithField("path", c.Request.URL.Path).Error(errors.ErrorStack(err))
		respond(c, status, "internal server error")
		return
	}
	respond(c, status, publicMessage(err))
}

func respond(c *gin.Context, status int, msg string) {
	c.JSON(status, schema.ErrorResponse{Error: msg})
}

func requestOrigin(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}
