// Package sdk is a Go client for the Pawgram HTTP API.
package sdk

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"

	"github.com/celerix-dev/pawgram/pkg/schema"
)

var logger = logrus.WithField("component", "sdk")

const getAttempts = 3

// Client talks to a Pawgram server. It is safe for concurrent use.
type Client struct {
	base string
	http *http.Client

	mu    sync.RWMutex // protects token
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken starts the client with an existing session token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithInsecureTLS accepts any server certificate, for daemons running
// with a self-signed certificate.
func WithInsecureTLS() Option {
	return func(c *Client) {
		c.http = &http.Client{
			Timeout: c.http.Timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		}
	}
}

// New returns a client for the server at baseURL, e.g. "http://localhost:5000".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/") + "/api",
		http: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the current session token, if any.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the session token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Register(ctx context.Context, username, password string) error {
	creds := schema.Credentials{Username: username, Password: password}
	return c.do(ctx, http.MethodPost, "/register", creds, nil)
}

// Login authenticates and keeps the returned token for later calls.
func (c *Client) Login(ctx context.Context, username, password string) (schema.LoginResponse, error) {
	var resp schema.LoginResponse
	creds := schema.Credentials{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, "/login", creds, &resp); err != nil {
		return schema.LoginResponse{}, err
	}
	c.SetToken(resp.Token)
	return resp, nil
}

// Logout revokes the current session, or every session of the user when all
// is set, and forgets the token.
func (c *Client) Logout(ctx context.Context, all bool) error {
	path := "/logout"
	if all {
		path += "?all=true"
	}
	if err := c.do(ctx, http.MethodPost, path, nil, nil); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

func (c *Client) Config(ctx context.Context) (schema.ClientConfig, error) {
	var cfg schema.ClientConfig
	err := c.do(ctx, http.MethodGet, "/config", nil, &cfg)
	return cfg, err
}

func (c *Client) Posts(ctx context.Context) ([]schema.Post, error) {
	var posts []schema.Post
	err := c.do(ctx, http.MethodGet, "/posts", nil, &posts)
	return posts, err
}

func (c *Client) MyPosts(ctx context.Context) ([]schema.Post, error) {
	var posts []schema.Post
	err := c.do(ctx, http.MethodGet, "/users/posts", nil, &posts)
	return posts, err
}

func (c *Client) User(ctx context.Context, username string) (schema.UserInfo, error) {
	var info schema.UserInfo
	err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(username), nil, &info)
	return info, err
}

func (c *Client) CreatePost(ctx context.Context, post schema.NewPost) (schema.Post, error) {
	var created schema.Post
	err := c.do(ctx, http.MethodPost, "/posts", post, &created)
	return created, err
}

func (c *Client) DeletePost(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/posts/"+url.PathEscape(id), nil, nil)
}

func (c *Client) React(ctx context.Context, id, reaction string) (schema.Post, error) {
	var resp schema.ReactionResponse
	path := "/posts/" + url.PathEscape(id) + "/reactions"
	if err := c.do(ctx, http.MethodPost, path, schema.ReactionRequest{Type: reaction}, &resp); err != nil {
		return schema.Post{}, err
	}
	return resp.Post, nil
}

func (c *Client) UpdateProfile(ctx context.Context, upd schema.ProfileUpdate) (schema.Account, error) {
	var account schema.Account
	err := c.do(ctx, http.MethodPut, "/users/profile", upd, &account)
	return account, err
}

// do sends one API request. GET requests are retried with backoff when the
// transport fails; anything that reached the server is never retried.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return errors.Annotate(err, "encode request")
		}
	}

	attempts := 1
	if method == http.MethodGet {
		attempts = getAttempts
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return errors.Trace(ctx.Err())
			case <-time.After(time.Duration(i*200) * time.Millisecond):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(payload))
		if err != nil {
			return errors.Trace(err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token := c.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			logger.WithField("attempt", i+1).Debugf("%s %s failed: %v", method, path, err)
			continue
		}
		return decodeResponse(resp, out)
	}
	return errors.Annotatef(lastErr, "%s %s", method, path)
}

func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		var body schema.ErrorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &body) == nil && body.Error != "" {
			apiErr.Message = body.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Annotate(err, "decode response")
	}
	return nil
}
