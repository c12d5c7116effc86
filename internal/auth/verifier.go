package auth

import (
	"context"
	"strings"

	"github.com/juju/errors"
)

// SessionChecker reports whether a session id is still live.
type SessionChecker interface {
	Check(ctx context.Context, id string) error
}

// Verifier validates bearer tokens on protected requests.
type Verifier struct {
	tokens   *Tokens
	sessions SessionChecker
}

// NewVerifier returns a Verifier. sessions may be nil, in which case only
// the signature and expiry are checked.
func NewVerifier(tokens *Tokens, sessions SessionChecker) *Verifier {
	return &Verifier{tokens: tokens, sessions: sessions}
}

// BearerToken extracts the token from an Authorization header value.
// It returns "" when the header is absent or not a bearer credential.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Verify returns the claims of a valid token. A missing token is
// Unauthorized; an invalid, expired or revoked one is Forbidden.
func (v *Verifier) Verify(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, errors.Unauthorizedf("access token required")
	}
	claims, err := v.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	if v.sessions != nil {
		if err := v.sessions.Check(ctx, claims.ID); err != nil {
			if errors.Is(err, errors.Forbidden) {
				return nil, errors.Forbiddenf("invalid token")
			}
			return nil, errors.Trace(err)
		}
	}
	return claims, nil
}
