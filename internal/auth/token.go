// Package auth issues and verifies Pawgram session tokens.
//
// A session token is an HS256 JWT whose only application claim is the
// username. Tokens expire after a configured TTL and every issued token is
// recorded in a Ledger so it can be revoked before it expires.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/errors"
)

// Claims is the payload of a session token.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Tokens signs and parses session tokens with a shared secret.
type Tokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
	clock  clock.Clock
}

// NewTokens returns a token signer. The secret must not be empty.
func NewTokens(secret []byte, issuer string, ttl time.Duration, clk clock.Clock) (*Tokens, error) {
	if len(secret) == 0 {
		return nil, errors.NotValidf("empty signing secret")
	}
	if ttl <= 0 {
		return nil, errors.NotValidf("token ttl %v", ttl)
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &Tokens{secret: secret, issuer: issuer, ttl: ttl, clock: clk}, nil
}

// Issue signs a new token for username.
func (t *Tokens) Issue(username string) (string, *Claims, error) {
	now := t.clock.Now()
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", nil, errors.Annotate(err, "signing token")
	}
	return signed, claims, nil
}

// Parse checks the signature, issuer and expiry of a token. Any failure is
// reported as Forbidden.
func (t *Tokens) Parse(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.clock.Now),
	)
	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.Forbiddenf("invalid token")
	}
	if claims.Username == "" || claims.ID == "" {
		return nil, errors.Forbiddenf("invalid token")
	}
	return claims, nil
}
