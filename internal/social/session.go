package social

import (
	"context"

	"github.com/juju/errors"

	"github.com/celerix-dev/pawgram/internal/auth"
	"github.com/celerix-dev/pawgram/internal/metrics"
	"github.com/celerix-dev/pawgram/pkg/schema"
)

// SessionLedger stores issued sessions so they can be revoked.
type SessionLedger interface {
	Record(ctx context.Context, claims *auth.Claims) error
	Revoke(ctx context.Context, id string) error
	RevokeAll(ctx context.Context, username string) (int64, error)
}

// AuthService registers accounts and opens and closes sessions.
type AuthService struct {
	accounts *Accounts
	tokens   *auth.Tokens
	ledger   SessionLedger
}

// NewAuthService returns an AuthService. ledger may be nil, in which case
// sessions cannot be revoked.
func NewAuthService(accounts *Accounts, tokens *auth.Tokens, ledger SessionLedger) *AuthService {
	return &AuthService{accounts: accounts, tokens: tokens, ledger: ledger}
}

// Register creates an account. It does not log the user in.
func (s *AuthService) Register(username, password string) error {
	if err := s.accounts.Create(username, password); err != nil {
		return err
	}
	logger.WithField("user", username).Info("account registered")
	return nil
}

// Login verifies credentials and issues a session token.
func (s *AuthService) Login(ctx context.Context, username, password string) (schema.LoginResponse, error) {
	account, err := s.accounts.Authenticate(username, password)
	if err != nil {
		metrics.RecordLogin(false)
		return schema.LoginResponse{}, err
	}

	token, claims, err := s.tokens.Issue(account.Username)
	if err != nil {
		return schema.LoginResponse{}, errors.Trace(err)
	}
	if s.ledger != nil {
		if err := s.ledger.Record(ctx, claims); err != nil {
			return schema.LoginResponse{}, errors.Trace(err)
		}
	}
	metrics.RecordLogin(true)
	logger.WithField("user", account.Username).Info("session opened")
	return schema.LoginResponse{Token: token, User: account}, nil
}

// Logout revokes the session behind claims, or every session of its user
// when all is set.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims, all bool) error {
	if s.ledger == nil {
		return errors.NotSupportedf("session revocation")
	}
	if all {
		n, err := s.ledger.RevokeAll(ctx, claims.Username)
		if err != nil {
			return errors.Trace(err)
		}
		logger.WithField("user", claims.Username).WithField("sessions", n).Info("all sessions revoked")
		return nil
	}
	if err := s.ledger.Revoke(ctx, claims.ID); err != nil {
		return errors.Trace(err)
	}
	logger.WithField("user", claims.Username).Info("session revoked")
	return nil
}
