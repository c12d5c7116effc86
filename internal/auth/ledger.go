package auth

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/juju/clock"
	"github.com/juju/errors"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaFS embed.FS

// Ledger records issued sessions in SQLite so tokens can be revoked.
type Ledger struct {
	db    *sql.DB
	clock clock.Clock
}

// OpenLedger opens (creating if needed) the SQLite session ledger at path.
func OpenLedger(path string, clk clock.Clock) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Trace(err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, errors.Annotate(err, "migrating session ledger")
	}
	return NewLedger(db, clk), nil
}

// NewLedger wraps an already migrated database.
func NewLedger(db *sql.DB, clk clock.Clock) *Ledger {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Ledger{db: db, clock: clk}
}

func migrate(db *sql.DB) error {
	sqlBytes, err := fs.ReadFile(schemaFS, "schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(string(sqlBytes))
	return err
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record stores a freshly issued session.
func (l *Ledger) Record(ctx context.Context, claims *Claims) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO sessions (id, username, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		claims.ID, claims.Username, l.clock.Now().UTC(), claims.ExpiresAt.Time.UTC())
	return errors.Annotate(err, "recording session")
}

// Check returns Forbidden if the session is unknown, revoked or expired.
func (l *Ledger) Check(ctx context.Context, id string) error {
	row := l.db.QueryRowContext(ctx, `SELECT expires_at, revoked_at FROM sessions WHERE id = ?`, id)
	var (
		expires sql.NullTime
		revoked sql.NullTime
	)
	err := row.Scan(&expires, &revoked)
	if err == sql.ErrNoRows {
		return errors.Forbiddenf("unknown session")
	}
	if err != nil {
		return errors.Annotate(err, "checking session")
	}
	if revoked.Valid {
		return errors.Forbiddenf("session revoked")
	}
	if !expires.Valid || !l.clock.Now().Before(expires.Time) {
		return errors.Forbiddenf("session expired")
	}
	return nil
}

// Revoke marks a session as revoked. Revoking twice is not an error.
func (l *Ledger) Revoke(ctx context.Context, id string) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = COALESCE(revoked_at, ?) WHERE id = ?`,
		l.clock.Now().UTC(), id)
	if err != nil {
		return errors.Annotate(err, "revoking session")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Trace(err)
	}
	if n == 0 {
		return errors.NotFoundf("session %q", id)
	}
	return nil
}

// RevokeAll revokes every live session of username.
func (l *Ledger) RevokeAll(ctx context.Context, username string) (int64, error) {
	res, err := l.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = ? WHERE username = ? AND revoked_at IS NULL`,
		l.clock.Now().UTC(), username)
	if err != nil {
		return 0, errors.Annotate(err, "revoking sessions")
	}
	return res.RowsAffected()
}

// Purge deletes sessions that expired before now.
func (l *Ledger) Purge(ctx context.Context) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, l.clock.Now().UTC())
	if err != nil {
		return 0, errors.Annotate(err, "purging sessions")
	}
	return res.RowsAffected()
}
