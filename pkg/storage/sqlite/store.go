// Package sqlite persists bearer tokens in a SQLite database so that
// several tap processes on one host share a token.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/saturnines/ants-tap/pkg/auth"
)

// Store keeps one token row per account.
type Store struct {
	db      *sql.DB
	account string
	now     func() time.Time
}

var _ auth.TokenStore = (*Store)(nil)

// Account identifies the credentials a token belongs to.
func Account(username, apiURL string) string {
	return username + "@" + apiURL
}

// New opens (creating if needed) the database at dbPath and scopes the
// store to account.
func New(dbPath, account string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &Store{db: db, account: account, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// migrate creates the database schema
func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tap_tokens (
			account TEXT PRIMARY KEY,
			access_token TEXT NOT NULL,
			expires_at TEXT,
			updated_at TEXT NOT NULL
		);
	`)
	return err
}

// Load returns the account's token. A row without a readable expiry counts
// as no token.
func (s *Store) Load(ctx context.Context) (auth.Token, bool, error) {
	var (
		value     string
		expiresAt sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT access_token, expires_at FROM tap_tokens WHERE account = ?`, s.account,
	).Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return auth.Token{}, false, nil
	}
	if err != nil {
		return auth.Token{}, false, err
	}
	if !expiresAt.Valid {
		return auth.Token{}, false, nil
	}
	exp, err := time.Parse(time.RFC3339Nano, expiresAt.String)
	if err != nil {
		return auth.Token{}, false, nil
	}
	return auth.Token{Value: value, ExpiresAt: exp}, true, nil
}

// Save inserts or replaces the account's token.
func (s *Store) Save(ctx context.Context, tok auth.Token) error {
	var expiresAt sql.NullString
	if !tok.ExpiresAt.IsZero() {
		expiresAt = sql.NullString{String: tok.ExpiresAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tap_tokens (account, access_token, expires_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account) DO UPDATE SET
			access_token = excluded.access_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`, s.account, tok.Value, expiresAt, s.now().UTC().Format(time.RFC3339Nano))
	return err
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
