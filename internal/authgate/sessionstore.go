package authgate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/cloo-solutions/kbcore/internal/domain"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	token_jti TEXT NOT NULL UNIQUE,
	client_name TEXT NOT NULL,
	scopes TEXT NOT NULL,
	issued_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL,
	disabled INTEGER NOT NULL DEFAULT 0
);
`

// SessionStore persists bearer-token sessions in a single-file embedded
// relational store, per spec.md §6's "metadata store for sessions and
// traces (single-file embedded relational store acceptable)".
type SessionStore struct {
	db *sql.DB
}

// OpenSessionStore opens (creating if necessary) a sqlite-backed
// SessionStore at path. An empty path opens an in-memory store, useful for
// tests and single-process deployments that don't need durability.
func OpenSessionStore(path string) (*SessionStore, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init session schema: %w", err)
	}
	return &SessionStore{db: db}, nil
}

func (s *SessionStore) Close() error {
	return s.db.Close()
}

// Create persists a newly issued session.
func (s *SessionStore) Create(ctx context.Context, sess *domain.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, token_jti, client_name, scopes, issued_at, expires_at, disabled) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.TokenJTI, sess.ClientName, strings.Join(sess.Scopes, ","), sess.IssuedAt, sess.ExpiresAt, boolToInt(sess.Disabled),
	)
	return err
}

// GetByJTI looks up a session by its token's jti claim.
func (s *SessionStore) GetByJTI(ctx context.Context, jti string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, token_jti, client_name, scopes, issued_at, expires_at, disabled FROM sessions WHERE token_jti = ?`, jti)

	var sess domain.Session
	var scopesCSV string
	var disabled int
	if err := row.Scan(&sess.ID, &sess.TokenJTI, &sess.ClientName, &scopesCSV, &sess.IssuedAt, &sess.ExpiresAt, &disabled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInvalidCredential
		}
		return nil, err
	}
	sess.Disabled = disabled != 0
	if scopesCSV != "" {
		sess.Scopes = strings.Split(scopesCSV, ",")
	}
	return &sess, nil
}

// Disable marks a session disabled without removing its row, preserving it
// for trace/audit correlation.
func (s *SessionStore) Disable(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET disabled = 1 WHERE id = ?`, id)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
