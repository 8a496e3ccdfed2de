// Package postgres implements the session blob store on PostgreSQL via
// lib/pq. Deployments that already run Postgres for the surrounding
// application can keep session blobs next to the rest of their data.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/tessary/coref/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	blob       TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SessionStore implements storage.SessionStore using PostgreSQL.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore connects to the database at dsn, verifies the connection,
// and ensures the schema exists.
func NewSessionStore(dsn string) (*SessionStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to connect: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to create schema: %w", err)
	}

	return &SessionStore{db: db}, nil
}

// Load implements storage.SessionStore.
func (s *SessionStore) Load(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", storage.ErrInvalidInput
	}

	var blob string
	err := s.db.QueryRowContext(ctx,
		"SELECT blob FROM sessions WHERE id = $1", sessionID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("postgres: failed to load session %s: %w", sessionID, err)
	}
	return blob, nil
}

// Save implements storage.SessionStore.
func (s *SessionStore) Save(ctx context.Context, sessionID, blob string) error {
	if sessionID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, blob, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			blob = excluded.blob,
			updated_at = CURRENT_TIMESTAMP
	`, sessionID, blob)
	if err != nil {
		return fmt.Errorf("postgres: failed to save session %s: %w", sessionID, err)
	}
	return nil
}

// Delete implements storage.SessionStore.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return storage.ErrInvalidInput
	}

	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE id = $1", sessionID); err != nil {
		return fmt.Errorf("postgres: failed to delete session %s: %w", sessionID, err)
	}
	return nil
}

// Close implements storage.SessionStore.
func (s *SessionStore) Close() error {
	return s.db.Close()
}
