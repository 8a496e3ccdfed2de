// Package sqlite implements the session blob store on SQLite via the pure
// Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/tessary/coref/internal/storage"
)

// schema creates the sessions table. The blob column holds the serialized
// conversation metadata produced by the metadata codec.
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	blob       TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SessionStore implements storage.SessionStore using SQLite.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore opens (or creates) the SQLite database at dsn and ensures
// the schema exists.
func NewSessionStore(dsn string) (*SessionStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open connection
	// serialises writes and avoids SQLITE_BUSY errors under concurrent
	// load; WAL mode lets readers proceed without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to create schema: %w", err)
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
		"SELECT blob FROM sessions WHERE id = ?", sessionID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("sqlite: failed to load session %s: %w", sessionID, err)
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
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			blob = excluded.blob,
			updated_at = CURRENT_TIMESTAMP
	`, sessionID, blob)
	if err != nil {
		return fmt.Errorf("sqlite: failed to save session %s: %w", sessionID, err)
	}
	return nil
}

// Delete implements storage.SessionStore.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return storage.ErrInvalidInput
	}

	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE id = ?", sessionID); err != nil {
		return fmt.Errorf("sqlite: failed to delete session %s: %w", sessionID, err)
	}
	return nil
}

// Close implements storage.SessionStore.
func (s *SessionStore) Close() error {
	return s.db.Close()
}
