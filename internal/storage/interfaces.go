// Package storage defines the session blob store interface and an
// in-memory implementation. The conversation engine is stateless between
// HTTP requests; everything it remembers about a session travels through
// one opaque string blob stored against the session ID.
package storage

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrNotFound indicates that no blob is stored for the session.
	ErrNotFound = errors.New("session not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// SessionStore persists serialized conversation metadata blobs keyed by
// session ID. The blob is opaque to the store; corruption handling lives in
// the metadata codec, not here.
type SessionStore interface {
	// Load returns the blob stored for the session.
	// Returns ErrNotFound when the session has no stored blob.
	Load(ctx context.Context, sessionID string) (string, error)

	// Save stores the blob for the session (upsert semantics).
	Save(ctx context.Context, sessionID, blob string) error

	// Delete removes the session's blob. Deleting an unknown session is
	// not an error.
	Delete(ctx context.Context, sessionID string) error

	// Close releases any resources held by the store.
	Close() error
}

// MemoryStore is an in-process SessionStore used in tests and for the
// "memory" storage engine.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]string
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]string)}
}

// Load implements SessionStore.
func (m *MemoryStore) Load(_ context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", ErrInvalidInput
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.blobs[sessionID]
	if !ok {
		return "", ErrNotFound
	}
	return blob, nil
}

// Save implements SessionStore.
func (m *MemoryStore) Save(_ context.Context, sessionID, blob string) error {
	if sessionID == "" {
		return ErrInvalidInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[sessionID] = blob
	return nil
}

// Delete implements SessionStore.
func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrInvalidInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, sessionID)
	return nil
}

// Close implements SessionStore.
func (m *MemoryStore) Close() error {
	return nil
}
