// Package session orchestrates the per-turn conversation protocol: load
// the serialized metadata blob, rehydrate the store, process the exchange,
// and persist the new blob. Each HTTP request is stateless; this package is
// what makes a conversation look continuous.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tessary/coref/internal/metadata"
	"github.com/tessary/coref/internal/storage"
)

// Config holds session manager configuration.
type Config struct {
	// CacheSize is the number of hydrated stores kept in the LRU cache
	// (default: 256).
	CacheSize int

	// SummaryEntities bounds the "Recently Mentioned" section of context
	// summaries (default: 5).
	SummaryEntities int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CacheSize:       256,
		SummaryEntities: 5,
	}
}

// Manager owns the extractor, the blob store, and an LRU cache of hydrated
// metadata stores. The cache is an optimization only: a cache miss is
// always recoverable from the blob store, and a corrupted blob degrades to
// an empty store via the codec contract.
//
// The surrounding HTTP layer guarantees at most one in-flight turn per
// session; the manager still guards its cache with a mutex since different
// sessions are served concurrently.
type Manager struct {
	store     storage.SessionStore
	extractor metadata.Extractor
	cache     *lru.Cache[string, *metadata.Store]
	mu        sync.Mutex
	cfg       Config
}

// TurnResult is the outcome of processing one conversational exchange.
type TurnResult struct {
	// SessionID identifies the conversation (minted if it was empty).
	SessionID string `json:"session_id"`

	// Turn is the conversation's turn counter after the exchange.
	Turn int `json:"turn"`

	// Summary is the context digest to inject into the next LLM prompt.
	Summary string `json:"summary"`

	// Resolution grounds the user's reference phrase, when one matched.
	Resolution *metadata.Resolution `json:"resolution,omitempty"`
}

// NewManager creates a session manager.
func NewManager(store storage.SessionStore, ex metadata.Extractor, cfg Config) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session: blob store is required")
	}
	if cfg.CacheSize < 1 {
		cfg.CacheSize = DefaultConfig().CacheSize
	}
	if cfg.SummaryEntities < 1 {
		cfg.SummaryEntities = DefaultConfig().SummaryEntities
	}

	cache, err := lru.New[string, *metadata.Store](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("session: failed to create cache: %w", err)
	}

	return &Manager{
		store:     store,
		extractor: ex,
		cache:     cache,
		cfg:       cfg,
	}, nil
}

// NewSessionID mints a fresh session identifier.
func (m *Manager) NewSessionID() string {
	return uuid.NewString()
}

// ProcessTurn runs one full exchange for the session and persists the
// updated metadata blob. An empty sessionID starts a new conversation with
// a minted ID.
func (m *Manager) ProcessTurn(ctx context.Context, sessionID, userMsg, aiMsg string) (*TurnResult, error) {
	if sessionID == "" {
		sessionID = m.NewSessionID()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	store, err := m.hydrate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	res := store.ProcessTurn(userMsg, aiMsg, m.extractor)

	if err := m.store.Save(ctx, sessionID, store.Marshal()); err != nil {
		return nil, fmt.Errorf("session: failed to persist session %s: %w", sessionID, err)
	}

	return &TurnResult{
		SessionID:  sessionID,
		Turn:       store.CurrentTurn(),
		Summary:    store.ContextSummary(),
		Resolution: res,
	}, nil
}

// Resolve grounds a reference phrase against the session's current state
// without advancing the turn. A nil resolution with a nil error means the
// phrase did not match anything.
func (m *Manager) Resolve(ctx context.Context, sessionID, text string) (*metadata.Resolution, error) {
	if sessionID == "" {
		return nil, storage.ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	store, err := m.hydrate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return store.ResolveReference(text), nil
}

// Summary returns the session's current context digest.
func (m *Manager) Summary(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", storage.ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	store, err := m.hydrate(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return store.ContextSummary(), nil
}

// Turn returns the session's current turn counter.
func (m *Manager) Turn(ctx context.Context, sessionID string) (int, error) {
	if sessionID == "" {
		return 0, storage.ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	store, err := m.hydrate(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return store.CurrentTurn(), nil
}

// Reset drops the session's memory: the cached store and the persisted
// blob. The next turn starts from an empty store at turn 0.
func (m *Manager) Reset(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return storage.ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache.Remove(sessionID)
	if err := m.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("session: failed to reset session %s: %w", sessionID, err)
	}
	return nil
}

// hydrate returns the session's metadata store, from cache when possible,
// otherwise rehydrated from the blob store. A missing blob yields a fresh
// store; a corrupted blob degrades to an empty one via the codec.
func (m *Manager) hydrate(ctx context.Context, sessionID string) (*metadata.Store, error) {
	if store, ok := m.cache.Get(sessionID); ok {
		return store, nil
	}

	var store *metadata.Store
	blob, err := m.store.Load(ctx, sessionID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		store = metadata.NewStore()
	case err != nil:
		return nil, fmt.Errorf("session: failed to load session %s: %w", sessionID, err)
	default:
		store = metadata.Unmarshal(blob)
		if store.CurrentTurn() == 0 && blob != "" && blob != store.Marshal() {
			log.Printf("session: discarded unreadable blob for session %s", sessionID)
		}
	}

	store.SetSummaryLimit(m.cfg.SummaryEntities)
	m.cache.Add(sessionID, store)
	return store, nil
}
