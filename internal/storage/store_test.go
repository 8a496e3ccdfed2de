package storage

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Load(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for a missing session, got %v", err)
	}

	if err := store.Save(ctx, "s1", `{"version":1,"turn":2}`); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	blob, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if blob != `{"version":1,"turn":2}` {
		t.Errorf("unexpected blob: %q", blob)
	}

	// Upsert semantics.
	if err := store.Save(ctx, "s1", `{"version":1,"turn":3}`); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}
	blob, _ = store.Load(ctx, "s1")
	if blob != `{"version":1,"turn":3}` {
		t.Errorf("expected overwrite, got %q", blob)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_ = store.Save(ctx, "s1", "blob")
	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Load(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// Deleting an unknown session is not an error.
	if err := store.Delete(ctx, "never-existed"); err != nil {
		t.Errorf("expected nil for unknown delete, got %v", err)
	}
}

func TestMemoryStoreRejectsEmptyID(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Load(ctx, ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Load: expected ErrInvalidInput, got %v", err)
	}
	if err := store.Save(ctx, "", "blob"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Save: expected ErrInvalidInput, got %v", err)
	}
	if err := store.Delete(ctx, ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Delete: expected ErrInvalidInput, got %v", err)
	}
}
