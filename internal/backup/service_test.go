package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tessary/coref/internal/storage/sqlite"
)

// newSessionsDB creates a real sessions database with one saved blob.
func newSessionsDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coref.db")
	store, err := sqlite.NewSessionStore(path)
	if err != nil {
		t.Fatalf("failed to create sessions database: %v", err)
	}
	defer store.Close()

	if err := store.Save(context.Background(), "s1", `{"version":1,"turn":3}`); err != nil {
		t.Fatalf("failed to seed session: %v", err)
	}
	return path
}

func TestSnapshotNow(t *testing.T) {
	dbPath := newSessionsDB(t)
	dir := t.TempDir()

	svc, err := NewService(Config{DBPath: dbPath, Dir: dir})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	path, err := svc.SnapshotNow()
	if err != nil {
		t.Fatalf("SnapshotNow failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("snapshot missing: %v", err)
	}
	if info.Size() == 0 {
		t.Error("expected a non-empty snapshot")
	}

	// The snapshot is itself a valid sessions database.
	restored, err := sqlite.NewSessionStore(path)
	if err != nil {
		t.Fatalf("failed to open snapshot as a store: %v", err)
	}
	defer restored.Close()

	blob, err := restored.Load(context.Background(), "s1")
	if err != nil {
		t.Fatalf("failed to load session from snapshot: %v", err)
	}
	if blob != `{"version":1,"turn":3}` {
		t.Errorf("unexpected blob in snapshot: %q", blob)
	}
}

func TestPruneKeepsNewest(t *testing.T) {
	dbPath := newSessionsDB(t)
	dir := t.TempDir()

	svc, err := NewService(Config{DBPath: dbPath, Dir: dir, Keep: 2})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	for i := 0; i < 4; i++ {
		if _, err := svc.SnapshotNow(); err != nil {
			t.Fatalf("snapshot %d failed: %v", i, err)
		}
		// Distinct mtimes so retention ordering is deterministic.
		time.Sleep(10 * time.Millisecond)
	}

	snapshots, err := svc.ListSnapshots()
	if err != nil {
		t.Fatalf("ListSnapshots failed: %v", err)
	}
	if len(snapshots) != 2 {
		t.Errorf("expected 2 retained snapshots, got %d", len(snapshots))
	}
}

func TestRestore(t *testing.T) {
	dbPath := newSessionsDB(t)
	dir := t.TempDir()

	svc, err := NewService(Config{DBPath: dbPath, Dir: dir})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	snapPath, err := svc.SnapshotNow()
	if err != nil {
		t.Fatalf("SnapshotNow failed: %v", err)
	}

	// Mutate the live database, then roll back to the snapshot.
	store, err := sqlite.NewSessionStore(dbPath)
	if err != nil {
		t.Fatalf("failed to reopen sessions database: %v", err)
	}
	if err := store.Save(context.Background(), "s1", "mutated"); err != nil {
		t.Fatalf("failed to mutate session: %v", err)
	}
	store.Close()

	if err := svc.Restore(snapPath); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	store, err = sqlite.NewSessionStore(dbPath)
	if err != nil {
		t.Fatalf("failed to open restored database: %v", err)
	}
	defer store.Close()
	blob, err := store.Load(context.Background(), "s1")
	if err != nil {
		t.Fatalf("failed to load restored session: %v", err)
	}
	if blob != `{"version":1,"turn":3}` {
		t.Errorf("expected pre-mutation blob after restore, got %q", blob)
	}
}

func TestNewServiceValidation(t *testing.T) {
	if _, err := NewService(Config{Dir: t.TempDir()}); err == nil {
		t.Error("expected an error without a database path")
	}
	if _, err := NewService(Config{DBPath: "x.db"}); err == nil {
		t.Error("expected an error without a snapshot directory")
	}
}
