package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tessary/coref/internal/extractor"
	"github.com/tessary/coref/internal/storage"
)

func newTestManager(t *testing.T) (*Manager, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	mgr, err := NewManager(store, extractor.New(), DefaultConfig())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return mgr, store
}

func TestProcessTurnMintsSessionID(t *testing.T) {
	mgr, _ := newTestManager(t)

	result, err := mgr.ProcessTurn(context.Background(), "", "hello", "hi there")
	if err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}
	if result.SessionID == "" {
		t.Error("expected a minted session ID")
	}
	if result.Turn != 1 {
		t.Errorf("expected turn 1, got %d", result.Turn)
	}
}

func TestProcessTurnPersistsAcrossRequests(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	first, err := mgr.ProcessTurn(ctx, "", "Show me hydraulic pumps",
		"1. [ZF4 Hydraulic Pump](https://shop.example/zf4) - $1,299.99\n"+
			"2. [ZF5 Hydraulic Pump](https://shop.example/zf5) - $1,499.99")
	if err != nil {
		t.Fatalf("turn 1 failed: %v", err)
	}

	second, err := mgr.ProcessTurn(ctx, first.SessionID, "Tell me more about item 2",
		"The ZF5 is our heavy-duty model.")
	if err != nil {
		t.Fatalf("turn 2 failed: %v", err)
	}
	if second.Turn != 2 {
		t.Errorf("expected turn 2, got %d", second.Turn)
	}
	if second.Resolution == nil || second.Resolution.Value != "ZF5 Hydraulic Pump" {
		t.Errorf("expected item 2 to resolve to ZF5, got %+v", second.Resolution)
	}
	if !strings.Contains(second.Summary, "Active Numbered List:") {
		t.Errorf("expected the list in the summary:\n%s", second.Summary)
	}
}

func TestProcessTurnSurvivesCacheEviction(t *testing.T) {
	store := storage.NewMemoryStore()
	mgr, err := NewManager(store, extractor.New(), Config{CacheSize: 1, SummaryEntities: 5})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	ctx := context.Background()

	a, _ := mgr.ProcessTurn(ctx, "", "hello from a", "hi a")
	if _, err := mgr.ProcessTurn(ctx, "", "hello from b", "hi b"); err != nil {
		t.Fatalf("second session failed: %v", err)
	}

	// Session a was evicted from the size-1 cache; rehydrate from the blob.
	turn, err := mgr.Turn(ctx, a.SessionID)
	if err != nil {
		t.Fatalf("Turn failed: %v", err)
	}
	if turn != 1 {
		t.Errorf("expected rehydrated turn 1, got %d", turn)
	}
}

func TestFullConversationScenario(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	r1, err := mgr.ProcessTurn(ctx, "", "Show me hydraulic pumps",
		"Here are our top options:\n"+
			"1. [ZF4 Hydraulic Pump](https://shop.example/zf4) - $1,299.99\n"+
			"2. [ZF5 Hydraulic Pump](https://shop.example/zf5) - $1,499.99")
	if err != nil {
		t.Fatalf("turn 1 failed: %v", err)
	}
	sid := r1.SessionID

	r2, err := mgr.ProcessTurn(ctx, sid, "Tell me more about item 2", "Happy to help with the ZF5.")
	if err != nil {
		t.Fatalf("turn 2 failed: %v", err)
	}
	if r2.Resolution == nil || r2.Resolution.Value != "ZF5 Hydraulic Pump" {
		t.Fatalf("expected item 2 -> ZF5, got %+v", r2.Resolution)
	}

	r3, err := mgr.ProcessTurn(ctx, sid, "Sorry, I meant the ZF4 not the ZF5", "No problem, the ZF4 it is.")
	if err != nil {
		t.Fatalf("turn 3 failed: %v", err)
	}
	if r3.Resolution != nil {
		t.Errorf("expected no resolution on the correction turn, got %+v", r3.Resolution)
	}
	if !strings.Contains(r3.Summary, "User corrected: ZF5 → ZF4") {
		t.Errorf("expected the correction in the summary:\n%s", r3.Summary)
	}

	r4, err := mgr.ProcessTurn(ctx, sid, "What is the price of it?", "The ZF4 is $1,299.99.")
	if err != nil {
		t.Fatalf("turn 4 failed: %v", err)
	}
	if r4.Resolution == nil || r4.Resolution.Value != "ZF4" {
		t.Errorf(`expected "it" to follow the correction to ZF4, got %+v`, r4.Resolution)
	}
	if r4.Turn != 4 {
		t.Errorf("expected turn 4, got %d", r4.Turn)
	}
}

func TestResolveDoesNotAdvanceTurn(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	r, _ := mgr.ProcessTurn(ctx, "", "Show me pumps", "1. ZF4 Pump\n2. ZF5 Pump")

	res, err := mgr.Resolve(ctx, r.SessionID, "item 1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res == nil || res.Value != "ZF4 Pump" {
		t.Errorf("unexpected resolution: %+v", res)
	}

	turn, _ := mgr.Turn(ctx, r.SessionID)
	if turn != 1 {
		t.Errorf("Resolve must not advance the turn, got %d", turn)
	}
}

func TestResolveUnknownSessionIsFresh(t *testing.T) {
	mgr, _ := newTestManager(t)

	res, err := mgr.Resolve(context.Background(), "never-seen", "item 1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res != nil {
		t.Errorf("expected nil resolution for a fresh session, got %+v", res)
	}
}

func TestEmptySessionIDRejected(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := mgr.Resolve(ctx, "", "it"); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := mgr.Summary(ctx, ""); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if err := mgr.Reset(ctx, ""); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestResetDropsMemory(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	r, _ := mgr.ProcessTurn(ctx, "", "Show me pumps", "1. ZF4 Pump\n2. ZF5 Pump")

	if err := mgr.Reset(ctx, r.SessionID); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	turn, err := mgr.Turn(ctx, r.SessionID)
	if err != nil {
		t.Fatalf("Turn after reset failed: %v", err)
	}
	if turn != 0 {
		t.Errorf("expected turn 0 after reset, got %d", turn)
	}
}

func TestCorruptedBlobDegradesToFreshSession(t *testing.T) {
	mgr, store := newTestManager(t)
	ctx := context.Background()

	if err := store.Save(ctx, "damaged", "corrupted-data"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	summary, err := mgr.Summary(ctx, "damaged")
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if summary != "" {
		t.Errorf("expected empty summary from corrupted blob, got %q", summary)
	}

	result, err := mgr.ProcessTurn(ctx, "damaged", "hello", "hi")
	if err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}
	if result.Turn != 1 {
		t.Errorf("expected a fresh session at turn 1, got %d", result.Turn)
	}
}

func TestNewManagerRequiresStore(t *testing.T) {
	if _, err := NewManager(nil, extractor.New(), DefaultConfig()); err == nil {
		t.Error("expected an error for a nil store")
	}
}
