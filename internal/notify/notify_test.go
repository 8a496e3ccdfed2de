package notify

import (
	"testing"
	"time"
)

func TestWriterThenWatcherDrainsExisting(t *testing.T) {
	dir := t.TempDir()

	writer := NewEventWriter(dir)
	if err := writer.Notify("turn_processed", "session-1", 3); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	received := make(chan Event, 4)
	watcher := NewEventWatcher(dir, func(e Event) { received <- e })
	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer watcher.Stop()

	select {
	case e := <-received:
		if e.Type != "turn_processed" || e.SessionID != "session-1" || e.Turn != 3 {
			t.Errorf("unexpected event: %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for drained event")
	}
}

func TestWatcherPicksUpNewEvents(t *testing.T) {
	dir := t.TempDir()

	received := make(chan Event, 4)
	watcher := NewEventWatcher(dir, func(e Event) { received <- e })
	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer watcher.Stop()

	writer := NewEventWriter(dir)
	if err := writer.Notify("turn_processed", "session-2", 7); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	select {
	case e := <-received:
		if e.SessionID != "session-2" || e.Turn != 7 {
			t.Errorf("unexpected event: %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watched event")
	}
}

func TestWriterSanitizesSessionID(t *testing.T) {
	dir := t.TempDir()

	writer := NewEventWriter(dir)
	if err := writer.Notify("turn_processed", "a/b:c", 1); err != nil {
		t.Fatalf("Notify with unsafe characters failed: %v", err)
	}

	received := make(chan Event, 1)
	watcher := NewEventWatcher(dir, func(e Event) { received <- e })
	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer watcher.Stop()

	select {
	case e := <-received:
		if e.SessionID != "a/b:c" {
			t.Errorf("expected the payload ID untouched, got %q", e.SessionID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}
