// Package notify provides cross-process turn-event notification through
// filesystem events. A producer process (an importer, a sibling server
// instance) drops an event file into {dataPath}/events/; the serving
// process picks it up and forwards it to its dashboard listeners.
package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Event is the payload written to an event file.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Turn      int    `json:"turn"`
	Time      int64  `json:"time"`
}

// EventWriter writes notification event files to a shared directory.
type EventWriter struct {
	dir string
}

// NewEventWriter creates a writer that emits events to {dataPath}/events/.
func NewEventWriter(dataPath string) *EventWriter {
	return &EventWriter{dir: filepath.Join(dataPath, "events")}
}

// Notify writes an event file for a processed turn.
// Safe to call concurrently. Errors are returned but not fatal.
func (w *EventWriter) Notify(eventType, sessionID string, turn int) error {
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return fmt.Errorf("notify: mkdir %s: %w", w.dir, err)
	}
	evt := Event{
		Type:      eventType,
		SessionID: sessionID,
		Turn:      turn,
		Time:      time.Now().UnixNano(),
	}
	data, _ := json.Marshal(evt)
	filename := fmt.Sprintf("%d-%s.event", evt.Time, sanitizeID(sessionID))
	return os.WriteFile(filepath.Join(w.dir, filename), data, 0o600)
}

// sanitizeID replaces characters unsafe for filenames.
func sanitizeID(id string) string {
	out := make([]byte, len(id))
	for i := 0; i < len(id); i++ {
		if id[i] == '/' || id[i] == ':' {
			out[i] = '_'
		} else {
			out[i] = id[i]
		}
	}
	return string(out)
}
