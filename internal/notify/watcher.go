package notify

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// EventWatcher consumes event files from the shared events directory and
// dispatches them to a callback. Consuming removes the file, so at most
// one watching process sees each event.
type EventWatcher struct {
	dir      string
	callback func(Event)
	fsw      *fsnotify.Watcher
	done     chan struct{}
}

// NewEventWatcher creates a watcher for {dataPath}/events/.
func NewEventWatcher(dataPath string, callback func(Event)) *EventWatcher {
	return &EventWatcher{
		dir:      filepath.Join(dataPath, "events"),
		callback: callback,
		done:     make(chan struct{}),
	}
}

// Start registers the filesystem watch and begins consuming. The watch is
// in place before the initial sweep, so events written in between are not
// lost. Call Stop to clean up.
func (ew *EventWatcher) Start() error {
	if err := os.MkdirAll(ew.dir, 0o700); err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(ew.dir); err != nil {
		_ = fsw.Close()
		return err
	}
	ew.fsw = fsw

	go ew.run()
	log.Printf("notify: watching %s for turn events", ew.dir)
	return nil
}

// Stop shuts down the watcher and waits for the consume loop to exit.
func (ew *EventWatcher) Stop() {
	if ew.fsw != nil {
		_ = ew.fsw.Close()
	}
	<-ew.done
}

func (ew *EventWatcher) run() {
	defer close(ew.done)

	ew.sweep()

	for {
		select {
		case evt, ok := <-ew.fsw.Events:
			if !ok {
				return
			}
			if evt.Op.Has(fsnotify.Create) && filepath.Ext(evt.Name) == ".event" {
				ew.consume(evt.Name)
			}
		case err, ok := <-ew.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("notify: watcher error: %v", err)
		}
	}
}

// sweep consumes event files that were written before the watch started.
func (ew *EventWatcher) sweep() {
	entries, err := os.ReadDir(ew.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".event" {
			continue
		}
		ew.consume(filepath.Join(ew.dir, entry.Name()))
	}
}

// consume reads, removes, and dispatches one event file. A read failure
// means a sibling process got there first; both the sweep and the watch
// loop can race for the same file.
func (ew *EventWatcher) consume(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	_ = os.Remove(path)

	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		log.Printf("notify: discarding malformed event file %s: %v", filepath.Base(path), err)
		return
	}
	if event.SessionID == "" || ew.callback == nil {
		return
	}
	ew.callback(event)
}
