// Package notify carries graph change events between processes through
// event files in a shared directory. Import jobs write them and running
// servers watch the directory to invalidate cached paths.
package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Event types.
const (
	// EventGraphUpdated reports a bulk change such as an import run.
	EventGraphUpdated = "graph_updated"

	// EventPersonUpdated reports a change to one person or their edges.
	EventPersonUpdated = "person_updated"
)

// eventExt marks files the watcher consumes.
const eventExt = ".event"

// Event is the payload written to an event file.
type Event struct {
	Type     string `json:"type"`
	PersonID string `json:"person_id,omitempty"`
	Time     int64  `json:"time"`
}

// EventWriter writes event files into a shared directory.
type EventWriter struct {
	dir string
}

// NewEventWriter creates a writer that emits events into dir.
func NewEventWriter(dir string) *EventWriter {
	return &EventWriter{dir: dir}
}

// Notify writes an event file. It is safe for concurrent use. The file is
// written under a temporary name and renamed so watchers never read a
// partial event.
func (w *EventWriter) Notify(eventType, personID string) error {
	if strings.TrimSpace(eventType) == "" {
		return fmt.Errorf("notify: event type is required")
	}
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return fmt.Errorf("notify: mkdir %s: %w", w.dir, err)
	}

	evt := Event{
		Type:     eventType,
		PersonID: personID,
		Time:     time.Now().UnixNano(),
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("notify: encode event: %w", err)
	}

	name := fmt.Sprintf("%d-%s", evt.Time, sanitizeID(eventType+"-"+personID))
	tmp := filepath.Join(w.dir, name+".tmp")
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("notify: write event: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(w.dir, name+eventExt)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("notify: publish event: %w", err)
	}
	return nil
}

// sanitizeID replaces characters unsafe for filenames.
func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, strings.TrimSuffix(id, "-"))
}
