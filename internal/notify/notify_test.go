package notify

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEventWriterCreatesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "events")
	w := NewEventWriter(dir)

	if err := w.Notify(EventPersonUpdated, "person-42"); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 event file, got %d", len(entries))
	}
	if filepath.Ext(entries[0].Name()) != eventExt {
		t.Errorf("expected %s extension, got %s", eventExt, entries[0].Name())
	}
}

func TestEventWriterRequiresType(t *testing.T) {
	w := NewEventWriter(t.TempDir())
	if err := w.Notify(" ", "person-42"); err == nil {
		t.Fatal("expected error for empty event type")
	}
}

func TestEventWatcherReceivesEvent(t *testing.T) {
	dir := t.TempDir()
	received := make(chan Event, 1)

	watcher := NewEventWatcher(dir, func(e Event) { received <- e }, nil)
	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer watcher.Stop()

	if err := NewEventWriter(dir).Notify(EventPersonUpdated, "person-42"); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	select {
	case e := <-received:
		if e.Type != EventPersonUpdated {
			t.Errorf("expected %s, got %s", EventPersonUpdated, e.Type)
		}
		if e.PersonID != "person-42" {
			t.Errorf("expected person-42, got %s", e.PersonID)
		}
		if e.Time == 0 {
			t.Error("expected event time to be set")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestEventWatcherDrainsExisting(t *testing.T) {
	dir := t.TempDir()

	writer := NewEventWriter(dir)
	_ = writer.Notify(EventGraphUpdated, "")
	_ = writer.Notify(EventPersonUpdated, "person-7")

	received := make(chan Event, 10)
	watcher := NewEventWatcher(dir, func(e Event) { received <- e }, nil)
	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer watcher.Stop()

	// Draining happens synchronously in Start.
	if len(received) != 2 {
		t.Fatalf("expected 2 drained events, got %d", len(received))
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected consumed files to be removed, %d remain", len(entries))
	}
}

func TestEventWatcherSkipsInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "1-bad"+eventExt), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "2-untyped"+eventExt), []byte(`{"person_id":"x"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	calls := 0
	watcher := NewEventWatcher(dir, func(Event) { calls++ }, nil)
	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	watcher.Stop()

	if calls != 0 {
		t.Errorf("expected no handler calls, got %d", calls)
	}
}

func TestSanitizeID(t *testing.T) {
	cases := map[string]string{
		"person_updated-li:abc/def": "person_updated-li_abc_def",
		"graph_updated-":            "graph_updated",
		"a b\\c":                    "a_b_c",
	}
	for in, want := range cases {
		if got := sanitizeID(in); got != want {
			t.Errorf("sanitizeID(%q) = %q, want %q", in, got, want)
		}
	}
}
