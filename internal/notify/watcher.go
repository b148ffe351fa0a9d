package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Handler receives each consumed event.
type Handler func(Event)

// EventWatcher watches an events directory and dispatches each event file
// to a handler exactly once, deleting the file as it is consumed.
type EventWatcher struct {
	dir     string
	handler Handler
	logger  *slog.Logger
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewEventWatcher creates a watcher for dir.
func NewEventWatcher(dir string, handler Handler, logger *slog.Logger) *EventWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventWatcher{
		dir:     dir,
		handler: handler,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Start drains events already in the directory, then watches for new ones
// until Stop is called.
func (ew *EventWatcher) Start() error {
	if err := os.MkdirAll(ew.dir, 0o700); err != nil {
		return fmt.Errorf("notify: mkdir %s: %w", ew.dir, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("notify: create watcher: %w", err)
	}
	if err := w.Add(ew.dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("notify: watch %s: %w", ew.dir, err)
	}
	ew.watcher = w

	ew.drainExisting()

	go ew.loop()
	ew.logger.Info("watching for graph change events", "dir", ew.dir)
	return nil
}

// Stop shuts the watcher down and waits for the loop to exit.
func (ew *EventWatcher) Stop() {
	if ew.watcher == nil {
		return
	}
	_ = ew.watcher.Close()
	<-ew.done
}

func (ew *EventWatcher) loop() {
	defer close(ew.done)
	for {
		select {
		case evt, ok := <-ew.watcher.Events:
			if !ok {
				return
			}
			// Writers rename finished files into place.
			if evt.Op&(fsnotify.Create|fsnotify.Rename) != 0 && strings.HasSuffix(evt.Name, eventExt) {
				ew.processFile(evt.Name)
			}
		case err, ok := <-ew.watcher.Errors:
			if !ok {
				return
			}
			ew.logger.Warn("event watcher error", "error", err)
		}
	}
}

func (ew *EventWatcher) drainExisting() {
	entries, err := os.ReadDir(ew.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), eventExt) {
			ew.processFile(filepath.Join(ew.dir, entry.Name()))
		}
	}
}

func (ew *EventWatcher) processFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return // consumed by another watcher
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		ew.logger.Warn("failed to remove event file", "file", filepath.Base(path), "error", err)
	}

	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		ew.logger.Warn("invalid event file", "file", filepath.Base(path), "error", err)
		return
	}
	if event.Type == "" || ew.handler == nil {
		return
	}
	ew.handler(event)
}
