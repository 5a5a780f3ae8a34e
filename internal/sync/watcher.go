package sync

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rjeczalik/notify"

	"github.com/foldsync/foldsync/internal/events"
	"github.com/foldsync/foldsync/internal/storage"
)

// watchKind classifies a filesystem event for the engine.
type watchKind int

const (
	watchChanged watchKind = iota
	watchDeleted
)

// watchEvent is one filtered filesystem notification.
type watchEvent struct {
	Name string
	Kind watchKind
}

// Watcher surfaces local folder changes as watchEvents, filtering out
// the engine's own state blob and in-flight temp files.
type Watcher struct {
	dir    string
	raw    chan notify.EventInfo
	out    chan watchEvent
	logger *events.Logger
}

// NewWatcher creates a watcher for the folder root.
func NewWatcher(dir string, logger *events.Logger) *Watcher {
	return &Watcher{
		dir: dir,
		// notify requires a buffered channel
		raw:    make(chan notify.EventInfo, 64),
		out:    make(chan watchEvent, 64),
		logger: logger.WithField("component", "watcher"),
	}
}

// Start begins watching. Events are delivered on Events() until Stop.
func (w *Watcher) Start() error {
	w.logger.WithField("dir", w.dir).Info("Watcher start")

	if err := notify.Watch(w.dir, w.raw, notify.Create, notify.Write, notify.Remove, notify.Rename); err != nil {
		return err
	}

	go w.translate()
	return nil
}

// Stop releases the watch and closes Events().
func (w *Watcher) Stop() {
	notify.Stop(w.raw)
	close(w.raw)
	w.logger.Info("Watcher stop")
}

// Events returns the filtered event stream. Closed after Stop.
func (w *Watcher) Events() <-chan watchEvent {
	return w.out
}

// translate maps raw notifications to watchEvents. Whether a path
// still exists decides changed vs deleted; the raw event type is not
// trustworthy across platforms.
func (w *Watcher) translate() {
	defer close(w.out)

	for ev := range w.raw {
		name, ok := w.eventName(ev.Path())
		if !ok {
			continue
		}

		kind := watchChanged
		if _, err := os.Stat(ev.Path()); os.IsNotExist(err) {
			kind = watchDeleted
		}

		w.logger.WithFields(map[string]interface{}{
			"name": name,
			"kind": kind,
		}).Debug("Watcher event")

		w.out <- watchEvent{Name: name, Kind: kind}
	}
}

// eventName converts an absolute event path to a sync name, dropping
// anything the engine must not react to.
func (w *Watcher) eventName(path string) (string, bool) {
	rel, err := filepath.Rel(w.dir, path)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)

	// The state blob and its directory are engine-internal.
	if rel == storage.StateDirName || strings.HasPrefix(rel, storage.StateDirName+"/") {
		return "", false
	}

	// Atomic-write temp files are renamed away within the same call.
	if strings.Contains(rel, ".tmp.") {
		return "", false
	}

	// Synchronization is flat: names with separators are out of scope.
	if strings.Contains(rel, "/") {
		return "", false
	}

	return rel, true
}
