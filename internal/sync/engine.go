// Package sync implements the synchronization engine: startup
// reconciliation, live local/remote event handling, and the
// conflict-resolution state machine.
package sync

import (
	"context"
	"sync"
	"time"

	"github.com/foldsync/foldsync/internal/config"
	"github.com/foldsync/foldsync/internal/events"
	"github.com/foldsync/foldsync/internal/models"
	"github.com/foldsync/foldsync/internal/state"
	"github.com/foldsync/foldsync/internal/storage"
	"github.com/foldsync/foldsync/internal/transport"
)

// ConfirmFunc asks the operator to decide a conflict. It runs on the
// engine's operation goroutine while the file's lock is held: return
// quickly, and answer later through ResolveConflict from another
// goroutine. Invoked exactly once per raised conflict.
type ConfirmFunc func(name string, kind models.ConflictKind, conflictID string)

// Engine drives synchronization of one local/remote folder pair.
type Engine struct {
	cfg    *config.Config
	remote transport.Remote
	push   transport.PushChannel
	logger *events.Logger

	// Bound by Start / SyncNowOnce
	local storage.Store
	state *state.Store

	notes chan models.Notification

	// Per-filename serialization: operations on the same name never
	// interleave; different names proceed concurrently.
	locksMu   sync.Mutex
	nameLocks map[string]*sync.Mutex

	// Conflict registry
	conflictsMu   sync.Mutex
	conflicts     map[string]models.Conflict
	confirmKinds  map[models.ConflictKind]bool
	confirmFn     ConfirmFunc
	defaultAction models.ConflictAction

	// Echo suppression for the engine's own filesystem side effects
	downloadEcho *echoTable
	deleteEcho   *echoTable
	changeDedup  *echoTable

	// Lifecycle
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	watcher *Watcher
	wg      sync.WaitGroup
}

// New creates an engine. push may be nil when only SyncNowOnce will be
// used. By default every conflict kind requires operator confirmation
// and the default action (applied to kinds outside that set) prefers
// the remote side; both are configurable.
func New(cfg *config.Config, remote transport.Remote, push transport.PushChannel, logger *events.Logger) *Engine {
	confirmKinds := make(map[models.ConflictKind]bool)
	for _, kind := range models.AllConflictKinds() {
		confirmKinds[kind] = true
	}

	return &Engine{
		cfg:           cfg,
		remote:        remote,
		push:          push,
		logger:        logger.WithField("component", "sync_engine"),
		notes:         make(chan models.Notification, 100),
		nameLocks:     make(map[string]*sync.Mutex),
		conflicts:     make(map[string]models.Conflict),
		confirmKinds:  confirmKinds,
		defaultAction: models.PreferRemote,
		downloadEcho:  newEchoTable(cfg.Sync.EchoWindow),
		deleteEcho:    newEchoTable(cfg.Sync.EchoWindow),
		changeDedup:   newEchoTable(cfg.Sync.ChangeDedupWindow),
	}
}

// Notifications returns the user-facing event stream. Every terminal
// outcome of a file operation produces exactly one notification.
func (e *Engine) Notifications() <-chan models.Notification {
	return e.notes
}

// OnConflict registers the operator-confirmation callback.
func (e *Engine) OnConflict(fn ConfirmFunc) {
	e.conflictsMu.Lock()
	defer e.conflictsMu.Unlock()
	e.confirmFn = fn
}

// SetConfirmationKinds replaces the set of conflict kinds that wait
// for an operator decision. Kinds outside the set resolve immediately
// with the default action.
func (e *Engine) SetConfirmationKinds(kinds ...models.ConflictKind) {
	e.conflictsMu.Lock()
	defer e.conflictsMu.Unlock()

	e.confirmKinds = make(map[models.ConflictKind]bool, len(kinds))
	for _, kind := range kinds {
		e.confirmKinds[kind] = true
	}
}

// SetDefaultAction sets the action applied to conflicts that do not
// require confirmation.
func (e *Engine) SetDefaultAction(action models.ConflictAction) {
	e.conflictsMu.Lock()
	defer e.conflictsMu.Unlock()
	e.defaultAction = action
}

// Start loads (or creates) the folder pair's state, runs the startup
// reconciliation, then begins live watching: local filesystem events
// and remote push notifications both feed the operation handlers.
func (e *Engine) Start(ctx context.Context, localPath, remotePath string, local storage.Store) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return models.ErrEngineRunning
	}

	st, loaded, err := state.Load(local, localPath, remotePath, e.logger)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.local = local
	e.state = st

	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true
	e.mu.Unlock()

	e.logger.WithFields(map[string]interface{}{
		"local_path":  localPath,
		"remote_path": remotePath,
		"had_state":   loaded,
	}).Info("Starting sync")

	// Reconcile before any live watching begins.
	if err := e.reconcile(ctx); err != nil {
		e.logger.WithError(err).Error("Startup reconciliation failed")
		e.shutdown()
		return err
	}

	watcher := NewWatcher(localPath, e.logger)
	if err := watcher.Start(); err != nil {
		e.shutdown()
		return err
	}
	e.mu.Lock()
	e.watcher = watcher
	e.mu.Unlock()

	if e.push != nil {
		if err := e.push.Connect(ctx); err != nil {
			e.logger.WithError(err).Error("Push channel connect failed")
			e.shutdown()
			return err
		}

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.pushLoop(ctx)
		}()
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.watchLoop(ctx, watcher)
	}()

	return nil
}

// Stop stops accepting new events and waits for in-flight operations
// to drain.
func (e *Engine) Stop() {
	e.logger.Info("Stopping sync")
	e.shutdown()
}

func (e *Engine) shutdown() {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	watcher := e.watcher
	e.watcher = nil
	e.mu.Unlock()

	if watcher != nil {
		watcher.Stop()
	}
	if e.push != nil {
		_ = e.push.Close()
	}

	e.wg.Wait()

	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

// SyncNowOnce performs a single reconciliation pass without starting
// live watching. With autoResolveToRemote every conflict skips the
// confirmation callback and resolves with the remote side's version.
func (e *Engine) SyncNowOnce(ctx context.Context, localPath, remotePath string, local storage.Store, autoResolveToRemote bool) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return models.ErrEngineRunning
	}

	st, _, err := state.Load(local, localPath, remotePath, e.logger)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.local = local
	e.state = st
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	if autoResolveToRemote {
		e.conflictsMu.Lock()
		saved := e.confirmKinds
		savedAction := e.defaultAction
		e.confirmKinds = make(map[models.ConflictKind]bool)
		e.defaultAction = models.PreferRemote
		e.conflictsMu.Unlock()

		defer func() {
			e.conflictsMu.Lock()
			e.confirmKinds = saved
			e.defaultAction = savedAction
			e.conflictsMu.Unlock()
		}()
	}

	err = e.reconcile(ctx)

	// Default resolutions spawned by the pass must land before return.
	e.wg.Wait()
	return err
}

// watchLoop feeds local filesystem events into the handlers. Each
// event runs on its own goroutine under the per-name lock so a slow
// transfer never delays detection of other changes.
func (e *Engine) watchLoop(ctx context.Context, watcher *Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events():
			if !ok {
				return
			}

			switch ev.Kind {
			case watchChanged:
				if e.downloadEcho.consume(ev.Name) {
					continue
				}
				if e.changeDedup.recent(ev.Name) {
					continue
				}
				e.changeDedup.mark(ev.Name)

				e.spawn(ev.Name, func() {
					e.uploadFile(ctx, ev.Name, false)
				})

			case watchDeleted:
				if e.deleteEcho.consume(ev.Name) {
					continue
				}

				e.spawn(ev.Name, func() {
					e.requestRemoteDelete(ctx, ev.Name, true)
				})
			}
		}
	}
}

// pushLoop feeds remote push notifications into the handlers.
func (e *Engine) pushLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-e.push.Events():
			if !ok {
				return
			}

			switch ev.Type {
			case transport.PushFileChanged:
				e.spawn(ev.Name, func() {
					e.downloadFile(ctx, ev.Name, ev.Hash, false)
				})
			case transport.PushFileDeleted:
				e.spawn(ev.Name, func() {
					e.deleteLocalFile(ctx, ev.Name, ev.Hash, false)
				})
			}
		}
	}
}

// spawn runs fn on its own goroutine under the per-name lock.
func (e *Engine) spawn(name string, fn func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		unlock := e.lockName(name)
		defer unlock()
		fn()
	}()
}

// lockName serializes operations per filename.
func (e *Engine) lockName(name string) func() {
	e.locksMu.Lock()
	lock, ok := e.nameLocks[name]
	if !ok {
		lock = &sync.Mutex{}
		e.nameLocks[name] = lock
	}
	e.locksMu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// notify emits a user-facing notification. Never blocks; a full
// channel drops the event.
func (e *Engine) notify(name string, kind models.NoteKind, message string) {
	note := models.Notification{Name: name, Kind: kind, Message: message}

	select {
	case e.notes <- note:
	default:
		e.logger.WithFields(map[string]interface{}{
			"name": name,
			"kind": kind,
		}).Debug("Notification channel full, dropping event")
	}
}

// echoTable remembers recent per-name marks for a fixed window.
type echoTable struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[string]time.Time
}

func newEchoTable(window time.Duration) *echoTable {
	return &echoTable{
		window:  window,
		entries: make(map[string]time.Time),
	}
}

// mark records an entry for the name at the current time.
func (t *echoTable) mark(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[name] = time.Now()
}

// consume reports whether a mark exists within the window and removes
// it, so one mark suppresses exactly one event.
func (t *echoTable) consume(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	at, ok := t.entries[name]
	if !ok {
		return false
	}
	delete(t.entries, name)
	return time.Since(at) < t.window
}

// recent reports whether a mark exists within the window, without
// consuming it.
func (t *echoTable) recent(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	at, ok := t.entries[name]
	return ok && time.Since(at) < t.window
}
