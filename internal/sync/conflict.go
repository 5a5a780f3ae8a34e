package sync

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/foldsync/foldsync/internal/models"
)

// raiseConflict registers a pending conflict and either hands it to
// the operator callback or, for kinds outside the confirmation set,
// schedules the default action. The caller may hold the name lock, so
// the default resolution runs on its own goroutine and takes the lock
// itself.
func (e *Engine) raiseConflict(ctx context.Context, c models.Conflict) {
	c.ID = uuid.NewString()

	e.conflictsMu.Lock()
	e.conflicts[c.ID] = c
	needsConfirm := e.confirmKinds[c.Kind] && e.confirmFn != nil
	action := e.defaultAction
	fn := e.confirmFn
	e.conflictsMu.Unlock()

	e.logger.WithFields(map[string]interface{}{
		"file":        c.Name,
		"kind":        c.Kind,
		"conflict_id": c.ID,
	}).Warn("Conflict raised")
	e.notify(c.Name, models.NoteConflict, string(c.Kind))

	if needsConfirm {
		fn(c.Name, c.Kind, c.ID)
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.ResolveConflict(ctx, c.ID, action); err != nil {
			e.logger.WithError(err).WithField("file", c.Name).
				Error("Default conflict resolution failed")
		}
	}()
}

// Conflicts returns the pending conflicts, for display.
func (e *Engine) Conflicts() []models.Conflict {
	e.conflictsMu.Lock()
	defer e.conflictsMu.Unlock()

	out := make([]models.Conflict, 0, len(e.conflicts))
	for _, c := range e.conflicts {
		out = append(out, c)
	}
	return out
}

// ResolveConflict applies the operator's decision to a pending
// conflict. The conflict leaves the registry unconditionally: if the
// chosen action then fails, the failure surfaces as a notification and
// any still-divergent content is caught by the next reconciliation.
func (e *Engine) ResolveConflict(ctx context.Context, conflictID string, action models.ConflictAction) error {
	e.conflictsMu.Lock()
	c, ok := e.conflicts[conflictID]
	if ok {
		delete(e.conflicts, conflictID)
	}
	e.conflictsMu.Unlock()

	if !ok {
		return fmt.Errorf("conflict %s: %w", conflictID, models.ErrConflictNotFound)
	}

	e.logger.WithFields(map[string]interface{}{
		"file":   c.Name,
		"kind":   c.Kind,
		"action": action,
	}).Info("Resolving conflict")

	unlock := e.lockName(c.Name)
	defer unlock()

	switch c.Kind {
	case models.ConflictConcurrentModification:
		if action == models.PreferLocal {
			e.uploadFile(ctx, c.Name, true)
		} else {
			e.downloadFile(ctx, c.Name, "", true)
		}

	case models.ConflictRemoteDeletedLocalNewer:
		if action == models.PreferLocal {
			e.uploadFile(ctx, c.Name, true)
		} else {
			e.deleteLocalFile(ctx, c.Name, c.Hash, true)
		}

	case models.ConflictRemoteChangedLocalDeleted:
		if action == models.PreferLocal {
			e.downloadFile(ctx, c.Name, "", true)
		} else {
			e.requestRemoteDelete(ctx, c.Name, false)
		}

	case models.ConflictUploadRace:
		e.resolveUploadRace(ctx, c, action)
	}

	return nil
}

// resolveUploadRace settles a staged upload. PreferRemote promotes the
// staged copy to the live one; PreferLocal discards it and pulls the
// remote content down. Callers hold the name lock.
func (e *Engine) resolveUploadRace(ctx context.Context, c models.Conflict, action models.ConflictAction) {
	log := e.logger.WithField("file", c.Name)

	if action == models.PreferRemote {
		if err := e.remote.ConfirmStaged(ctx, c.Name, c.StagingToken); err != nil {
			log.WithError(err).Error("Staged upload confirmation failed")
			e.notify(c.Name, models.NoteConfirmUploadFailed, err.Error())
			return
		}
		if err := e.state.RecordSynced(c.Name, c.Hash); err != nil {
			e.notify(c.Name, models.NoteFailure, err.Error())
			return
		}
		e.notify(c.Name, models.NoteUpdateUploadOK, "")
		return
	}

	if err := e.remote.DiscardStaged(ctx, c.Name, c.StagingToken); err != nil {
		log.WithError(err).Error("Staged upload discard failed")
		e.notify(c.Name, models.NoteFailure, err.Error())
	} else {
		e.notify(c.Name, models.NoteInfo, "staged upload discarded")
	}

	e.downloadFile(ctx, c.Name, "", true)
}
