package sync

import (
	"context"
	"fmt"

	"github.com/foldsync/foldsync/internal/fingerprint"
	"github.com/foldsync/foldsync/internal/models"
	"github.com/foldsync/foldsync/internal/transport"
)

// uploadFile pushes the current local content of a name to the remote
// side. With overwrite the remote copy is replaced unconditionally;
// otherwise the upload carries the expected prior remote hash and a
// mismatch raises an upload-race conflict. Callers hold the name lock.
func (e *Engine) uploadFile(ctx context.Context, name string, overwrite bool) {
	log := e.logger.WithField("file", name)

	// The file may already be gone again (editor temp churn); nothing
	// to report.
	if !e.local.Exists(name) {
		log.Debug("Upload skipped, file no longer exists")
		return
	}

	data, err := e.local.Read(name)
	if err != nil {
		log.WithError(err).Error("Local read failed")
		e.notify(name, models.NoteReadLocalFailed, err.Error())
		return
	}
	hash := fingerprint.Sum(data)

	if err := e.state.UpdateLocal(name, hash, models.StatusUploading); err != nil {
		log.WithError(err).Error("State update failed")
		e.notify(name, models.NoteFailure, err.Error())
		return
	}

	if overwrite {
		if err := e.remote.UploadOverwrite(ctx, name, data); err != nil {
			log.WithError(err).Error("Overwrite upload failed")
			e.notify(name, models.NoteUploadFailed, err.Error())
			return
		}
		if err := e.state.RecordSynced(name, hash); err != nil {
			e.notify(name, models.NoteFailure, err.Error())
			return
		}
		e.notify(name, models.NoteUpdateUploadOK, "")
		return
	}

	expected := e.state.ExpectedRemoteHash(name)

	status, token, err := e.remote.Upload(ctx, name, data, expected)
	if err != nil {
		log.WithError(err).Error("Upload failed")
		e.notify(name, models.NoteUploadFailed, err.Error())
		return
	}

	switch status {
	case transport.UploadCreated:
		if err := e.state.RecordSynced(name, hash); err != nil {
			e.notify(name, models.NoteFailure, err.Error())
			return
		}
		e.notify(name, models.NoteNewUploadOK, "")

	case transport.UploadAccepted:
		if err := e.state.RecordSynced(name, hash); err != nil {
			e.notify(name, models.NoteFailure, err.Error())
			return
		}
		e.notify(name, models.NoteUpdateUploadOK, "")

	case transport.UploadUnchanged:
		if err := e.state.RecordSynced(name, hash); err != nil {
			e.notify(name, models.NoteFailure, err.Error())
			return
		}
		e.notify(name, models.NoteInfo, "remote already has this content")

	case transport.UploadConflicted:
		log.WithField("token", token).Warn("Upload raced with a remote change")
		e.raiseConflict(ctx, models.Conflict{
			Name:         name,
			Kind:         models.ConflictUploadRace,
			Hash:         hash,
			StagingToken: token,
		})

	case transport.UploadRejected:
		e.notify(name, models.NoteUploadFailed, "server rejected the upload (400)")

	default:
		e.notify(name, models.NoteUploadFailed, "server error (500)")
	}
}

// requestRemoteDelete propagates a local deletion. With checkHash the
// delete carries the last known remote hash as a guard and a mismatch
// raises a conflict. Callers hold the name lock.
func (e *Engine) requestRemoteDelete(ctx context.Context, name string, checkHash bool) {
	log := e.logger.WithField("file", name)

	if err := e.state.DeleteLocal(name); err != nil {
		log.WithError(err).Error("State update failed")
		e.notify(name, models.NoteFailure, err.Error())
		return
	}

	exists, err := e.remote.Exists(ctx, name)
	if err != nil {
		log.WithError(err).Error("Remote existence check failed")
		e.notify(name, models.NoteRemoteDeleteFailed, err.Error())
		return
	}
	if !exists {
		if err := e.state.DeleteRemote(name); err != nil {
			e.notify(name, models.NoteFailure, err.Error())
			return
		}
		e.notify(name, models.NoteInfo, "file already absent remotely")
		return
	}

	guard := ""
	if checkHash {
		if rec, ok := e.state.RemoteFile(name); ok {
			guard = rec.Hash
		}
	}

	status, err := e.remote.Delete(ctx, name, guard)
	if err != nil {
		log.WithError(err).Error("Remote delete failed")
		e.notify(name, models.NoteRemoteDeleteFailed, err.Error())
		return
	}

	switch status {
	case transport.DeleteOK:
		if err := e.state.DeleteRemote(name); err != nil {
			e.notify(name, models.NoteFailure, err.Error())
			return
		}
		e.notify(name, models.NoteRemoteDeleteOK, "")

	case transport.DeleteConflicted:
		if guard == "" {
			// An unguarded delete should never be refused as a
			// mismatch; something else is rewriting the remote copy.
			serr := &models.AmbiguousStateError{Name: name}
			log.WithError(serr).Error("Remote delete refused")
			e.notify(name, models.NoteRemoteDeleteFailed, serr.Error())
			return
		}
		log.Warn("Remote changed since the local copy was deleted")
		e.raiseConflict(ctx, models.Conflict{
			Name: name,
			Kind: models.ConflictRemoteChangedLocalDeleted,
		})

	case transport.DeleteNotFound:
		if err := e.state.DeleteRemote(name); err != nil {
			e.notify(name, models.NoteFailure, err.Error())
			return
		}
		e.notify(name, models.NoteInfo, "file already absent remotely")

	default:
		// Keep the remote record so a later pass retries the delete.
		e.notify(name, models.NoteRemoteDeleteFailed, "server error (500)")
	}
}

// downloadFile fetches remote content and writes it locally. hash is
// the remote hash from the triggering notification (may be empty);
// when the local copy already matches it the download is skipped.
// With ignoreHashCheck the remote copy wins regardless of local
// content. Callers hold the name lock.
func (e *Engine) downloadFile(ctx context.Context, name, hash string, ignoreHashCheck bool) {
	log := e.logger.WithField("file", name)

	existed := e.local.Exists(name)

	if !ignoreHashCheck && existed && hash != "" {
		localHash, err := e.local.Hash(name)
		if err == nil && localHash == hash {
			if err := e.state.RecordSynced(name, hash); err != nil {
				e.notify(name, models.NoteFailure, err.Error())
				return
			}
			log.Debug("Download skipped, local content already matches")
			return
		}
	}

	data, err := e.remote.Download(ctx, name)
	if err != nil {
		log.WithError(err).Error("Download failed")
		e.notify(name, models.NoteDownloadFailed, err.Error())
		return
	}

	// Mark only once a write is certain: a mark with no write behind
	// it would swallow the next genuine local event for the name. Set
	// before the write so the echo is suppressed even if the watcher
	// races the call.
	e.downloadEcho.mark(name)

	if err := e.local.Write(name, data); err != nil {
		log.WithError(err).Error("Local write failed")
		e.notify(name, models.NoteWriteLocalFailed, err.Error())
		return
	}

	// Record what was actually written, not what the notification
	// claimed: the remote may have moved on between the two.
	written := fingerprint.Sum(data)
	if err := e.state.RecordSynced(name, written); err != nil {
		e.notify(name, models.NoteFailure, err.Error())
		return
	}

	if existed {
		e.notify(name, models.NoteUpdateDownloadOK, "")
	} else {
		e.notify(name, models.NoteNewDownloadOK, "")
	}
}

// deleteLocalFile applies a remote deletion locally. hash is the
// content the remote side deleted; a local copy with different content
// raises a conflict instead of being destroyed, unless ignoreHashCheck
// forces the delete. Callers hold the name lock.
func (e *Engine) deleteLocalFile(ctx context.Context, name, hash string, ignoreHashCheck bool) {
	log := e.logger.WithField("file", name)

	if !e.local.Exists(name) {
		if err := e.dropBothRecords(name); err != nil {
			e.notify(name, models.NoteFailure, err.Error())
			return
		}
		log.Debug("Local delete skipped, file already absent")
		return
	}

	if !ignoreHashCheck && hash != "" {
		localHash, err := e.local.Hash(name)
		if err != nil {
			log.WithError(err).Error("Local hash failed")
			e.notify(name, models.NoteReadLocalFailed, err.Error())
			return
		}
		if localHash != hash {
			log.Warn("Local copy is newer than the remotely deleted version")
			e.raiseConflict(ctx, models.Conflict{
				Name: name,
				Kind: models.ConflictRemoteDeletedLocalNewer,
				Hash: hash,
			})
			return
		}
	}

	// Marked only once the delete is certain; the guarded and absent
	// branches above leave no filesystem event to suppress.
	e.deleteEcho.mark(name)

	if err := e.local.Delete(name); err != nil {
		log.WithError(err).Error("Local delete failed")
		e.notify(name, models.NoteLocalDeleteFailed, err.Error())
		return
	}

	if err := e.dropBothRecords(name); err != nil {
		e.notify(name, models.NoteFailure, err.Error())
		return
	}
	e.notify(name, models.NoteLocalDeleteOK, "")
}

func (e *Engine) dropBothRecords(name string) error {
	if err := e.state.DeleteLocal(name); err != nil {
		return fmt.Errorf("drop local record: %w", err)
	}
	if err := e.state.DeleteRemote(name); err != nil {
		return fmt.Errorf("drop remote record: %w", err)
	}
	return nil
}
