package sync

import (
	"context"
	"fmt"
	"sort"

	"github.com/foldsync/foldsync/internal/models"
)

// reconcile performs the startup three-way diff between the local
// folder, the remote folder, and the last persisted state, then
// executes the resulting plan. Listing failures abort the pass;
// per-file failures only produce notifications.
func (e *Engine) reconcile(ctx context.Context) error {
	remoteList, err := e.remote.ListFolder(ctx)
	if err != nil {
		return fmt.Errorf("list remote folder: %w", err)
	}

	localNames, err := e.local.ListNames()
	if err != nil {
		return fmt.Errorf("list local folder: %w", err)
	}

	localHashes := make(map[string]string, len(localNames))
	for _, name := range localNames {
		hash, err := e.local.Hash(name)
		if err != nil {
			e.logger.WithError(err).WithField("file", name).
				Error("Local hash failed during reconciliation")
			e.notify(name, models.NoteReadLocalFailed, err.Error())
			continue
		}
		localHashes[name] = hash
	}

	remoteHashes := make(map[string]string, len(remoteList))
	for _, rf := range remoteList {
		remoteHashes[rf.Name] = rf.Hash
	}

	snap := e.state.Snapshot()

	// uploads: local files the state has never seen, or whose content
	// moved since the last sync.
	uploads := make(map[string]bool)
	for name, hash := range localHashes {
		rec, ok := snap.LocalFile(name)
		if !ok || rec.Hash != hash {
			uploads[name] = true
		}
	}

	// downloads: remote files the state has never seen, or whose
	// content moved since the last sync. Value is the remote hash.
	downloads := make(map[string]string)
	for name, hash := range remoteHashes {
		rec, ok := snap.RemoteFile(name)
		if !ok || rec.Hash != hash {
			downloads[name] = hash
		}
	}

	// localDeletes: files the state saw remotely that are gone from the
	// remote listing. Value is the last known remote hash, used as the
	// guard against destroying a newer local copy.
	localDeletes := make(map[string]string)
	for name, rec := range snap.RemoteFiles {
		if _, ok := remoteHashes[name]; !ok {
			localDeletes[name] = rec.Hash
		}
	}

	// remoteDeletes: files the state saw locally that are gone from the
	// local folder.
	remoteDeletes := make(map[string]bool)
	for name := range snap.LocalFiles {
		if _, ok := localHashes[name]; !ok {
			remoteDeletes[name] = true
		}
	}

	// Cross-set divergences become conflicts before anything executes.
	for name := range uploads {
		if remoteHash, ok := downloads[name]; ok {
			delete(uploads, name)
			if localHashes[name] == remoteHash {
				// Both sides converged on the same content; the
				// download path records it without transferring.
				continue
			}
			delete(downloads, name)
			e.raiseConflict(ctx, models.Conflict{
				Name: name,
				Kind: models.ConflictConcurrentModification,
				Hash: remoteHash,
			})
			continue
		}

		if remoteHash, ok := localDeletes[name]; ok {
			delete(uploads, name)
			delete(localDeletes, name)
			e.raiseConflict(ctx, models.Conflict{
				Name: name,
				Kind: models.ConflictRemoteDeletedLocalNewer,
				Hash: remoteHash,
			})
		}
	}

	for name := range downloads {
		if remoteDeletes[name] {
			delete(downloads, name)
			delete(remoteDeletes, name)
			e.raiseConflict(ctx, models.Conflict{
				Name: name,
				Kind: models.ConflictRemoteChangedLocalDeleted,
			})
		}
	}

	e.logger.WithFields(map[string]interface{}{
		"downloads":      len(downloads),
		"uploads":        len(uploads),
		"local_deletes":  len(localDeletes),
		"remote_deletes": len(remoteDeletes),
	}).Info("Reconciliation plan")

	// Fixed order: local deletes, downloads, uploads, remote deletes.
	for _, name := range sortedKeys(localDeletes) {
		unlock := e.lockName(name)
		e.deleteLocalFile(ctx, name, localDeletes[name], false)
		unlock()
	}
	for _, name := range sortedKeys(downloads) {
		unlock := e.lockName(name)
		e.downloadFile(ctx, name, downloads[name], false)
		unlock()
	}
	for _, name := range sortedBoolKeys(uploads) {
		unlock := e.lockName(name)
		e.uploadFile(ctx, name, false)
		unlock()
	}
	for _, name := range sortedBoolKeys(remoteDeletes) {
		unlock := e.lockName(name)
		e.requestRemoteDelete(ctx, name, true)
		unlock()
	}

	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedBoolKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
