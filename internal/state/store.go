// Package state holds the durable record of the last known
// synchronized state for a folder pair. Every mutation persists
// immediately through the local adapter (write-through): a crash never
// loses more than the in-flight operation.
package state

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/foldsync/foldsync/internal/events"
	"github.com/foldsync/foldsync/internal/models"
	"github.com/foldsync/foldsync/internal/storage"
)

// Store wraps a FolderState with synchronized, write-through mutation.
type Store struct {
	mu     sync.Mutex
	local  storage.Store
	state  *models.FolderState
	logger *events.Logger
}

// Load opens the folder pair's state. If a persisted blob exists it is
// deserialized and loaded (second return true). Otherwise a fresh
// empty state is created and persisted — but only if the local folder
// is empty; a non-empty folder with no state is a SetupError.
func Load(local storage.Store, localPath, remotePath string, logger *events.Logger) (*Store, bool, error) {
	log := logger.WithField("component", "state_store")

	blob, err := local.LoadOpaqueState()
	if err != nil {
		return nil, false, fmt.Errorf("load state blob: %w", err)
	}

	if blob != nil {
		var st models.FolderState
		if err := json.Unmarshal(blob, &st); err != nil {
			return nil, false, fmt.Errorf("parse state blob: %w", err)
		}
		if err := st.Validate(); err != nil {
			return nil, false, fmt.Errorf("invalid state blob: %w", err)
		}

		log.WithFields(map[string]interface{}{
			"local_files":  len(st.LocalFiles),
			"remote_files": len(st.RemoteFiles),
		}).Debug("Loaded persisted folder state")

		return &Store{local: local, state: &st, logger: log}, true, nil
	}

	names, err := local.ListNames()
	if err != nil {
		return nil, false, fmt.Errorf("list local folder: %w", err)
	}
	if len(names) > 0 {
		return nil, false, &models.SetupError{
			Path:   localPath,
			Reason: "new sync folder must be empty",
		}
	}

	s := &Store{
		local:  local,
		state:  models.NewFolderState(localPath, remotePath),
		logger: log,
	}
	if err := s.persist(); err != nil {
		return nil, false, fmt.Errorf("persist fresh state: %w", err)
	}

	log.Info("Created fresh folder state")
	return s, false, nil
}

// UpdateLocal replaces or inserts the local record for a name and
// persists.
func (s *Store) UpdateLocal(name, hash string, status models.FileStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.SetLocal(name, hash, status)
	return s.persist()
}

// UpdateRemote replaces or inserts the remote record for a name and
// persists.
func (s *Store) UpdateRemote(name, hash string, status models.FileStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.SetRemote(name, hash, status)
	return s.persist()
}

// DeleteLocal removes the local record (no-op if absent) and persists.
func (s *Store) DeleteLocal(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.RemoveLocal(name)
	return s.persist()
}

// DeleteRemote removes the remote record (no-op if absent) and
// persists.
func (s *Store) DeleteRemote(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.RemoveRemote(name)
	return s.persist()
}

// RecordSynced marks both sides Synced at the given hash. This is the
// terminal call on every successful reconciliation of a file.
func (s *Store) RecordSynced(name, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.SetLocal(name, hash, models.StatusSynced)
	s.state.SetRemote(name, hash, models.StatusSynced)
	return s.persist()
}

// ExpectedRemoteHash returns the hash the remote side is believed to
// hold for a name, or the NewFile sentinel when no record exists.
func (s *Store) ExpectedRemoteHash(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.state.RemoteFile(name); ok {
		return rec.Hash
	}
	return models.NewFileSentinel
}

// LocalFile returns the local record for a name.
func (s *Store) LocalFile(name string) (models.FileRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.LocalFile(name)
}

// RemoteFile returns the remote record for a name.
func (s *Store) RemoteFile(name string) (models.FileRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.RemoteFile(name)
}

// Snapshot returns a deep copy of the current state, for the
// reconciliation diff.
func (s *Store) Snapshot() *models.FolderState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.Clone()
}

// persist serializes and writes the aggregate. Callers hold s.mu.
func (s *Store) persist() error {
	blob, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if err := s.local.SaveOpaqueState(blob); err != nil {
		return fmt.Errorf("save state blob: %w", err)
	}
	return nil
}
