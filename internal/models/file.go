package models

import (
	"fmt"
	"strings"
)

// FileStatus tracks the reconciliation state of one file on one side.
type FileStatus string

const (
	StatusSynced    FileStatus = "synced"
	StatusUploading FileStatus = "uploading"
	StatusIgnored   FileStatus = "ignored"
)

// NewFileSentinel is the expected-prior-hash value sent to the remote
// side for a file it has never seen.
const NewFileSentinel = "NewFile"

// FileRecord is one file's last successfully reconciled state on one
// side (local or remote).
type FileRecord struct {
	Name   string     `json:"name"`
	Hash   string     `json:"hash"`
	Status FileStatus `json:"status"`
}

// RemoteFile is a (name, hash) entry from a remote folder listing.
type RemoteFile struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
}

// FolderState is the durable record of the last known synchronized
// state for a folder pair. It is the sole source of truth for "what we
// believe is already synchronized"; live listings are compared against
// it, never trusted alone.
type FolderState struct {
	LocalPath   string                `json:"local_path"`
	RemotePath  string                `json:"remote_path"`
	LocalFiles  map[string]FileRecord `json:"local_files"`
	RemoteFiles map[string]FileRecord `json:"remote_files"`
}

// NewFolderState creates an empty folder state.
func NewFolderState(localPath, remotePath string) *FolderState {
	return &FolderState{
		LocalPath:   localPath,
		RemotePath:  remotePath,
		LocalFiles:  make(map[string]FileRecord),
		RemoteFiles: make(map[string]FileRecord),
	}
}

// SetLocal replaces or inserts the local record for a name.
func (s *FolderState) SetLocal(name, hash string, status FileStatus) {
	if s.LocalFiles == nil {
		s.LocalFiles = make(map[string]FileRecord)
	}
	delete(s.LocalFiles, name)
	s.LocalFiles[name] = FileRecord{Name: name, Hash: hash, Status: status}
}

// SetRemote replaces or inserts the remote record for a name.
func (s *FolderState) SetRemote(name, hash string, status FileStatus) {
	if s.RemoteFiles == nil {
		s.RemoteFiles = make(map[string]FileRecord)
	}
	delete(s.RemoteFiles, name)
	s.RemoteFiles[name] = FileRecord{Name: name, Hash: hash, Status: status}
}

// RemoveLocal removes the local record for a name, if present.
func (s *FolderState) RemoveLocal(name string) {
	delete(s.LocalFiles, name)
}

// RemoveRemote removes the remote record for a name, if present.
func (s *FolderState) RemoveRemote(name string) {
	delete(s.RemoteFiles, name)
}

// LocalFile returns the local record for a name.
func (s *FolderState) LocalFile(name string) (FileRecord, bool) {
	rec, ok := s.LocalFiles[name]
	return rec, ok
}

// RemoteFile returns the remote record for a name.
func (s *FolderState) RemoteFile(name string) (FileRecord, bool) {
	rec, ok := s.RemoteFiles[name]
	return rec, ok
}

// Clone creates a deep copy of the folder state.
func (s *FolderState) Clone() *FolderState {
	clone := NewFolderState(s.LocalPath, s.RemotePath)
	for k, v := range s.LocalFiles {
		clone.LocalFiles[k] = v
	}
	for k, v := range s.RemoteFiles {
		clone.RemoteFiles[k] = v
	}
	return clone
}

// Validate validates the folder state structure.
func (s *FolderState) Validate() error {
	if s.LocalFiles == nil || s.RemoteFiles == nil {
		return fmt.Errorf("file maps cannot be nil")
	}

	check := func(side string, files map[string]FileRecord) error {
		for name, rec := range files {
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("%s file name cannot be empty", side)
			}
			if rec.Name != name {
				return fmt.Errorf("%s record name %q does not match key %q", side, rec.Name, name)
			}
		}
		return nil
	}

	if err := check("local", s.LocalFiles); err != nil {
		return err
	}
	return check("remote", s.RemoteFiles)
}
