package models

// NoteKind identifies the terminal outcome of one file operation.
// Every operation produces exactly one notification.
type NoteKind string

const (
	// Success outcomes
	NoteNewDownloadOK    NoteKind = "new_download_ok"
	NoteUpdateDownloadOK NoteKind = "update_download_ok"
	NoteNewUploadOK      NoteKind = "new_upload_ok"
	NoteUpdateUploadOK   NoteKind = "update_upload_ok"
	NoteLocalDeleteOK    NoteKind = "local_delete_ok"
	NoteRemoteDeleteOK   NoteKind = "remote_delete_ok"

	// Failure outcomes
	NoteDownloadFailed      NoteKind = "download_failed"
	NoteUploadFailed        NoteKind = "upload_failed"
	NoteConfirmUploadFailed NoteKind = "confirm_upload_failed"
	NoteReadLocalFailed     NoteKind = "read_local_failed"
	NoteWriteLocalFailed    NoteKind = "write_local_failed"
	NoteLocalDeleteFailed   NoteKind = "local_delete_failed"
	NoteRemoteDeleteFailed  NoteKind = "remote_delete_failed"

	// Informational / generic
	NoteInfo     NoteKind = "info"
	NoteFailure  NoteKind = "failure"
	NoteConflict NoteKind = "conflict_raised"
)

// IsFailure reports whether the kind describes a failed operation.
func (k NoteKind) IsFailure() bool {
	switch k {
	case NoteDownloadFailed, NoteUploadFailed, NoteConfirmUploadFailed,
		NoteReadLocalFailed, NoteWriteLocalFailed, NoteLocalDeleteFailed,
		NoteRemoteDeleteFailed, NoteFailure:
		return true
	}
	return false
}

// Notification is a user-visible report about one file.
type Notification struct {
	Name    string   `json:"name"`
	Kind    NoteKind `json:"kind"`
	Message string   `json:"message,omitempty"`
}
