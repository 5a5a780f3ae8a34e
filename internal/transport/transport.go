// Package transport holds the remote folder adapter: an HTTP client
// for content transfer and a websocket client for near-real-time
// change notifications.
package transport

import (
	"context"

	"github.com/foldsync/foldsync/internal/models"
)

// UploadStatus classifies the remote side's answer to an upload.
type UploadStatus string

const (
	// UploadCreated: accepted as a new file, confirmed server-side.
	UploadCreated UploadStatus = "created"

	// UploadAccepted: accepted as an update to the expected prior
	// version, confirmed server-side.
	UploadAccepted UploadStatus = "accepted"

	// UploadUnchanged: the remote content already matches; nothing to do.
	UploadUnchanged UploadStatus = "unchanged"

	// UploadConflicted: the remote's current content differs from the
	// expected prior hash. The upload is parked in staging under the
	// returned token, awaiting ConfirmStaged or DiscardStaged.
	UploadConflicted UploadStatus = "conflicted"

	// UploadRejected: the server refused the request as malformed.
	UploadRejected UploadStatus = "rejected"

	// UploadServerError: the server failed.
	UploadServerError UploadStatus = "server_error"
)

// DeleteStatus classifies the remote side's answer to a delete.
type DeleteStatus string

const (
	DeleteOK          DeleteStatus = "deleted"
	DeleteConflicted  DeleteStatus = "conflicted"
	DeleteNotFound    DeleteStatus = "not_found"
	DeleteServerError DeleteStatus = "server_error"
)

// Remote is the remote folder adapter consumed by the sync engine.
// Network failures are returned as errors and fail fast; retrying is
// left to the next event or reconciliation pass.
type Remote interface {
	// Exists reports whether the named file exists remotely.
	Exists(ctx context.Context, name string) (bool, error)

	// Upload sends content together with the hash the caller believes
	// the remote currently holds (models.NewFileSentinel for a file
	// the remote has never seen). On UploadConflicted the returned
	// token identifies the staged copy.
	Upload(ctx context.Context, name string, data []byte, expectedPriorHash string) (UploadStatus, string, error)

	// UploadOverwrite replaces the remote content unconditionally.
	UploadOverwrite(ctx context.Context, name string, data []byte) error

	// ConfirmStaged promotes a staged upload to the live copy.
	ConfirmStaged(ctx context.Context, name, token string) error

	// DiscardStaged drops a staged upload.
	DiscardStaged(ctx context.Context, name, token string) error

	// Download returns the remote file's content.
	Download(ctx context.Context, name string) ([]byte, error)

	// Delete removes the remote file. A non-empty expectedPriorHash
	// acts as a guard: the server answers DeleteConflicted when its
	// current content differs.
	Delete(ctx context.Context, name, expectedPriorHash string) (DeleteStatus, error)

	// ListFolder returns the remote folder listing (name and hash of
	// every file).
	ListFolder(ctx context.Context) ([]models.RemoteFile, error)

	// Close releases resources.
	Close() error
}

// PushEventType identifies a push notification.
type PushEventType string

const (
	PushFileChanged PushEventType = "file_changed"
	PushFileDeleted PushEventType = "file_deleted"
)

// PushEvent is a near-real-time remote change notification.
type PushEvent struct {
	Type PushEventType `json:"type"`
	Name string        `json:"name"`
	Hash string        `json:"hash"`
}

// PushChannel delivers remote change notifications. The engine owns
// the instance; there is no process-wide hub.
type PushChannel interface {
	// Connect establishes the subscription.
	Connect(ctx context.Context) error

	// Events returns the notification stream. The channel closes when
	// the connection ends.
	Events() <-chan PushEvent

	// Close tears the subscription down.
	Close() error
}
