package transport

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/foldsync/foldsync/internal/fingerprint"
	"github.com/foldsync/foldsync/internal/models"
)

// MockRemote provides an in-memory Remote for testing. It behaves like
// the real server: uploads against a stale expected hash are parked in
// staging, guarded deletes answer Conflicted on a mismatch.
type MockRemote struct {
	mu sync.Mutex

	// Files maps name to live content.
	Files map[string][]byte

	// Staged maps token to parked upload content.
	Staged map[string][]byte

	// Error injection
	ExistsError   error
	UploadError   error
	DownloadError error
	DeleteError   error
	ListError     error
	ConfirmError  error
	DiscardError  error

	// Call tracking
	UploadCalls   []string
	DownloadCalls []string
	DeleteCalls   []string
	ConfirmCalls  []string
	DiscardCalls  []string
	ListCalls     int
}

// NewMockRemote creates a mock remote adapter.
func NewMockRemote() *MockRemote {
	return &MockRemote{
		Files:  make(map[string][]byte),
		Staged: make(map[string][]byte),
	}
}

// Put seeds a remote file and returns its hash.
func (m *MockRemote) Put(name string, data []byte) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	m.Files[name] = stored
	return fingerprint.Sum(data)
}

// Hash returns the current hash of a remote file, or "" when absent.
func (m *MockRemote) Hash(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.Files[name]
	if !ok {
		return ""
	}
	return fingerprint.Sum(data)
}

// Exists reports whether the named file exists remotely.
func (m *MockRemote) Exists(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ExistsError != nil {
		return false, m.ExistsError
	}

	_, ok := m.Files[name]
	return ok, nil
}

// Upload applies the race-detection protocol against the in-memory
// content.
func (m *MockRemote) Upload(ctx context.Context, name string, data []byte, expectedPriorHash string) (UploadStatus, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UploadCalls = append(m.UploadCalls, name)

	if m.UploadError != nil {
		return UploadServerError, "", m.UploadError
	}

	current, exists := m.Files[name]

	if !exists {
		if expectedPriorHash != models.NewFileSentinel && expectedPriorHash != "" {
			// Caller expected a prior version that is gone; park it.
			token := uuid.NewString()
			m.Staged[token] = append([]byte(nil), data...)
			return UploadConflicted, token, nil
		}
		m.Files[name] = append([]byte(nil), data...)
		return UploadCreated, "", nil
	}

	currentHash := fingerprint.Sum(current)
	if currentHash == fingerprint.Sum(data) {
		return UploadUnchanged, "", nil
	}
	if currentHash == expectedPriorHash {
		m.Files[name] = append([]byte(nil), data...)
		return UploadAccepted, "", nil
	}

	token := uuid.NewString()
	m.Staged[token] = append([]byte(nil), data...)
	return UploadConflicted, token, nil
}

// UploadOverwrite replaces the remote content unconditionally.
func (m *MockRemote) UploadOverwrite(ctx context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UploadCalls = append(m.UploadCalls, name)

	if m.UploadError != nil {
		return m.UploadError
	}

	m.Files[name] = append([]byte(nil), data...)
	return nil
}

// ConfirmStaged promotes a staged upload to the live copy.
func (m *MockRemote) ConfirmStaged(ctx context.Context, name, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ConfirmCalls = append(m.ConfirmCalls, name)

	if m.ConfirmError != nil {
		return m.ConfirmError
	}

	data, ok := m.Staged[token]
	if !ok {
		return fmt.Errorf("no staged upload for token %s", token)
	}
	delete(m.Staged, token)
	m.Files[name] = data
	return nil
}

// DiscardStaged drops a staged upload.
func (m *MockRemote) DiscardStaged(ctx context.Context, name, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DiscardCalls = append(m.DiscardCalls, name)

	if m.DiscardError != nil {
		return m.DiscardError
	}

	delete(m.Staged, token)
	return nil
}

// Download returns the remote file's content.
func (m *MockRemote) Download(ctx context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DownloadCalls = append(m.DownloadCalls, name)

	if m.DownloadError != nil {
		return nil, m.DownloadError
	}

	data, ok := m.Files[name]
	if !ok {
		return nil, &models.TransportError{Op: "download", Name: name,
			Err: fmt.Errorf("HTTP 404")}
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Delete removes the remote file, honoring the hash guard.
func (m *MockRemote) Delete(ctx context.Context, name, expectedPriorHash string) (DeleteStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteCalls = append(m.DeleteCalls, name)

	if m.DeleteError != nil {
		return DeleteServerError, m.DeleteError
	}

	data, ok := m.Files[name]
	if !ok {
		return DeleteNotFound, nil
	}

	if expectedPriorHash != "" && expectedPriorHash != models.NewFileSentinel &&
		fingerprint.Sum(data) != expectedPriorHash {
		return DeleteConflicted, nil
	}

	delete(m.Files, name)
	return DeleteOK, nil
}

// ListFolder returns the current listing in sorted order.
func (m *MockRemote) ListFolder(ctx context.Context) ([]models.RemoteFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ListCalls++

	if m.ListError != nil {
		return nil, m.ListError
	}

	listing := make([]models.RemoteFile, 0, len(m.Files))
	for name, data := range m.Files {
		listing = append(listing, models.RemoteFile{Name: name, Hash: fingerprint.Sum(data)})
	}
	sort.Slice(listing, func(i, j int) bool { return listing[i].Name < listing[j].Name })
	return listing, nil
}

// Close releases resources.
func (m *MockRemote) Close() error {
	return nil
}

// MockPush is an in-memory PushChannel driven by the test.
type MockPush struct {
	events chan PushEvent
	once   sync.Once
}

// NewMockPush creates a mock push channel.
func NewMockPush() *MockPush {
	return &MockPush{events: make(chan PushEvent, 100)}
}

// Connect is a no-op.
func (m *MockPush) Connect(ctx context.Context) error {
	return nil
}

// Events returns the notification stream.
func (m *MockPush) Events() <-chan PushEvent {
	return m.events
}

// Send injects an event.
func (m *MockPush) Send(event PushEvent) {
	m.events <- event
}

// Close ends the stream.
func (m *MockPush) Close() error {
	m.once.Do(func() { close(m.events) })
	return nil
}
