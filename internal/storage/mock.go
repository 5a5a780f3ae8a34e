package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/foldsync/foldsync/internal/fingerprint"
	"github.com/foldsync/foldsync/internal/models"
)

// MockStore provides an in-memory Store for testing.
type MockStore struct {
	mu sync.Mutex

	// Files maps name to content.
	Files map[string][]byte

	// State holds the opaque blob.
	State []byte

	// Error injection
	ReadError   error
	WriteError  error
	DeleteError error
	ListError   error
	SaveError   error
	LoadError   error

	// ReadErrorFor injects a read failure for specific names.
	ReadErrorFor map[string]error

	// Call tracking
	Reads   []string
	Writes  []string
	Deletes []string
	Saves   int
}

// NewMockStore creates a mock local store.
func NewMockStore() *MockStore {
	return &MockStore{
		Files:        make(map[string][]byte),
		ReadErrorFor: make(map[string]error),
	}
}

// Exists reports whether the named file exists.
func (m *MockStore) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.Files[name]
	return ok
}

// Hash returns the fingerprint of the named file.
func (m *MockStore) Hash(name string) (string, error) {
	data, err := m.Read(name)
	if err != nil {
		return "", err
	}
	return fingerprint.Sum(data), nil
}

// Read returns the file's content.
func (m *MockStore) Read(name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Reads = append(m.Reads, name)

	if m.ReadError != nil {
		return nil, m.ReadError
	}
	if err, ok := m.ReadErrorFor[name]; ok {
		return nil, err
	}

	data, ok := m.Files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrFileNotFound, name)
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Write stores content under the name.
func (m *MockStore) Write(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Writes = append(m.Writes, name)

	if m.WriteError != nil {
		return m.WriteError
	}

	stored := make([]byte, len(data))
	copy(stored, data)
	m.Files[name] = stored
	return nil
}

// Delete removes the named file.
func (m *MockStore) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Deletes = append(m.Deletes, name)

	if m.DeleteError != nil {
		return m.DeleteError
	}

	delete(m.Files, name)
	return nil
}

// ListNames returns all file names in sorted order.
func (m *MockStore) ListNames() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListError != nil {
		return nil, m.ListError
	}

	names := make([]string, 0, len(m.Files))
	for name := range m.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// SaveOpaqueState stores the blob.
func (m *MockStore) SaveOpaqueState(blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Saves++

	if m.SaveError != nil {
		return m.SaveError
	}

	stored := make([]byte, len(blob))
	copy(stored, blob)
	m.State = stored
	return nil
}

// LoadOpaqueState returns the stored blob, or nil when absent.
func (m *MockStore) LoadOpaqueState() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.LoadError != nil {
		return nil, m.LoadError
	}

	if m.State == nil {
		return nil, nil
	}

	out := make([]byte, len(m.State))
	copy(out, m.State)
	return out, nil
}
