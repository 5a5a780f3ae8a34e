package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/foldsync/foldsync/internal/events"
	"github.com/foldsync/foldsync/internal/fingerprint"
	"github.com/foldsync/foldsync/internal/models"
)

// LocalStore implements Store on a filesystem directory.
type LocalStore struct {
	baseDir string
	logger  *events.Logger

	// Bounded retry for transient I/O failures
	retryAttempts int
	retryDelay    time.Duration
}

// NewLocalStore creates a local store rooted at baseDir, creating the
// directory if needed.
func NewLocalStore(baseDir string, retryAttempts int, retryDelay time.Duration, logger *events.Logger) (*LocalStore, error) {
	absPath, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base directory: %w", err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}

	return &LocalStore{
		baseDir:       absPath,
		logger:        logger.WithField("component", "local_store"),
		retryAttempts: retryAttempts,
		retryDelay:    retryDelay,
	}, nil
}

// BaseDir returns the absolute folder root.
func (s *LocalStore) BaseDir() string {
	return s.baseDir
}

// Exists reports whether the named file exists.
func (s *LocalStore) Exists(name string) bool {
	safePath, err := s.sanitizePath(name)
	if err != nil {
		return false
	}

	stat, err := os.Stat(safePath)
	return err == nil && !stat.IsDir()
}

// Hash returns the content fingerprint of the named file.
func (s *LocalStore) Hash(name string) (string, error) {
	data, err := s.Read(name)
	if err != nil {
		return "", err
	}
	return fingerprint.Sum(data), nil
}

// Read returns the file's content, retrying transient failures up to
// the configured ceiling.
func (s *LocalStore) Read(name string) ([]byte, error) {
	safePath, err := s.sanitizePath(name)
	if err != nil {
		return nil, fmt.Errorf("sanitize path: %w", err)
	}

	var data []byte
	err = s.withRetry("read", name, func() error {
		var readErr error
		data, readErr = os.ReadFile(safePath)
		if os.IsNotExist(readErr) {
			// Absent files never become present by retrying.
			return &stopRetry{fmt.Errorf("%w: %s", models.ErrFileNotFound, name)}
		}
		return readErr
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Write stores content atomically: temp file in the same directory,
// then rename. Retried up to the configured ceiling.
func (s *LocalStore) Write(name string, data []byte) error {
	safePath, err := s.sanitizePath(name)
	if err != nil {
		return fmt.Errorf("sanitize path: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"name": name,
		"size": len(data),
	}).Debug("Writing file")

	if err := os.MkdirAll(filepath.Dir(safePath), 0755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	return s.withRetry("write", name, func() error {
		tempPath := fmt.Sprintf("%s.tmp.%d", safePath, time.Now().UnixNano())

		if err := os.WriteFile(tempPath, data, 0644); err != nil {
			return err
		}

		if err := os.Rename(tempPath, safePath); err != nil {
			_ = os.Remove(tempPath)
			return err
		}
		return nil
	})
}

// Delete removes the named file. Absent files are a no-op.
func (s *LocalStore) Delete(name string) error {
	safePath, err := s.sanitizePath(name)
	if err != nil {
		return fmt.Errorf("sanitize path: %w", err)
	}

	s.logger.WithField("name", name).Debug("Deleting file")

	return s.withRetry("delete", name, func() error {
		err := os.Remove(safePath)
		if os.IsNotExist(err) {
			return nil
		}
		return err
	})
}

// ListNames returns the names of regular files in the folder root,
// excluding the state directory.
func (s *LocalStore) ListNames() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}
		names = append(names, entry.Name())
	}

	return names, nil
}

// SaveOpaqueState persists the folder state blob at the well-known
// location inside the folder.
func (s *LocalStore) SaveOpaqueState(blob []byte) error {
	statePath := filepath.Join(s.baseDir, StateDirName, StateFileName)

	if err := os.MkdirAll(filepath.Dir(statePath), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	return s.withRetry("write", StateRelPath(), func() error {
		tempPath := statePath + ".tmp"
		if err := os.WriteFile(tempPath, blob, 0644); err != nil {
			return err
		}
		if err := os.Rename(tempPath, statePath); err != nil {
			_ = os.Remove(tempPath)
			return err
		}
		return nil
	})
}

// LoadOpaqueState returns the persisted blob, or (nil, nil) when no
// state has been saved yet.
func (s *LocalStore) LoadOpaqueState() ([]byte, error) {
	statePath := filepath.Join(s.baseDir, StateDirName, StateFileName)

	data, err := os.ReadFile(statePath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state blob: %w", err)
	}
	return data, nil
}

// stopRetry wraps an error that must not be retried.
type stopRetry struct {
	err error
}

func (e *stopRetry) Error() string { return e.err.Error() }
func (e *stopRetry) Unwrap() error { return e.err }

// withRetry runs fn up to the retry ceiling with a fixed sleep between
// attempts, then reports a LocalIOError carrying the attempt count.
func (s *LocalStore) withRetry(op, name string, fn func() error) error {
	var lastErr error

	attempts := s.retryAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var stop *stopRetry
		if errors.As(err, &stop) {
			return stop.err
		}

		lastErr = err
		if attempt < attempts {
			time.Sleep(s.retryDelay)
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"op":       op,
		"name":     name,
		"attempts": attempts,
	}).WithError(lastErr).Error("Local I/O failed after retries")

	return &models.LocalIOError{Op: op, Name: name, Attempts: attempts, Err: lastErr}
}

// sanitizePath confines a name to the base directory.
func (s *LocalStore) sanitizePath(name string) (string, error) {
	if strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("invalid name: contains null byte")
	}

	cleaned := filepath.Clean(filepath.FromSlash(name))
	if strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid name: contains '..'")
	}
	cleaned = strings.TrimPrefix(cleaned, string(filepath.Separator))

	fullPath := filepath.Join(s.baseDir, cleaned)
	if !strings.HasPrefix(fullPath, s.baseDir+string(filepath.Separator)) && fullPath != s.baseDir {
		return "", fmt.Errorf("name escapes base directory")
	}

	return fullPath, nil
}
