package models

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	ErrEngineRunning    = errors.New("engine already running")
	ErrEngineStopped    = errors.New("engine not started")
	ErrConflictNotFound = errors.New("conflict not found")
	ErrFileNotFound     = errors.New("file not found")
	ErrStateNotFound    = errors.New("folder state not found")
)

// SetupError reports a folder pair that cannot be initialized. It
// aborts Start/SyncNowOnce entirely; no partial state is created.
type SetupError struct {
	Path   string
	Reason string
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup %s: %s", e.Path, e.Reason)
}

// TransportError reports a remote call that failed in a way not
// classified as one of the known status outcomes.
type TransportError struct {
	Op   string
	Name string
	Err  error
}

func (e *TransportError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("remote %s %s: %v", e.Op, e.Name, e.Err)
	}
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// LocalIOError reports a local read/write/delete that failed after
// exhausting the bounded retry ceiling.
type LocalIOError struct {
	Op       string
	Name     string
	Attempts int
	Err      error
}

func (e *LocalIOError) Error() string {
	return fmt.Sprintf("local %s %s: gave up after %d attempts: %v", e.Op, e.Name, e.Attempts, e.Err)
}

func (e *LocalIOError) Unwrap() error {
	return e.Err
}

// AmbiguousStateError reports a hash mismatch the engine did not expect
// outside the normal conflict paths.
type AmbiguousStateError struct {
	Name     string
	Expected string
	Actual   string
}

func (e *AmbiguousStateError) Error() string {
	if e.Expected == "" {
		return fmt.Sprintf("ambiguous state for %s: server reports a content mismatch with no guard sent", e.Name)
	}
	return fmt.Sprintf("ambiguous state for %s: expected hash %s, server reports %s",
		e.Name, e.Expected, e.Actual)
}
