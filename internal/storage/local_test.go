package storage_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foldsync/foldsync/internal/events"
	"github.com/foldsync/foldsync/internal/fingerprint"
	"github.com/foldsync/foldsync/internal/models"
	"github.com/foldsync/foldsync/internal/storage"
)

func newLocalStore(t *testing.T, attempts int) (*storage.LocalStore, string) {
	t.Helper()

	dir := t.TempDir()
	logger := events.NewTestLogger(events.ErrorLevel, "text", io.Discard)
	store, err := storage.NewLocalStore(dir, attempts, 0, logger)
	require.NoError(t, err)
	return store, dir
}

func TestLocalStoreRoundtrip(t *testing.T) {
	store, _ := newLocalStore(t, 3)

	assert.False(t, store.Exists("a.txt"))

	require.NoError(t, store.Write("a.txt", []byte("alpha")))
	assert.True(t, store.Exists("a.txt"))

	data, err := store.Read("a.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("alpha"), data)

	hash, err := store.Hash("a.txt")
	require.NoError(t, err)
	assert.Equal(t, fingerprint.Sum([]byte("alpha")), hash)

	require.NoError(t, store.Write("a.txt", []byte("alpha v2")))
	data, err = store.Read("a.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("alpha v2"), data)

	require.NoError(t, store.Delete("a.txt"))
	assert.False(t, store.Exists("a.txt"))
}

func TestLocalStoreReadMissing(t *testing.T) {
	store, _ := newLocalStore(t, 3)

	_, err := store.Read("ghost.txt")
	assert.ErrorIs(t, err, models.ErrFileNotFound)
}

func TestLocalStoreDeleteMissingIsNoop(t *testing.T) {
	store, _ := newLocalStore(t, 3)
	assert.NoError(t, store.Delete("ghost.txt"))
}

func TestLocalStoreRetryCeiling(t *testing.T) {
	store, dir := newLocalStore(t, 5)

	// Reading a directory fails on every attempt.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "blocked"), 0o755))

	_, err := store.Read("blocked")
	var ioErr *models.LocalIOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, 5, ioErr.Attempts)
	assert.Equal(t, "read", ioErr.Op)
	assert.Equal(t, "blocked", ioErr.Name)
}

func TestLocalStoreMissingFileDoesNotRetry(t *testing.T) {
	store, _ := newLocalStore(t, 50)

	// 50 attempts with a visible delay would stall this test; a
	// not-found read must fail on the first try.
	logger := events.NewTestLogger(events.ErrorLevel, "text", io.Discard)
	slow, err := storage.NewLocalStore(store.BaseDir(), 50, 100*time.Millisecond, logger)
	require.NoError(t, err)

	start := time.Now()
	_, err = slow.Read("ghost.txt")
	assert.ErrorIs(t, err, models.ErrFileNotFound)
	assert.Less(t, time.Since(start), time.Second)
}

func TestLocalStoreListNames(t *testing.T) {
	store, dir := newLocalStore(t, 3)

	require.NoError(t, store.Write("a.txt", []byte("a")))
	require.NoError(t, store.Write("b.txt", []byte("b")))
	require.NoError(t, store.SaveOpaqueState([]byte("{}")))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))

	names, err := store.ListNames()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, names,
		"state directory and subdirectories are not files to sync")
}

func TestLocalStoreOpaqueState(t *testing.T) {
	store, dir := newLocalStore(t, 3)

	blob, err := store.LoadOpaqueState()
	require.NoError(t, err)
	assert.Nil(t, blob, "no state saved yet")

	require.NoError(t, store.SaveOpaqueState([]byte(`{"v":1}`)))

	blob, err = store.LoadOpaqueState()
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"v":1}`), blob)

	// Stored at the well-known location.
	_, err = os.Stat(filepath.Join(dir, storage.StateDirName, storage.StateFileName))
	assert.NoError(t, err)
}

func TestLocalStoreRejectsEscapingNames(t *testing.T) {
	store, _ := newLocalStore(t, 3)

	err := store.Write("../evil.txt", []byte("x"))
	assert.Error(t, err)

	_, err = store.Read("../../etc/passwd")
	assert.Error(t, err)

	assert.False(t, store.Exists("../evil.txt"))
}
