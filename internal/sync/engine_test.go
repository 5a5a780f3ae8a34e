package sync_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foldsync/foldsync/internal/config"
	"github.com/foldsync/foldsync/internal/events"
	"github.com/foldsync/foldsync/internal/models"
	"github.com/foldsync/foldsync/internal/storage"
	"github.com/foldsync/foldsync/internal/sync"
	"github.com/foldsync/foldsync/internal/transport"
)

func newTestEngine(t *testing.T) (*sync.Engine, *transport.MockRemote, *storage.MockStore) {
	t.Helper()

	logger := events.NewTestLogger(events.ErrorLevel, "text", io.Discard)
	remote := transport.NewMockRemote()
	local := storage.NewMockStore()
	engine := sync.New(config.DefaultConfig(), remote, nil, logger)
	return engine, remote, local
}

// syncOnce runs one reconciliation pass with confirmation enabled.
func syncOnce(t *testing.T, e *sync.Engine, local *storage.MockStore) {
	t.Helper()
	require.NoError(t, e.SyncNowOnce(context.Background(), "/local", "remote", local, false))
}

// drainNotes returns everything currently buffered on the
// notification channel.
func drainNotes(e *sync.Engine) []models.Notification {
	var out []models.Notification
	for {
		select {
		case n := <-e.Notifications():
			out = append(out, n)
		default:
			return out
		}
	}
}

func notesByKind(notes []models.Notification) map[models.NoteKind][]string {
	byKind := make(map[models.NoteKind][]string)
	for _, n := range notes {
		byKind[n.Kind] = append(byKind[n.Kind], n.Name)
	}
	return byKind
}

func TestSyncNowOnceDownloadsNewRemoteFiles(t *testing.T) {
	engine, remote, local := newTestEngine(t)

	remote.Put("a.txt", []byte("alpha"))
	remote.Put("b.txt", []byte("beta"))

	syncOnce(t, engine, local)

	assert.Equal(t, []byte("alpha"), local.Files["a.txt"])
	assert.Equal(t, []byte("beta"), local.Files["b.txt"])

	byKind := notesByKind(drainNotes(engine))
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, byKind[models.NoteNewDownloadOK])
}

func TestSyncNowOnceUploadsNewLocalFiles(t *testing.T) {
	engine, remote, local := newTestEngine(t)

	// First pass creates the state blob for the empty folder pair.
	syncOnce(t, engine, local)

	require.NoError(t, local.Write("new.txt", []byte("fresh")))
	syncOnce(t, engine, local)

	assert.Equal(t, []byte("fresh"), remote.Files["new.txt"])

	byKind := notesByKind(drainNotes(engine))
	assert.Equal(t, []string{"new.txt"}, byKind[models.NoteNewUploadOK])
}

func TestSyncNowOnceUploadsLocalEdit(t *testing.T) {
	engine, remote, local := newTestEngine(t)

	remote.Put("doc.txt", []byte("v1"))
	syncOnce(t, engine, local)
	drainNotes(engine)

	require.NoError(t, local.Write("doc.txt", []byte("v2")))
	syncOnce(t, engine, local)

	assert.Equal(t, []byte("v2"), remote.Files["doc.txt"])

	byKind := notesByKind(drainNotes(engine))
	assert.Equal(t, []string{"doc.txt"}, byKind[models.NoteUpdateUploadOK])
}

func TestSyncNowOncePropagatesLocalDelete(t *testing.T) {
	engine, remote, local := newTestEngine(t)

	remote.Put("gone.txt", []byte("bye"))
	syncOnce(t, engine, local)
	drainNotes(engine)

	require.NoError(t, local.Delete("gone.txt"))
	syncOnce(t, engine, local)

	_, exists := remote.Files["gone.txt"]
	assert.False(t, exists, "remote copy should be deleted")

	byKind := notesByKind(drainNotes(engine))
	assert.Equal(t, []string{"gone.txt"}, byKind[models.NoteRemoteDeleteOK])
}

func TestSyncNowOnceAppliesRemoteDelete(t *testing.T) {
	engine, remote, local := newTestEngine(t)

	remote.Put("gone.txt", []byte("bye"))
	syncOnce(t, engine, local)
	drainNotes(engine)

	_, err := remote.Delete(context.Background(), "gone.txt", "")
	require.NoError(t, err)
	remote.DeleteCalls = nil
	syncOnce(t, engine, local)

	assert.False(t, local.Exists("gone.txt"))

	byKind := notesByKind(drainNotes(engine))
	assert.Equal(t, []string{"gone.txt"}, byKind[models.NoteLocalDeleteOK])
}

func TestSyncNowOnceSkipsTransferWhenBothSidesConverged(t *testing.T) {
	engine, remote, local := newTestEngine(t)

	remote.Put("same.txt", []byte("v1"))
	syncOnce(t, engine, local)
	drainNotes(engine)
	remote.DownloadCalls = nil
	remote.UploadCalls = nil

	// Both sides move to identical new content.
	require.NoError(t, local.Write("same.txt", []byte("v2")))
	remote.Put("same.txt", []byte("v2"))
	syncOnce(t, engine, local)

	assert.Empty(t, remote.DownloadCalls, "matching content needs no transfer")
	assert.Empty(t, remote.UploadCalls, "matching content needs no transfer")
	assert.Empty(t, engine.Conflicts())

	for _, n := range drainNotes(engine) {
		assert.False(t, n.Kind.IsFailure(), "unexpected failure: %+v", n)
	}
}

// collectConflicts registers a confirmation callback that records
// raised conflicts without resolving them.
func collectConflicts(e *sync.Engine) *[]models.Conflict {
	raised := &[]models.Conflict{}
	e.OnConflict(func(name string, kind models.ConflictKind, conflictID string) {
		*raised = append(*raised, models.Conflict{ID: conflictID, Name: name, Kind: kind})
	})
	return raised
}

func TestConcurrentModificationRaisesConflict(t *testing.T) {
	engine, remote, local := newTestEngine(t)
	raised := collectConflicts(engine)

	remote.Put("doc.txt", []byte("base"))
	syncOnce(t, engine, local)
	drainNotes(engine)

	require.NoError(t, local.Write("doc.txt", []byte("local edit")))
	remote.Put("doc.txt", []byte("remote edit"))
	syncOnce(t, engine, local)

	require.Len(t, *raised, 1)
	assert.Equal(t, models.ConflictConcurrentModification, (*raised)[0].Kind)
	assert.Equal(t, "doc.txt", (*raised)[0].Name)

	// Neither side is touched while the decision is pending.
	assert.Equal(t, []byte("local edit"), local.Files["doc.txt"])
	assert.Equal(t, []byte("remote edit"), remote.Files["doc.txt"])
	assert.Len(t, engine.Conflicts(), 1)
}

func TestResolveConcurrentModification(t *testing.T) {
	tests := []struct {
		name       string
		action     models.ConflictAction
		wantLocal  string
		wantRemote string
	}{
		{"prefer remote", models.PreferRemote, "remote edit", "remote edit"},
		{"prefer local", models.PreferLocal, "local edit", "local edit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, remote, local := newTestEngine(t)
			raised := collectConflicts(engine)

			remote.Put("doc.txt", []byte("base"))
			syncOnce(t, engine, local)

			require.NoError(t, local.Write("doc.txt", []byte("local edit")))
			remote.Put("doc.txt", []byte("remote edit"))
			syncOnce(t, engine, local)
			require.Len(t, *raised, 1)

			err := engine.ResolveConflict(context.Background(), (*raised)[0].ID, tt.action)
			require.NoError(t, err)

			assert.Equal(t, tt.wantLocal, string(local.Files["doc.txt"]))
			assert.Equal(t, tt.wantRemote, string(remote.Files["doc.txt"]))
			assert.Empty(t, engine.Conflicts())
		})
	}
}

func TestRemoteDeletedLocalNewerConflict(t *testing.T) {
	engine, remote, local := newTestEngine(t)
	raised := collectConflicts(engine)

	remote.Put("doc.txt", []byte("base"))
	syncOnce(t, engine, local)

	require.NoError(t, local.Write("doc.txt", []byte("local edit")))
	_, err := remote.Delete(context.Background(), "doc.txt", "")
	require.NoError(t, err)
	syncOnce(t, engine, local)

	require.Len(t, *raised, 1)
	assert.Equal(t, models.ConflictRemoteDeletedLocalNewer, (*raised)[0].Kind)

	t.Run("prefer local restores the file remotely", func(t *testing.T) {
		err := engine.ResolveConflict(context.Background(), (*raised)[0].ID, models.PreferLocal)
		require.NoError(t, err)
		assert.Equal(t, []byte("local edit"), remote.Files["doc.txt"])
		assert.True(t, local.Exists("doc.txt"))
	})
}

func TestRemoteDeletedLocalNewerPreferRemote(t *testing.T) {
	engine, remote, local := newTestEngine(t)
	raised := collectConflicts(engine)

	remote.Put("doc.txt", []byte("base"))
	syncOnce(t, engine, local)

	require.NoError(t, local.Write("doc.txt", []byte("local edit")))
	_, err := remote.Delete(context.Background(), "doc.txt", "")
	require.NoError(t, err)
	syncOnce(t, engine, local)
	require.Len(t, *raised, 1)

	err = engine.ResolveConflict(context.Background(), (*raised)[0].ID, models.PreferRemote)
	require.NoError(t, err)

	assert.False(t, local.Exists("doc.txt"), "local copy should follow the remote delete")
	assert.Empty(t, engine.Conflicts())
}

func TestRemoteChangedLocalDeletedConflict(t *testing.T) {
	tests := []struct {
		name         string
		action       models.ConflictAction
		wantLocal    bool
		wantRemote   bool
		wantContents string
	}{
		{"prefer remote deletes remotely", models.PreferRemote, false, false, ""},
		{"prefer local restores the file locally", models.PreferLocal, true, true, "remote edit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, remote, local := newTestEngine(t)
			raised := collectConflicts(engine)

			remote.Put("doc.txt", []byte("base"))
			syncOnce(t, engine, local)

			require.NoError(t, local.Delete("doc.txt"))
			remote.Put("doc.txt", []byte("remote edit"))
			syncOnce(t, engine, local)

			require.Len(t, *raised, 1)
			require.Equal(t, models.ConflictRemoteChangedLocalDeleted, (*raised)[0].Kind)

			err := engine.ResolveConflict(context.Background(), (*raised)[0].ID, tt.action)
			require.NoError(t, err)

			assert.Equal(t, tt.wantLocal, local.Exists("doc.txt"))
			_, remoteExists := remote.Files["doc.txt"]
			assert.Equal(t, tt.wantRemote, remoteExists)
			if tt.wantLocal {
				assert.Equal(t, tt.wantContents, string(local.Files["doc.txt"]))
			}
		})
	}
}

func TestBothSidesChangedClassifiesAsConcurrentModification(t *testing.T) {
	engine, remote, local := newTestEngine(t)
	raised := collectConflicts(engine)

	remote.Put("doc.txt", []byte("base"))
	syncOnce(t, engine, local)

	require.NoError(t, local.Write("doc.txt", []byte("local edit")))
	remote.Put("doc.txt", []byte("remote edit"))
	syncOnce(t, engine, local)

	require.Len(t, *raised, 1)
	assert.Equal(t, models.ConflictConcurrentModification, (*raised)[0].Kind)
	assert.Empty(t, remote.Staged, "reconciliation must not stage anything")
}

func TestAutoResolveToRemote(t *testing.T) {
	engine, remote, local := newTestEngine(t)

	var confirmCalls int
	engine.OnConflict(func(name string, kind models.ConflictKind, conflictID string) {
		confirmCalls++
	})

	remote.Put("doc.txt", []byte("base"))
	syncOnce(t, engine, local)

	require.NoError(t, local.Write("doc.txt", []byte("local edit")))
	remote.Put("doc.txt", []byte("remote edit"))

	require.NoError(t, engine.SyncNowOnce(context.Background(), "/local", "remote", local, true))

	assert.Zero(t, confirmCalls, "auto-resolve must not ask the operator")
	assert.Equal(t, []byte("remote edit"), local.Files["doc.txt"])
	assert.Empty(t, engine.Conflicts())
}

func TestResolveUnknownConflict(t *testing.T) {
	engine, _, local := newTestEngine(t)
	syncOnce(t, engine, local)

	err := engine.ResolveConflict(context.Background(), "no-such-id", models.PreferRemote)
	assert.ErrorIs(t, err, models.ErrConflictNotFound)
}

func TestResolutionRemovesConflictEvenOnFailure(t *testing.T) {
	engine, remote, local := newTestEngine(t)
	raised := collectConflicts(engine)

	remote.Put("doc.txt", []byte("base"))
	syncOnce(t, engine, local)

	require.NoError(t, local.Write("doc.txt", []byte("local edit")))
	remote.Put("doc.txt", []byte("remote edit"))
	syncOnce(t, engine, local)
	require.Len(t, *raised, 1)
	drainNotes(engine)

	remote.DownloadError = errors.New("network down")
	err := engine.ResolveConflict(context.Background(), (*raised)[0].ID, models.PreferRemote)
	require.NoError(t, err)

	assert.Empty(t, engine.Conflicts(), "failed resolution still clears the registry")

	byKind := notesByKind(drainNotes(engine))
	assert.Equal(t, []string{"doc.txt"}, byKind[models.NoteDownloadFailed])

	err = engine.ResolveConflict(context.Background(), (*raised)[0].ID, models.PreferRemote)
	assert.ErrorIs(t, err, models.ErrConflictNotFound)
}

func TestConfirmationKindsSubset(t *testing.T) {
	engine, remote, local := newTestEngine(t)

	var asked []models.ConflictKind
	engine.OnConflict(func(name string, kind models.ConflictKind, conflictID string) {
		asked = append(asked, kind)
	})
	// Only deletes need a human; modifications follow the default.
	engine.SetConfirmationKinds(models.ConflictRemoteDeletedLocalNewer)

	remote.Put("doc.txt", []byte("base"))
	syncOnce(t, engine, local)

	require.NoError(t, local.Write("doc.txt", []byte("local edit")))
	remote.Put("doc.txt", []byte("remote edit"))
	syncOnce(t, engine, local)

	assert.Empty(t, asked)
	assert.Equal(t, []byte("remote edit"), local.Files["doc.txt"],
		"default action resolves without confirmation")
}

func TestListFolderFailureAbortsPass(t *testing.T) {
	engine, remote, local := newTestEngine(t)

	remote.ListError = errors.New("HTTP 503")
	err := engine.SyncNowOnce(context.Background(), "/local", "remote", local, false)
	assert.ErrorContains(t, err, "list remote folder")
}

func TestNonEmptyFolderWithoutStateIsSetupError(t *testing.T) {
	engine, _, local := newTestEngine(t)

	require.NoError(t, local.Write("stray.txt", []byte("x")))
	err := engine.SyncNowOnce(context.Background(), "/local", "remote", local, false)

	var setupErr *models.SetupError
	require.ErrorAs(t, err, &setupErr)
	assert.Equal(t, "/local", setupErr.Path)
}

func TestSyncNowOnceExcludesConcurrentStart(t *testing.T) {
	engine, remote, local := newTestEngine(t)

	// The confirmation callback runs while the pass is still in
	// flight, so it can observe the engine's busy state directly.
	var startErr, passErr error
	engine.OnConflict(func(name string, kind models.ConflictKind, id string) {
		startErr = engine.Start(context.Background(), "/local", "remote", local)
		passErr = engine.SyncNowOnce(context.Background(), "/local", "remote", local, false)
	})

	remote.Put("doc.txt", []byte("base"))
	syncOnce(t, engine, local)

	require.NoError(t, local.Write("doc.txt", []byte("local edit")))
	remote.Put("doc.txt", []byte("remote edit"))
	syncOnce(t, engine, local)

	assert.ErrorIs(t, startErr, models.ErrEngineRunning)
	assert.ErrorIs(t, passErr, models.ErrEngineRunning)
}
