package models_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foldsync/foldsync/internal/models"
)

func TestFolderStateMutations(t *testing.T) {
	st := models.NewFolderState("/data/docs", "team-docs")

	st.SetLocal("a.txt", "h1", models.StatusUploading)
	st.SetLocal("a.txt", "h2", models.StatusSynced)
	st.SetRemote("a.txt", "h2", models.StatusSynced)

	local, ok := st.LocalFile("a.txt")
	require.True(t, ok)
	assert.Equal(t, "h2", local.Hash, "set replaces the prior record")
	assert.Equal(t, models.StatusSynced, local.Status)

	st.RemoveLocal("a.txt")
	_, ok = st.LocalFile("a.txt")
	assert.False(t, ok)

	// Removing what is not there is a no-op.
	st.RemoveLocal("a.txt")
	st.RemoveRemote("never.txt")
}

func TestFolderStateClone(t *testing.T) {
	st := models.NewFolderState("/data/docs", "team-docs")
	st.SetLocal("a.txt", "h1", models.StatusSynced)

	clone := st.Clone()
	clone.SetLocal("a.txt", "tampered", models.StatusIgnored)
	clone.SetRemote("b.txt", "h2", models.StatusSynced)

	rec, _ := st.LocalFile("a.txt")
	assert.Equal(t, "h1", rec.Hash)
	_, ok := st.RemoteFile("b.txt")
	assert.False(t, ok)
}

func TestFolderStateJSONRoundtrip(t *testing.T) {
	st := models.NewFolderState("/data/docs", "team-docs")
	st.SetLocal("a.txt", "h1", models.StatusSynced)
	st.SetRemote("a.txt", "h1", models.StatusSynced)

	blob, err := json.Marshal(st)
	require.NoError(t, err)

	var restored models.FolderState
	require.NoError(t, json.Unmarshal(blob, &restored))
	require.NoError(t, restored.Validate())

	assert.Equal(t, st.LocalPath, restored.LocalPath)
	assert.Equal(t, st.LocalFiles, restored.LocalFiles)
	assert.Equal(t, st.RemoteFiles, restored.RemoteFiles)
}

func TestFolderStateValidate(t *testing.T) {
	st := models.NewFolderState("/data/docs", "team-docs")
	assert.NoError(t, st.Validate())

	st.LocalFiles["a.txt"] = models.FileRecord{Name: "b.txt", Hash: "h1"}
	assert.Error(t, st.Validate(), "record name must match its key")

	var zero models.FolderState
	assert.Error(t, zero.Validate(), "nil maps are invalid")
}

func TestNotificationIsFailure(t *testing.T) {
	assert.True(t, models.NoteUploadFailed.IsFailure())
	assert.True(t, models.NoteFailure.IsFailure())
	assert.False(t, models.NoteNewDownloadOK.IsFailure())
	assert.False(t, models.NoteInfo.IsFailure())
	assert.False(t, models.NoteConflict.IsFailure())
}

func TestErrorMessages(t *testing.T) {
	setup := &models.SetupError{Path: "/data/docs", Reason: "new sync folder must be empty"}
	assert.Contains(t, setup.Error(), "/data/docs")

	ioErr := &models.LocalIOError{Op: "read", Name: "a.txt", Attempts: 50, Err: assert.AnError}
	assert.Contains(t, ioErr.Error(), "50 attempts")
	assert.ErrorIs(t, ioErr, assert.AnError)

	terr := &models.TransportError{Op: "upload", Name: "a.txt", Err: assert.AnError}
	assert.Contains(t, terr.Error(), "upload")
	assert.ErrorIs(t, terr, assert.AnError)

	amb := &models.AmbiguousStateError{Name: "a.txt", Expected: "h1", Actual: "h2"}
	assert.Contains(t, amb.Error(), "expected hash h1")

	unguarded := &models.AmbiguousStateError{Name: "a.txt"}
	assert.Contains(t, unguarded.Error(), "no guard sent")
}
