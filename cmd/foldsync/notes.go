package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/foldsync/foldsync/internal/models"
)

// noteLabel maps a notification kind to its console wording.
func noteLabel(kind models.NoteKind) string {
	switch kind {
	case models.NoteNewDownloadOK:
		return "downloaded (new)"
	case models.NoteUpdateDownloadOK:
		return "downloaded (updated)"
	case models.NoteNewUploadOK:
		return "uploaded (new)"
	case models.NoteUpdateUploadOK:
		return "uploaded (updated)"
	case models.NoteLocalDeleteOK:
		return "deleted locally"
	case models.NoteRemoteDeleteOK:
		return "deleted remotely"
	case models.NoteDownloadFailed:
		return "download failed"
	case models.NoteUploadFailed:
		return "upload failed"
	case models.NoteConfirmUploadFailed:
		return "upload confirmation failed"
	case models.NoteReadLocalFailed:
		return "local read failed"
	case models.NoteWriteLocalFailed:
		return "local write failed"
	case models.NoteLocalDeleteFailed:
		return "local delete failed"
	case models.NoteRemoteDeleteFailed:
		return "remote delete failed"
	case models.NoteConflict:
		return "conflict"
	case models.NoteInfo:
		return "info"
	default:
		return "failed"
	}
}

// renderNote prints one notification with outcome-appropriate color.
func renderNote(n models.Notification) {
	line := fmt.Sprintf("%-20s %s", noteLabel(n.Kind), n.Name)
	if n.Message != "" {
		line += ": " + n.Message
	}

	switch {
	case n.Kind == models.NoteConflict:
		printWarn("%s", line)
	case n.Kind == models.NoteInfo:
		printInfo("%s", line)
	case n.Kind.IsFailure():
		printError("%s", line)
	default:
		printSuccess("%s", line)
	}
}

// conflictQuestion describes a pending conflict in operator terms.
func conflictQuestion(name string, kind models.ConflictKind) string {
	switch kind {
	case models.ConflictConcurrentModification:
		return fmt.Sprintf("%s was changed both locally and remotely", name)
	case models.ConflictRemoteDeletedLocalNewer:
		return fmt.Sprintf("%s was deleted remotely but your local copy is newer", name)
	case models.ConflictUploadRace:
		return fmt.Sprintf("%s changed remotely while your version was being uploaded", name)
	case models.ConflictRemoteChangedLocalDeleted:
		return fmt.Sprintf("%s was deleted locally but changed remotely", name)
	default:
		return fmt.Sprintf("%s diverged (%s)", name, kind)
	}
}

// promptAction asks the operator to pick a side on stdin.
func promptAction(in *bufio.Reader, name string, kind models.ConflictKind) models.ConflictAction {
	printWarn("%s", conflictQuestion(name, kind))

	for {
		fmt.Fprint(os.Stdout, "Keep [r]emote or [l]ocal version? ")

		line, err := in.ReadString('\n')
		if err != nil {
			printWarn("no answer, keeping the remote version")
			return models.PreferRemote
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "r", "remote":
			return models.PreferRemote
		case "l", "local":
			return models.PreferLocal
		}
	}
}
