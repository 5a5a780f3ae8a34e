package models

// ConflictKind classifies an irreconcilable divergence between the
// local and remote sides. The set is closed; everything the engine
// cannot classify is reported as a failure, not a conflict.
type ConflictKind string

const (
	// ConflictConcurrentModification: local and remote both changed,
	// to different content.
	ConflictConcurrentModification ConflictKind = "concurrent_modification"

	// ConflictRemoteDeletedLocalNewer: remote notified a delete, but
	// the local copy's hash does not match what was deleted.
	ConflictRemoteDeletedLocalNewer ConflictKind = "remote_deleted_local_newer"

	// ConflictUploadRace: a local upload reached the remote side but
	// the remote's current content differs from the hash the local
	// side expected to overwrite. The upload is held in remote staging.
	ConflictUploadRace ConflictKind = "upload_race_with_remote"

	// ConflictRemoteChangedLocalDeleted: remote has a newer version of
	// a file the local side no longer has.
	ConflictRemoteChangedLocalDeleted ConflictKind = "remote_changed_local_deleted"
)

// AllConflictKinds lists every kind, for configuring the
// confirmation-required set.
func AllConflictKinds() []ConflictKind {
	return []ConflictKind{
		ConflictConcurrentModification,
		ConflictRemoteDeletedLocalNewer,
		ConflictUploadRace,
		ConflictRemoteChangedLocalDeleted,
	}
}

// Conflict is a pending decision awaiting resolution.
type Conflict struct {
	ID   string       `json:"id"`
	Name string       `json:"name"`
	Kind ConflictKind `json:"kind"`

	// Hash is the remote-side hash involved in the divergence, when
	// known. Empty for kinds where it does not apply.
	Hash string `json:"hash,omitempty"`

	// StagingToken identifies a remote-side temporary upload awaiting
	// confirmation or discard. Only set for ConflictUploadRace.
	StagingToken string `json:"staging_token,omitempty"`
}

// ConflictAction is the operator's (or the default policy's) decision.
type ConflictAction string

const (
	// PreferRemote takes the remote side's version of events.
	PreferRemote ConflictAction = "prefer_remote"

	// PreferLocal takes the local side's version of events.
	PreferLocal ConflictAction = "prefer_local"
)
