package storage

// Well-known location of the persisted folder state inside the local
// sync folder. The watcher and listings must ignore it.
const (
	StateDirName  = "FolderState"
	StateFileName = ".folderState"
)

// StateRelPath returns the state blob's path relative to the sync
// folder root, in forward-slash form.
func StateRelPath() string {
	return StateDirName + "/" + StateFileName
}

// Store is the local folder adapter consumed by the sync engine. Read,
// Write and Delete wrap bounded retries around transient local I/O
// races (file briefly locked by another process).
type Store interface {
	// Exists reports whether the named file exists.
	Exists(name string) bool

	// Hash returns the content fingerprint of the named file.
	Hash(name string) (string, error)

	// Read returns the file's content.
	Read(name string) ([]byte, error)

	// Write stores content under the name, replacing any prior file.
	Write(name string, data []byte) error

	// Delete removes the named file. Removing an absent file is not
	// an error.
	Delete(name string) error

	// ListNames returns the names of all files in the folder,
	// excluding the persisted state blob.
	ListNames() ([]string, error)

	// SaveOpaqueState persists the serialized folder state blob.
	SaveOpaqueState(blob []byte) error

	// LoadOpaqueState returns the persisted blob, or (nil, nil) when
	// none exists yet.
	LoadOpaqueState() ([]byte, error)
}
