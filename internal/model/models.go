package model

import "time"

// RootName is the reserved name of the single tree root directory.
// No other directory may carry it, and the root may not be renamed.
const RootName = "root"

// Directory is a node in the tree that can hold other directories and files.
// Ancestors is the denormalized chain of directory IDs from the root down to
// (but not including) this directory, root-first. It is recomputed inside the
// same transaction as any structural change; it is never derived lazily.
type Directory struct {
	ID        string  // UUID
	Name      string  // Display name, case-sensitive
	ParentID  *string // nil only for the root
	Ancestors []string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time // non-nil = soft-deleted
}

// Live reports whether the directory has not been soft-deleted.
func (d *Directory) Live() bool { return d.DeletedAt == nil }

// IsRoot reports whether this is the tree root.
func (d *Directory) IsRoot() bool { return d.ParentID == nil }

// File is a named leaf owned by exactly one directory. Its Ancestors chain
// has the same semantics as Directory.Ancestors and always ends with
// DirectoryID. History is an append-only log of changes; past entries are
// never rewritten.
type File struct {
	ID          string
	Name        string
	DirectoryID string
	Ancestors   []string
	History     []HistoryEntry
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// Live reports whether the file has not been soft-deleted.
func (f *File) Live() bool { return f.DeletedAt == nil }

// FileVersion binds one blob-store key to a file. Versions are immutable
// once created: they are never renamed or moved, only soft-deleted. The
// current version of a file is the most recently created live one.
type FileVersion struct {
	ID        string
	FileID    string
	Key       string // Blob-store key, generated at creation, immutable
	MimeType  string
	Size      int64 // Bytes, non-negative
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Live reports whether the version has not been soft-deleted.
func (v *FileVersion) Live() bool { return v.DeletedAt == nil }

// History actions.
const (
	ActionCreated      = "created"
	ActionRenamed      = "renamed"
	ActionMoved        = "moved"
	ActionDeleted      = "deleted"
	ActionVersionAdded = "version-added"
)

// HistoryEntry is one tagged change event in a file's history log.
// Only the fields relevant to the action are set.
type HistoryEntry struct {
	Action    string    `json:"action"`
	Name      string    `json:"name,omitempty"`      // created, renamed
	Ancestors []string  `json:"ancestors,omitempty"` // moved
	Deleted   bool      `json:"deleted,omitempty"`   // deleted
	At        time.Time `json:"at"`
}

// NodeKind distinguishes merged listing and search results.
type NodeKind string

const (
	KindDirectory NodeKind = "directory"
	KindFile      NodeKind = "file"
)

// Node is a directory or file viewed uniformly, as returned by listings
// and name search.
type Node struct {
	Kind      NodeKind
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
