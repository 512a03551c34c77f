package ft

import (
	"time"

	"ft-go/internal/model"
)

// DirectoryChange is one directory row touched by a TreeChange.
// Nil/zero fields are left unchanged.
type DirectoryChange struct {
	ID         string
	ParentID   *string  // new parent; nil = unchanged
	Ancestors  []string // new chain; nil = unchanged
	SoftDelete bool     // set deletedAt
	Purge      bool     // physically remove the row (must already be soft-deleted)
}

// FileChange is one file row touched by a TreeChange.
type FileChange struct {
	ID          string
	Name        string               // new name; "" = unchanged
	DirectoryID string               // new owner; "" = unchanged
	Ancestors   []string             // new chain; nil = unchanged
	History     []model.HistoryEntry // full replacement log; nil = unchanged
	SoftDelete  bool
	Purge       bool // also removes the file's versions
}

// TreeChange is a batch of structural updates that must commit as one unit.
// Partial application of a move or cascade delete is a consistency violation,
// so the record store applies every change in a single transaction.
type TreeChange struct {
	Now         time.Time // stamped as updatedAt (or deletedAt) on touched rows
	Directories []DirectoryChange
	Files       []FileChange
}

// Database provides an interface for tree-record storage operations.
// Lookups return (nil, nil) when no row exists; callers decide how absent
// and soft-deleted records surface to their own callers.
type Database interface {
	// Directory operations

	// GetDirectory returns a directory by id, soft-deleted rows included.
	GetDirectory(id string) (*model.Directory, error)

	// GetRootDirectory returns the single parentless directory, if present.
	GetRootDirectory() (*model.Directory, error)

	// InsertDirectory stores a new directory row.
	InsertDirectory(d *model.Directory) error

	// UpdateDirectoryName renames a directory.
	UpdateDirectoryName(id, name string, updatedAt time.Time) error

	// ListDirectoryChildren returns the live directories whose parent is id.
	ListDirectoryChildren(id string) ([]*model.Directory, error)

	// FindDirectoriesByAncestor returns the live directories having id in
	// their ancestor chain.
	FindDirectoriesByAncestor(id string) ([]*model.Directory, error)

	// FindDirectoriesByName returns live directories whose name contains
	// query (case-insensitive), ordered by name ascending.
	FindDirectoriesByName(query string) ([]*model.Directory, error)

	// FindSoftDeletedDirectoriesByAncestor returns the soft-deleted
	// directories having id in their ancestor chain. Used by purge.
	FindSoftDeletedDirectoriesByAncestor(id string) ([]*model.Directory, error)

	// File operations

	// GetFile returns a file by id, soft-deleted rows included.
	GetFile(id string) (*model.File, error)

	// InsertFile stores a new file row.
	InsertFile(f *model.File) error

	// UpdateFile rewrites a file's name and history log.
	UpdateFile(id, name string, history []model.HistoryEntry, updatedAt time.Time) error

	// FindFilesByDirectory returns the live files owned directly by id.
	FindFilesByDirectory(id string) ([]*model.File, error)

	// FindFilesByAncestor returns the live files having id in their
	// ancestor chain.
	FindFilesByAncestor(id string) ([]*model.File, error)

	// FindFilesByName returns live files whose name contains query
	// (case-insensitive), ordered by name ascending.
	FindFilesByName(query string) ([]*model.File, error)

	// FindSoftDeletedFilesByAncestor returns the soft-deleted files having
	// id in their ancestor chain. Used by purge.
	FindSoftDeletedFilesByAncestor(id string) ([]*model.File, error)

	// FileVersion operations

	// GetFileVersion returns a version by id, soft-deleted rows included.
	GetFileVersion(id string) (*model.FileVersion, error)

	// InsertFileVersion stores a new version row.
	InsertFileVersion(v *model.FileVersion) error

	// ListFileVersions returns the live versions of a file, oldest first.
	// limit <= 0 means no limit.
	ListFileVersions(fileID string, limit, offset int) ([]*model.FileVersion, error)

	// SoftDeleteFileVersion marks a version as deleted.
	SoftDeleteFileVersion(id string, deletedAt time.Time) error

	// PurgeFileVersion physically removes a version row. Used to roll back
	// version creation when no upload URL could be issued for it.
	PurgeFileVersion(id string) error

	// Aggregates

	// CountNodesByAncestor returns the number of live files plus live
	// directories having id in their ancestor chain.
	CountNodesByAncestor(id string) (int64, error)

	// SumVersionSizesByAncestor sums the sizes of live versions of live
	// files having id in their ancestor chain. Returns nil when no such
	// version exists.
	SumVersionSizesByAncestor(id string) (*int64, error)

	// Transactions

	// ApplyTreeChange applies every update in change inside a single
	// transaction. If any update fails, none apply.
	ApplyTreeChange(change TreeChange) error

	// Close closes the database connection.
	Close() error
}
