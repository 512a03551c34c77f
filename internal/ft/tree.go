package ft

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"ft-go/internal/model"
)

// TreeService implements structural operations on the directory tree:
// create, move, rename, soft delete, and purge. Every structural change
// recomputes the denormalized ancestor chains of the affected subtree and
// commits them in the same transaction as the change itself, so a reader
// never observes a half-repathed tree.
//
// Moves and deletes touching overlapping subtrees are serialized through a
// service-level mutex. Transaction isolation alone would keep each change
// atomic, but last-writer-wins between two interleaved subtree rewrites is
// not something we want to debug in production.
type TreeService struct {
	database Database
	logger   Logger
	clock    Clock
	idgen    IDGenerator

	mu sync.Mutex // serializes move/delete/purge
}

// NewTreeService creates a TreeService with the provided dependencies.
func NewTreeService(database Database, logger Logger, clock Clock, idgen IDGenerator) *TreeService {
	return &TreeService{
		database: database,
		logger:   logger,
		clock:    clock,
		idgen:    idgen,
	}
}

// DirectoryView is a directory with its live direct children.
type DirectoryView struct {
	Directory   *model.Directory
	Directories []*model.Directory
	Files       []*model.File
}

// EnsureRoot returns the tree root, creating it if the store is empty.
// The root is the only directory with a nil parent and the only one allowed
// to carry the reserved name.
func (s *TreeService) EnsureRoot() (*model.Directory, error) {
	root, err := s.database.GetRootDirectory()
	if err != nil {
		return nil, fmt.Errorf("finding root directory: %w", err)
	}
	if root != nil {
		return root, nil
	}

	now := s.clock.Now()
	root = &model.Directory{
		ID:        s.idgen.New(),
		Name:      model.RootName,
		ParentID:  nil,
		Ancestors: []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.database.InsertDirectory(root); err != nil {
		return nil, fmt.Errorf("creating root directory: %w", err)
	}
	s.logger.Info("root directory created", "id", root.ID)
	return root, nil
}

// CreateDirectory creates a directory under the given live parent.
func (s *TreeService) CreateDirectory(name, parentID string) (*model.Directory, error) {
	if name == model.RootName {
		return nil, ErrReservedName
	}

	parent, err := s.liveDirectory(parentID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, fmt.Errorf("%w: %s", ErrParentNotFound, parentID)
	}

	now := s.clock.Now()
	dir := &model.Directory{
		ID:        s.idgen.New(),
		Name:      name,
		ParentID:  &parent.ID,
		Ancestors: append(append([]string{}, parent.Ancestors...), parent.ID),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.database.InsertDirectory(dir); err != nil {
		return nil, fmt.Errorf("creating directory: %w", err)
	}

	s.logger.Info("directory created", "id", dir.ID, "name", name, "parent", parentID)
	return dir, nil
}

// GetDirectory returns a live directory together with its live direct
// children. Fails with ErrNotFound when id is absent or soft-deleted.
func (s *TreeService) GetDirectory(id string) (*DirectoryView, error) {
	dir, err := s.liveDirectory(id)
	if err != nil {
		return nil, err
	}
	if dir == nil {
		return nil, fmt.Errorf("%w: directory %s", ErrNotFound, id)
	}

	children, err := s.database.ListDirectoryChildren(id)
	if err != nil {
		return nil, fmt.Errorf("listing child directories: %w", err)
	}
	files, err := s.database.FindFilesByDirectory(id)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	return &DirectoryView{Directory: dir, Directories: children, Files: files}, nil
}

// MoveDirectory re-parents a directory under destinationID and rewrites the
// ancestor chains of the entire moved subtree in one transaction.
func (s *TreeService) MoveDirectory(id, destinationID string) (*model.Directory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, err := s.liveDirectory(id)
	if err != nil {
		return nil, err
	}
	if dir == nil {
		return nil, fmt.Errorf("%w: directory %s", ErrNotFound, id)
	}

	dest, err := s.liveDirectory(destinationID)
	if err != nil {
		return nil, err
	}
	if dest == nil {
		return nil, fmt.Errorf("%w: directory %s", ErrNotFound, destinationID)
	}

	// A directory may not become its own descendant.
	if dest.ID == dir.ID || contains(dest.Ancestors, dir.ID) {
		return nil, fmt.Errorf("%w: cannot move %s into %s", ErrCyclicMove, id, destinationID)
	}

	now := s.clock.Now()
	newChain := append(append([]string{}, dest.Ancestors...), dest.ID)

	change := TreeChange{Now: now}
	change.Directories = append(change.Directories, DirectoryChange{
		ID:        dir.ID,
		ParentID:  &dest.ID,
		Ancestors: newChain,
	})

	// Every descendant keeps its chain suffix from the moved directory down;
	// only the part above the moved directory is replaced.
	descendantDirs, err := s.database.FindDirectoriesByAncestor(dir.ID)
	if err != nil {
		return nil, fmt.Errorf("finding descendant directories: %w", err)
	}
	for _, d := range descendantDirs {
		change.Directories = append(change.Directories, DirectoryChange{
			ID:        d.ID,
			Ancestors: rewriteChain(d.Ancestors, dir.ID, newChain),
		})
	}

	descendantFiles, err := s.database.FindFilesByAncestor(dir.ID)
	if err != nil {
		return nil, fmt.Errorf("finding descendant files: %w", err)
	}
	for _, f := range descendantFiles {
		updated := rewriteChain(f.Ancestors, dir.ID, newChain)
		change.Files = append(change.Files, FileChange{
			ID:        f.ID,
			Ancestors: updated,
			History: appendHistory(f.History, model.HistoryEntry{
				Action:    model.ActionMoved,
				Ancestors: updated,
				At:        now,
			}),
		})
	}

	if err := s.database.ApplyTreeChange(change); err != nil {
		return nil, fmt.Errorf("moving directory: %w", err)
	}

	s.logger.Info("directory moved",
		"id", id, "destination", destinationID,
		"directories", len(descendantDirs)+1, "files", len(descendantFiles))

	moved, err := s.database.GetDirectory(id)
	if err != nil {
		return nil, fmt.Errorf("reloading moved directory: %w", err)
	}
	return moved, nil
}

// RenameDirectory changes a directory's display name. The root may not be
// renamed, and no other directory may take the reserved name.
func (s *TreeService) RenameDirectory(id, name string) (*model.Directory, error) {
	if strings.EqualFold(name, model.RootName) {
		return nil, ErrReservedName
	}

	dir, err := s.liveDirectory(id)
	if err != nil {
		return nil, err
	}
	if dir == nil {
		return nil, fmt.Errorf("%w: directory %s", ErrNotFound, id)
	}
	if dir.IsRoot() {
		return nil, fmt.Errorf("%w: root directory may not be renamed", ErrReservedName)
	}

	now := s.clock.Now()
	if err := s.database.UpdateDirectoryName(id, name, now); err != nil {
		return nil, fmt.Errorf("renaming directory: %w", err)
	}

	dir.Name = name
	dir.UpdatedAt = now
	return dir, nil
}

// DeleteDirectory soft-deletes a directory and cascades to every live
// descendant, all in one transaction. Descendant files go through the same
// logic as DeleteFile so their history logs record the deletion.
func (s *TreeService) DeleteDirectory(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, err := s.liveDirectory(id)
	if err != nil {
		return err
	}
	if dir == nil {
		return fmt.Errorf("%w: directory %s", ErrNotFound, id)
	}

	now := s.clock.Now()
	change := TreeChange{Now: now}
	change.Directories = append(change.Directories, DirectoryChange{ID: dir.ID, SoftDelete: true})

	descendantDirs, err := s.database.FindDirectoriesByAncestor(dir.ID)
	if err != nil {
		return fmt.Errorf("finding descendant directories: %w", err)
	}
	for _, d := range descendantDirs {
		change.Directories = append(change.Directories, DirectoryChange{ID: d.ID, SoftDelete: true})
	}

	descendantFiles, err := s.database.FindFilesByAncestor(dir.ID)
	if err != nil {
		return fmt.Errorf("finding descendant files: %w", err)
	}
	for _, f := range descendantFiles {
		change.Files = append(change.Files, fileDeleteChange(f, now))
	}

	if err := s.database.ApplyTreeChange(change); err != nil {
		return fmt.Errorf("deleting directory: %w", err)
	}

	s.logger.Info("directory deleted",
		"id", id, "directories", len(descendantDirs)+1, "files", len(descendantFiles))
	return nil
}

// PurgeDirectory physically removes an already soft-deleted directory and
// every soft-deleted descendant, including file versions. Live nodes are
// never purged.
func (s *TreeService) PurgeDirectory(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, err := s.database.GetDirectory(id)
	if err != nil {
		return fmt.Errorf("finding directory: %w", err)
	}
	if dir == nil {
		return fmt.Errorf("%w: directory %s", ErrNotFound, id)
	}
	if dir.Live() {
		return fmt.Errorf("directory %s is not deleted; delete it before purging", id)
	}

	now := s.clock.Now()
	change := TreeChange{Now: now}
	change.Directories = append(change.Directories, DirectoryChange{ID: dir.ID, Purge: true})

	descendantDirs, err := s.database.FindSoftDeletedDirectoriesByAncestor(dir.ID)
	if err != nil {
		return fmt.Errorf("finding descendant directories: %w", err)
	}
	for _, d := range descendantDirs {
		change.Directories = append(change.Directories, DirectoryChange{ID: d.ID, Purge: true})
	}

	descendantFiles, err := s.database.FindSoftDeletedFilesByAncestor(dir.ID)
	if err != nil {
		return fmt.Errorf("finding descendant files: %w", err)
	}
	for _, f := range descendantFiles {
		change.Files = append(change.Files, FileChange{ID: f.ID, Purge: true})
	}

	if err := s.database.ApplyTreeChange(change); err != nil {
		return fmt.Errorf("purging directory: %w", err)
	}

	s.logger.Info("directory purged",
		"id", id, "directories", len(descendantDirs)+1, "files", len(descendantFiles))
	return nil
}

// GetFile returns a live file. Fails with ErrNotFound when id is absent or
// soft-deleted.
func (s *TreeService) GetFile(id string) (*model.File, error) {
	f, err := s.liveFile(id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("%w: file %s", ErrNotFound, id)
	}
	return f, nil
}

// MoveFile moves a file into the given live directory, recomputing its
// ancestor chain and recording the move in its history.
func (s *TreeService) MoveFile(id, directoryID string) (*model.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.liveFile(id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("%w: file %s", ErrNotFound, id)
	}

	dest, err := s.liveDirectory(directoryID)
	if err != nil {
		return nil, err
	}
	if dest == nil {
		return nil, fmt.Errorf("%w: %s", ErrParentNotFound, directoryID)
	}

	now := s.clock.Now()
	updated := append(append([]string{}, dest.Ancestors...), dest.ID)
	history := appendHistory(f.History, model.HistoryEntry{
		Action:    model.ActionMoved,
		Ancestors: updated,
		At:        now,
	})

	change := TreeChange{Now: now}
	change.Files = append(change.Files, FileChange{
		ID:          f.ID,
		DirectoryID: dest.ID,
		Ancestors:   updated,
		History:     history,
	})
	if err := s.database.ApplyTreeChange(change); err != nil {
		return nil, fmt.Errorf("moving file: %w", err)
	}

	f.DirectoryID = dest.ID
	f.Ancestors = updated
	f.History = history
	f.UpdatedAt = now
	return f, nil
}

// RenameFile changes a file's display name and records the rename in its
// history.
func (s *TreeService) RenameFile(id, name string) (*model.File, error) {
	if strings.EqualFold(name, model.RootName) {
		return nil, ErrReservedName
	}

	f, err := s.liveFile(id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("%w: file %s", ErrNotFound, id)
	}

	now := s.clock.Now()
	history := appendHistory(f.History, model.HistoryEntry{
		Action: model.ActionRenamed,
		Name:   name,
		At:     now,
	})
	if err := s.database.UpdateFile(id, name, history, now); err != nil {
		return nil, fmt.Errorf("renaming file: %w", err)
	}

	f.Name = name
	f.History = history
	f.UpdatedAt = now
	return f, nil
}

// DeleteFile soft-deletes a file after appending a deletion entry to its
// history. The file's versions and blobs stay in the object store; blob
// collection is a separate concern.
func (s *TreeService) DeleteFile(id string) error {
	f, err := s.liveFile(id)
	if err != nil {
		return err
	}
	if f == nil {
		return fmt.Errorf("%w: file %s", ErrNotFound, id)
	}

	now := s.clock.Now()
	change := TreeChange{Now: now}
	change.Files = append(change.Files, fileDeleteChange(f, now))
	if err := s.database.ApplyTreeChange(change); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}

	s.logger.Info("file deleted", "id", id)
	return nil
}

// liveDirectory returns the directory when it exists and is not soft-deleted.
func (s *TreeService) liveDirectory(id string) (*model.Directory, error) {
	d, err := s.database.GetDirectory(id)
	if err != nil {
		return nil, fmt.Errorf("finding directory: %w", err)
	}
	if d == nil || !d.Live() {
		return nil, nil
	}
	return d, nil
}

// liveFile returns the file when it exists and is not soft-deleted.
func (s *TreeService) liveFile(id string) (*model.File, error) {
	f, err := s.database.GetFile(id)
	if err != nil {
		return nil, fmt.Errorf("finding file: %w", err)
	}
	if f == nil || !f.Live() {
		return nil, nil
	}
	return f, nil
}

// fileDeleteChange builds the change soft-deleting one file, history included.
func fileDeleteChange(f *model.File, now time.Time) FileChange {
	return FileChange{
		ID: f.ID,
		History: appendHistory(f.History, model.HistoryEntry{
			Action:  model.ActionDeleted,
			Deleted: true,
			At:      now,
		}),
		SoftDelete: true,
	}
}

// rewriteChain replaces the portion of chain above nodeID with newPrefix,
// keeping nodeID and everything below it.
func rewriteChain(chain []string, nodeID string, newPrefix []string) []string {
	for i, id := range chain {
		if id == nodeID {
			return append(append([]string{}, newPrefix...), chain[i:]...)
		}
	}
	// nodeID not present: the chain is already rooted elsewhere, leave the
	// suffix logic out and use the new prefix alone.
	return append([]string{}, newPrefix...)
}

// appendHistory returns a new log with entry appended; the original slice is
// never mutated.
func appendHistory(history []model.HistoryEntry, entry model.HistoryEntry) []model.HistoryEntry {
	updated := make([]model.HistoryEntry, 0, len(history)+1)
	updated = append(updated, history...)
	return append(updated, entry)
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
