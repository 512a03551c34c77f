package ft

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"ft-go/internal/model"
)

// Sort fields accepted by GetDirectoryContents.
const (
	SortByName      = "name"
	SortByCreatedAt = "createdAt"
	SortByUpdatedAt = "updatedAt"
)

// Sort directions.
const (
	Ascending  = "ASC"
	Descending = "DESC"
)

// Pagination selects one 1-indexed page of a listing.
type Pagination struct {
	Page       int
	PageLength int
}

// Sort selects the listing order.
type Sort struct {
	Field     string
	Direction string
}

// DefaultPageLength applies when pagination is requested without a length.
const DefaultPageLength = 20

// ListingService answers read-side questions about the tree: merged
// directory listings, child counts, aggregate sizes, and name search.
// Soft-deleted rows are invisible to every operation here.
type ListingService struct {
	database Database
}

// NewListingService creates a ListingService backed by the given store.
func NewListingService(database Database) *ListingService {
	return &ListingService{database: database}
}

// DirectoryContents is one page of a directory listing, split back into
// directories and files after the merged sort.
type DirectoryContents struct {
	Directories []*model.Directory
	Files       []*model.File
}

// listEntry wraps a directory or file so both sort uniformly.
type listEntry struct {
	dir  *model.Directory
	file *model.File
}

func (e listEntry) name() string {
	if e.dir != nil {
		return e.dir.Name
	}
	return e.file.Name
}

func (e listEntry) createdAt() time.Time {
	if e.dir != nil {
		return e.dir.CreatedAt
	}
	return e.file.CreatedAt
}

func (e listEntry) updatedAt() time.Time {
	if e.dir != nil {
		return e.dir.UpdatedAt
	}
	return e.file.UpdatedAt
}

// GetDirectoryContents returns one page of the live descendants of a
// directory.
//
// Sorting by name (the default) interleaves directories and files in one
// case-sensitive ascending sequence. Sorting by a timestamp field lists all
// directories as a block before all files, each block ordered by the
// requested field and direction; putting directories first here is policy,
// not an accident of implementation.
func (s *ListingService) GetDirectoryContents(id string, pagination *Pagination, sortBy *Sort) (*DirectoryContents, error) {
	dir, err := s.database.GetDirectory(id)
	if err != nil {
		return nil, fmt.Errorf("finding directory: %w", err)
	}
	if dir == nil || !dir.Live() {
		return nil, fmt.Errorf("%w: directory %s", ErrNotFound, id)
	}

	dirs, err := s.database.FindDirectoriesByAncestor(id)
	if err != nil {
		return nil, fmt.Errorf("finding directories: %w", err)
	}
	files, err := s.database.FindFilesByAncestor(id)
	if err != nil {
		return nil, fmt.Errorf("finding files: %w", err)
	}

	field, direction := SortByName, Ascending
	if sortBy != nil && sortBy.Field != "" {
		field = sortBy.Field
	}
	if sortBy != nil && sortBy.Direction != "" {
		direction = sortBy.Direction
	}

	var entries []listEntry
	if field == SortByName {
		for _, d := range dirs {
			entries = append(entries, listEntry{dir: d})
		}
		for _, f := range files {
			entries = append(entries, listEntry{file: f})
		}
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].name() < entries[j].name()
		})
	} else {
		key := func(e listEntry) time.Time { return e.createdAt() }
		if field == SortByUpdatedAt {
			key = func(e listEntry) time.Time { return e.updatedAt() }
		}
		before := func(a, b time.Time) bool { return a.Before(b) }
		if direction == Descending {
			before = func(a, b time.Time) bool { return b.Before(a) }
		}

		var dirEntries, fileEntries []listEntry
		for _, d := range dirs {
			dirEntries = append(dirEntries, listEntry{dir: d})
		}
		for _, f := range files {
			fileEntries = append(fileEntries, listEntry{file: f})
		}
		sort.SliceStable(dirEntries, func(i, j int) bool {
			return before(key(dirEntries[i]), key(dirEntries[j]))
		})
		sort.SliceStable(fileEntries, func(i, j int) bool {
			return before(key(fileEntries[i]), key(fileEntries[j]))
		})
		entries = append(dirEntries, fileEntries...)
	}

	entries = paginate(entries, pagination)

	contents := &DirectoryContents{}
	for _, e := range entries {
		if e.dir != nil {
			contents.Directories = append(contents.Directories, e.dir)
		} else {
			contents.Files = append(contents.Files, e.file)
		}
	}
	return contents, nil
}

// paginate slices one 1-indexed page out of entries.
func paginate(entries []listEntry, p *Pagination) []listEntry {
	page, pageLength := 1, DefaultPageLength
	if p != nil {
		if p.Page > 0 {
			page = p.Page
		}
		if p.PageLength > 0 {
			pageLength = p.PageLength
		}
	}

	start := (page - 1) * pageLength
	if start >= len(entries) {
		return nil
	}
	end := start + pageLength
	if end > len(entries) {
		end = len(entries)
	}
	return entries[start:end]
}

// CountDirectoryChildren returns the number of live files and directories
// anywhere beneath the given directory.
func (s *ListingService) CountDirectoryChildren(id string) (int64, error) {
	count, err := s.database.CountNodesByAncestor(id)
	if err != nil {
		return 0, fmt.Errorf("counting children: %w", err)
	}
	return count, nil
}

// GetDirectorySize sums the sizes of every live file version beneath the
// given directory. Returns nil when no live version exists, distinguishing
// "no content" from "zero bytes of content".
func (s *ListingService) GetDirectorySize(id string) (*int64, error) {
	size, err := s.database.SumVersionSizesByAncestor(id)
	if err != nil {
		return nil, fmt.Errorf("summing sizes: %w", err)
	}
	return size, nil
}

// SearchNodes returns live directories and files whose name contains query
// (case-insensitive), merged and sorted by name ascending.
func (s *ListingService) SearchNodes(query string) ([]model.Node, error) {
	dirs, err := s.database.FindDirectoriesByName(query)
	if err != nil {
		return nil, fmt.Errorf("searching directories: %w", err)
	}
	files, err := s.database.FindFilesByName(query)
	if err != nil {
		return nil, fmt.Errorf("searching files: %w", err)
	}

	nodes := make([]model.Node, 0, len(dirs)+len(files))
	for _, d := range dirs {
		nodes = append(nodes, model.Node{
			Kind: model.KindDirectory, ID: d.ID, Name: d.Name,
			CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
		})
	}
	for _, f := range files {
		nodes = append(nodes, model.Node{
			Kind: model.KindFile, ID: f.ID, Name: f.Name,
			CreatedAt: f.CreatedAt, UpdatedAt: f.UpdatedAt,
		})
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		return strings.ToLower(nodes[i].Name) < strings.ToLower(nodes[j].Name)
	})
	return nodes, nil
}
