package ft

import (
	"context"
	"fmt"

	"ft-go/internal/model"
)

// VersioningService creates file records and their versions, binding each
// version to a fresh blob-store key, and issues the signed URLs callers use
// to move bytes in and out of the object store.
type VersioningService struct {
	database Database
	bucket   Bucket
	logger   Logger
	clock    Clock
	idgen    IDGenerator
}

// NewVersioningService creates a VersioningService with the provided
// dependencies.
func NewVersioningService(database Database, bucket Bucket, logger Logger, clock Clock, idgen IDGenerator) *VersioningService {
	return &VersioningService{
		database: database,
		bucket:   bucket,
		logger:   logger,
		clock:    clock,
		idgen:    idgen,
	}
}

// CreateFile creates a file under the given live directory together with its
// first version, and returns a signed put URL for uploading the content.
// If the URL cannot be issued the new records are removed again; a file
// record must never reference a key nobody can upload to.
func (s *VersioningService) CreateFile(ctx context.Context, name, directoryID, mimeType string, size int64) (*model.File, string, error) {
	dir, err := s.database.GetDirectory(directoryID)
	if err != nil {
		return nil, "", fmt.Errorf("finding directory: %w", err)
	}
	if dir == nil || !dir.Live() {
		return nil, "", fmt.Errorf("%w: %s", ErrParentNotFound, directoryID)
	}

	now := s.clock.Now()
	file := &model.File{
		ID:          s.idgen.New(),
		Name:        name,
		DirectoryID: dir.ID,
		Ancestors:   append(append([]string{}, dir.Ancestors...), dir.ID),
		History: []model.HistoryEntry{{
			Action: model.ActionCreated,
			Name:   name,
			At:     now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.database.InsertFile(file); err != nil {
		return nil, "", fmt.Errorf("creating file: %w", err)
	}

	version := &model.FileVersion{
		ID:        s.idgen.New(),
		FileID:    file.ID,
		Key:       s.idgen.New(),
		MimeType:  mimeType,
		Size:      size,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.database.InsertFileVersion(version); err != nil {
		s.rollbackFile(file.ID)
		return nil, "", fmt.Errorf("creating file version: %w", err)
	}

	url, err := s.bucket.IssueSignedURL(ctx, OpPut, version.Key)
	if err != nil {
		s.rollbackFile(file.ID)
		return nil, "", fmt.Errorf("issuing upload url: %w", err)
	}

	s.logger.Info("file created", "id", file.ID, "name", name, "directory", directoryID, "key", version.Key)
	return file, url, nil
}

// CreateFileVersion adds a new version to a live file and returns a signed
// put URL for its content. The file's history records the addition. The
// version record is removed again if the URL cannot be issued.
func (s *VersioningService) CreateFileVersion(ctx context.Context, fileID, mimeType string, size int64) (*model.FileVersion, string, error) {
	file, err := s.database.GetFile(fileID)
	if err != nil {
		return nil, "", fmt.Errorf("finding file: %w", err)
	}
	if file == nil || !file.Live() {
		return nil, "", fmt.Errorf("%w: file %s", ErrNotFound, fileID)
	}

	now := s.clock.Now()
	version := &model.FileVersion{
		ID:        s.idgen.New(),
		FileID:    file.ID,
		Key:       s.idgen.New(),
		MimeType:  mimeType,
		Size:      size,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.database.InsertFileVersion(version); err != nil {
		return nil, "", fmt.Errorf("creating file version: %w", err)
	}

	url, err := s.bucket.IssueSignedURL(ctx, OpPut, version.Key)
	if err != nil {
		if purgeErr := s.database.PurgeFileVersion(version.ID); purgeErr != nil {
			s.logger.Error("rolling back file version", "id", version.ID, "error", purgeErr)
		}
		return nil, "", fmt.Errorf("issuing upload url: %w", err)
	}

	history := appendHistory(file.History, model.HistoryEntry{
		Action: model.ActionVersionAdded,
		At:     now,
	})
	if err := s.database.UpdateFile(file.ID, file.Name, history, now); err != nil {
		return nil, "", fmt.Errorf("recording version in history: %w", err)
	}

	s.logger.Info("file version created", "file", fileID, "version", version.ID, "key", version.Key)
	return version, url, nil
}

// GetFileVersion returns a live version by id.
func (s *VersioningService) GetFileVersion(id string) (*model.FileVersion, error) {
	v, err := s.database.GetFileVersion(id)
	if err != nil {
		return nil, fmt.Errorf("finding file version: %w", err)
	}
	if v == nil || !v.Live() {
		return nil, fmt.Errorf("%w: file version %s", ErrNotFound, id)
	}
	return v, nil
}

// ListFileVersions returns one page of a file's live versions, oldest first.
func (s *VersioningService) ListFileVersions(fileID string, pagination *Pagination) ([]*model.FileVersion, error) {
	limit, offset := 0, 0
	if pagination != nil {
		length := pagination.PageLength
		if length <= 0 {
			length = DefaultPageLength
		}
		page := pagination.Page
		if page <= 0 {
			page = 1
		}
		limit = length
		offset = (page - 1) * length
	}
	versions, err := s.database.ListFileVersions(fileID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing file versions: %w", err)
	}
	return versions, nil
}

// DeleteFileVersion soft-deletes a version. The blob stays in the object
// store; version deletion is independent of file deletion.
func (s *VersioningService) DeleteFileVersion(id string) error {
	v, err := s.database.GetFileVersion(id)
	if err != nil {
		return fmt.Errorf("finding file version: %w", err)
	}
	if v == nil || !v.Live() {
		return fmt.Errorf("%w: file version %s", ErrNotFound, id)
	}
	if err := s.database.SoftDeleteFileVersion(id, s.clock.Now()); err != nil {
		return fmt.Errorf("deleting file version: %w", err)
	}
	return nil
}

// RequestDownload returns a signed get URL for a version key.
func (s *VersioningService) RequestDownload(ctx context.Context, key string) (string, error) {
	return s.bucket.IssueSignedURL(ctx, OpGet, key)
}

// RequestUpload returns a signed put URL for a version key.
func (s *VersioningService) RequestUpload(ctx context.Context, key string) (string, error) {
	return s.bucket.IssueSignedURL(ctx, OpPut, key)
}

// rollbackFile removes a partially created file and its versions.
func (s *VersioningService) rollbackFile(id string) {
	change := TreeChange{Now: s.clock.Now()}
	change.Files = append(change.Files, FileChange{ID: id, Purge: true})
	if err := s.database.ApplyTreeChange(change); err != nil {
		s.logger.Error("rolling back file", "id", id, "error", err)
	}
}
