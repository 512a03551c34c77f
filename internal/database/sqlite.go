package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ft-go/internal/ft"
	"ft-go/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements the ft.Database interface using SQLite.
// Ancestor chains and history logs are stored as JSON text columns;
// membership filters go through json_each.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	return &SQLiteDatabase{db: db, path: path}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db, path: ""}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// This is exported for use in tools and tests that need a properly configured SQLite connection.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// DB exposes the underlying connection for migrations and tools.
func (s *SQLiteDatabase) DB() *sql.DB { return s.db }

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	return s.db.Close()
}

const directoryColumns = "id, name, parent_id, ancestors, created_at, updated_at, deleted_at"

// ancestorFilter matches rows whose ancestors JSON array contains the bound id.
const ancestorFilter = "EXISTS (SELECT 1 FROM json_each(ancestors) WHERE json_each.value = ?)"

// Directory operations

func (s *SQLiteDatabase) GetDirectory(id string) (*model.Directory, error) {
	row := s.db.QueryRowContext(context.Background(),
		"SELECT "+directoryColumns+" FROM directories WHERE id = ?", id)
	d, err := scanDirectory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding directory: %w", err)
	}
	return d, nil
}

func (s *SQLiteDatabase) GetRootDirectory() (*model.Directory, error) {
	row := s.db.QueryRowContext(context.Background(),
		"SELECT "+directoryColumns+" FROM directories WHERE parent_id IS NULL LIMIT 1")
	d, err := scanDirectory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding root directory: %w", err)
	}
	return d, nil
}

func (s *SQLiteDatabase) InsertDirectory(d *model.Directory) error {
	ancestors, err := marshalStrings(d.Ancestors)
	if err != nil {
		return fmt.Errorf("encoding ancestors: %w", err)
	}
	_, err = s.db.ExecContext(context.Background(),
		`INSERT INTO directories (id, name, parent_id, ancestors, created_at, updated_at, deleted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, nullString(d.ParentID), ancestors, d.CreatedAt, d.UpdatedAt, nullTime(d.DeletedAt))
	if err != nil {
		return fmt.Errorf("inserting directory: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) UpdateDirectoryName(id, name string, updatedAt time.Time) error {
	result, err := s.db.ExecContext(context.Background(),
		"UPDATE directories SET name = ?, updated_at = ? WHERE id = ?", name, updatedAt, id)
	if err != nil {
		return fmt.Errorf("updating directory name: %w", err)
	}
	return requireRow(result, "directory", id)
}

func (s *SQLiteDatabase) ListDirectoryChildren(id string) ([]*model.Directory, error) {
	return s.queryDirectories(
		"SELECT "+directoryColumns+" FROM directories WHERE parent_id = ? AND deleted_at IS NULL ORDER BY name", id)
}

func (s *SQLiteDatabase) FindDirectoriesByAncestor(id string) ([]*model.Directory, error) {
	return s.queryDirectories(
		"SELECT "+directoryColumns+" FROM directories WHERE deleted_at IS NULL AND "+ancestorFilter+" ORDER BY name", id)
}

func (s *SQLiteDatabase) FindSoftDeletedDirectoriesByAncestor(id string) ([]*model.Directory, error) {
	return s.queryDirectories(
		"SELECT "+directoryColumns+" FROM directories WHERE deleted_at IS NOT NULL AND "+ancestorFilter, id)
}

func (s *SQLiteDatabase) FindDirectoriesByName(query string) ([]*model.Directory, error) {
	return s.queryDirectories(
		`SELECT `+directoryColumns+` FROM directories
		 WHERE deleted_at IS NULL AND instr(lower(name), lower(?)) > 0
		 ORDER BY name`, query)
}

func (s *SQLiteDatabase) queryDirectories(query string, args ...any) ([]*model.Directory, error) {
	rows, err := s.db.QueryContext(context.Background(), query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying directories: %w", err)
	}
	defer rows.Close()

	var dirs []*model.Directory
	for rows.Next() {
		d, err := scanDirectory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning directory: %w", err)
		}
		dirs = append(dirs, d)
	}
	return dirs, rows.Err()
}

// File operations

const fileColumns = "id, name, directory_id, ancestors, history, created_at, updated_at, deleted_at"

func (s *SQLiteDatabase) GetFile(id string) (*model.File, error) {
	row := s.db.QueryRowContext(context.Background(),
		"SELECT "+fileColumns+" FROM files WHERE id = ?", id)
	f, err := scanFile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding file: %w", err)
	}
	return f, nil
}

func (s *SQLiteDatabase) InsertFile(f *model.File) error {
	ancestors, err := marshalStrings(f.Ancestors)
	if err != nil {
		return fmt.Errorf("encoding ancestors: %w", err)
	}
	history, err := marshalHistory(f.History)
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}
	_, err = s.db.ExecContext(context.Background(),
		`INSERT INTO files (id, name, directory_id, ancestors, history, created_at, updated_at, deleted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Name, f.DirectoryID, ancestors, history, f.CreatedAt, f.UpdatedAt, nullTime(f.DeletedAt))
	if err != nil {
		return fmt.Errorf("inserting file: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) UpdateFile(id, name string, history []model.HistoryEntry, updatedAt time.Time) error {
	encoded, err := marshalHistory(history)
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}
	result, err := s.db.ExecContext(context.Background(),
		"UPDATE files SET name = ?, history = ?, updated_at = ? WHERE id = ?",
		name, encoded, updatedAt, id)
	if err != nil {
		return fmt.Errorf("updating file: %w", err)
	}
	return requireRow(result, "file", id)
}

func (s *SQLiteDatabase) FindFilesByDirectory(id string) ([]*model.File, error) {
	return s.queryFiles(
		"SELECT "+fileColumns+" FROM files WHERE directory_id = ? AND deleted_at IS NULL ORDER BY name", id)
}

func (s *SQLiteDatabase) FindFilesByAncestor(id string) ([]*model.File, error) {
	return s.queryFiles(
		"SELECT "+fileColumns+" FROM files WHERE deleted_at IS NULL AND "+ancestorFilter+" ORDER BY name", id)
}

func (s *SQLiteDatabase) FindSoftDeletedFilesByAncestor(id string) ([]*model.File, error) {
	return s.queryFiles(
		"SELECT "+fileColumns+" FROM files WHERE deleted_at IS NOT NULL AND "+ancestorFilter, id)
}

func (s *SQLiteDatabase) FindFilesByName(query string) ([]*model.File, error) {
	return s.queryFiles(
		`SELECT `+fileColumns+` FROM files
		 WHERE deleted_at IS NULL AND instr(lower(name), lower(?)) > 0
		 ORDER BY name`, query)
}

func (s *SQLiteDatabase) queryFiles(query string, args ...any) ([]*model.File, error) {
	rows, err := s.db.QueryContext(context.Background(), query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying files: %w", err)
	}
	defer rows.Close()

	var files []*model.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// FileVersion operations

const versionColumns = "id, file_id, key, mime_type, size, created_at, updated_at, deleted_at"

func (s *SQLiteDatabase) GetFileVersion(id string) (*model.FileVersion, error) {
	row := s.db.QueryRowContext(context.Background(),
		"SELECT "+versionColumns+" FROM file_versions WHERE id = ?", id)
	v, err := scanFileVersion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding file version: %w", err)
	}
	return v, nil
}

func (s *SQLiteDatabase) InsertFileVersion(v *model.FileVersion) error {
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO file_versions (id, file_id, key, mime_type, size, created_at, updated_at, deleted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.FileID, v.Key, v.MimeType, v.Size, v.CreatedAt, v.UpdatedAt, nullTime(v.DeletedAt))
	if err != nil {
		return fmt.Errorf("inserting file version: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) ListFileVersions(fileID string, limit, offset int) ([]*model.FileVersion, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT `+versionColumns+` FROM file_versions
		 WHERE file_id = ? AND deleted_at IS NULL
		 ORDER BY created_at LIMIT ? OFFSET ?`, fileID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying file versions: %w", err)
	}
	defer rows.Close()

	var versions []*model.FileVersion
	for rows.Next() {
		v, err := scanFileVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning file version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (s *SQLiteDatabase) SoftDeleteFileVersion(id string, deletedAt time.Time) error {
	result, err := s.db.ExecContext(context.Background(),
		"UPDATE file_versions SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL",
		deletedAt, deletedAt, id)
	if err != nil {
		return fmt.Errorf("deleting file version: %w", err)
	}
	return requireRow(result, "file version", id)
}

func (s *SQLiteDatabase) PurgeFileVersion(id string) error {
	_, err := s.db.ExecContext(context.Background(),
		"DELETE FROM file_versions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("purging file version: %w", err)
	}
	return nil
}

// Aggregates

func (s *SQLiteDatabase) CountNodesByAncestor(id string) (int64, error) {
	ctx := context.Background()

	var dirCount, fileCount int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM directories WHERE deleted_at IS NULL AND "+ancestorFilter, id).Scan(&dirCount)
	if err != nil {
		return 0, fmt.Errorf("counting directories: %w", err)
	}
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM files WHERE deleted_at IS NULL AND "+ancestorFilter, id).Scan(&fileCount)
	if err != nil {
		return 0, fmt.Errorf("counting files: %w", err)
	}
	return dirCount + fileCount, nil
}

func (s *SQLiteDatabase) SumVersionSizesByAncestor(id string) (*int64, error) {
	var sum sql.NullInt64
	err := s.db.QueryRowContext(context.Background(),
		`SELECT SUM(v.size) FROM file_versions v
		 INNER JOIN files f ON f.id = v.file_id
		 WHERE v.deleted_at IS NULL AND f.deleted_at IS NULL
		   AND EXISTS (SELECT 1 FROM json_each(f.ancestors) WHERE json_each.value = ?)`, id).Scan(&sum)
	if err != nil {
		return nil, fmt.Errorf("summing version sizes: %w", err)
	}
	if !sum.Valid {
		return nil, nil
	}
	return &sum.Int64, nil
}

// Transactions

// ApplyTreeChange applies every update in change inside a single transaction.
// Files are processed before directories so that purges remove leaf rows
// first; parent references are deferred to commit time anyway.
func (s *SQLiteDatabase) ApplyTreeChange(change ft.TreeChange) error {
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, fc := range change.Files {
		if err := applyFileChange(ctx, tx, fc, change.Now); err != nil {
			return err
		}
	}
	for _, dc := range change.Directories {
		if err := applyDirectoryChange(ctx, tx, dc, change.Now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing tree change: %w", err)
	}
	return nil
}

func applyFileChange(ctx context.Context, tx *sql.Tx, fc ft.FileChange, now time.Time) error {
	if fc.Purge {
		if _, err := tx.ExecContext(ctx, "DELETE FROM file_versions WHERE file_id = ?", fc.ID); err != nil {
			return fmt.Errorf("purging versions of file %s: %w", fc.ID, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM files WHERE id = ?", fc.ID); err != nil {
			return fmt.Errorf("purging file %s: %w", fc.ID, err)
		}
		return nil
	}

	sets := []string{"updated_at = ?"}
	args := []any{now}

	if fc.Name != "" {
		sets = append(sets, "name = ?")
		args = append(args, fc.Name)
	}
	if fc.DirectoryID != "" {
		sets = append(sets, "directory_id = ?")
		args = append(args, fc.DirectoryID)
	}
	if fc.Ancestors != nil {
		encoded, err := marshalStrings(fc.Ancestors)
		if err != nil {
			return fmt.Errorf("encoding ancestors for file %s: %w", fc.ID, err)
		}
		sets = append(sets, "ancestors = ?")
		args = append(args, encoded)
	}
	if fc.History != nil {
		encoded, err := marshalHistory(fc.History)
		if err != nil {
			return fmt.Errorf("encoding history for file %s: %w", fc.ID, err)
		}
		sets = append(sets, "history = ?")
		args = append(args, encoded)
	}
	if fc.SoftDelete {
		sets = append(sets, "deleted_at = ?")
		args = append(args, now)
	}

	args = append(args, fc.ID)
	result, err := tx.ExecContext(ctx,
		"UPDATE files SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("updating file %s: %w", fc.ID, err)
	}
	return requireRow(result, "file", fc.ID)
}

func applyDirectoryChange(ctx context.Context, tx *sql.Tx, dc ft.DirectoryChange, now time.Time) error {
	if dc.Purge {
		if _, err := tx.ExecContext(ctx, "DELETE FROM directories WHERE id = ?", dc.ID); err != nil {
			return fmt.Errorf("purging directory %s: %w", dc.ID, err)
		}
		return nil
	}

	sets := []string{"updated_at = ?"}
	args := []any{now}

	if dc.ParentID != nil {
		sets = append(sets, "parent_id = ?")
		args = append(args, *dc.ParentID)
	}
	if dc.Ancestors != nil {
		encoded, err := marshalStrings(dc.Ancestors)
		if err != nil {
			return fmt.Errorf("encoding ancestors for directory %s: %w", dc.ID, err)
		}
		sets = append(sets, "ancestors = ?")
		args = append(args, encoded)
	}
	if dc.SoftDelete {
		sets = append(sets, "deleted_at = ?")
		args = append(args, now)
	}

	args = append(args, dc.ID)
	result, err := tx.ExecContext(ctx,
		"UPDATE directories SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("updating directory %s: %w", dc.ID, err)
	}
	return requireRow(result, "directory", dc.ID)
}

// Scan helpers

type scanner interface {
	Scan(dest ...any) error
}

func scanDirectory(row scanner) (*model.Directory, error) {
	var (
		d         model.Directory
		parentID  sql.NullString
		ancestors string
		deletedAt sql.NullTime
	)
	if err := row.Scan(&d.ID, &d.Name, &parentID, &ancestors, &d.CreatedAt, &d.UpdatedAt, &deletedAt); err != nil {
		return nil, err
	}
	if parentID.Valid {
		d.ParentID = &parentID.String
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		d.DeletedAt = &t
	}
	if err := json.Unmarshal([]byte(ancestors), &d.Ancestors); err != nil {
		return nil, fmt.Errorf("decoding ancestors: %w", err)
	}
	return &d, nil
}

func scanFile(row scanner) (*model.File, error) {
	var (
		f         model.File
		ancestors string
		history   string
		deletedAt sql.NullTime
	)
	if err := row.Scan(&f.ID, &f.Name, &f.DirectoryID, &ancestors, &history, &f.CreatedAt, &f.UpdatedAt, &deletedAt); err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		f.DeletedAt = &t
	}
	if err := json.Unmarshal([]byte(ancestors), &f.Ancestors); err != nil {
		return nil, fmt.Errorf("decoding ancestors: %w", err)
	}
	if err := json.Unmarshal([]byte(history), &f.History); err != nil {
		return nil, fmt.Errorf("decoding history: %w", err)
	}
	return &f, nil
}

func scanFileVersion(row scanner) (*model.FileVersion, error) {
	var (
		v         model.FileVersion
		deletedAt sql.NullTime
	)
	if err := row.Scan(&v.ID, &v.FileID, &v.Key, &v.MimeType, &v.Size, &v.CreatedAt, &v.UpdatedAt, &deletedAt); err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		v.DeletedAt = &t
	}
	return &v, nil
}

func marshalStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func marshalHistory(entries []model.HistoryEntry) (string, error) {
	if entries == nil {
		entries = []model.HistoryEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// requireRow converts a zero-row update into an ft.ErrNotFound failure.
func requireRow(result sql.Result, entity, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", ft.ErrNotFound, entity, id)
	}
	return nil
}

// Compile-time check that SQLiteDatabase implements the ft.Database interface
var _ ft.Database = (*SQLiteDatabase)(nil)
