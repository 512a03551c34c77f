package database

import (
	"errors"
	"testing"
	"time"

	"ft-go/internal/ft"
	"ft-go/internal/model"
)

// newTestDB creates a new in-memory database with schema applied.
func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()

	db, err := NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}

	if _, err := db.db.Exec(Schema); err != nil {
		db.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

var testTime = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func insertDirectory(t *testing.T, db *SQLiteDatabase, id string, parentID *string, ancestors []string) *model.Directory {
	t.Helper()
	d := &model.Directory{
		ID: id, Name: id, ParentID: parentID, Ancestors: ancestors,
		CreatedAt: testTime, UpdatedAt: testTime,
	}
	if err := db.InsertDirectory(d); err != nil {
		t.Fatalf("InsertDirectory(%s) error = %v", id, err)
	}
	return d
}

func insertFile(t *testing.T, db *SQLiteDatabase, id, directoryID string, ancestors []string) *model.File {
	t.Helper()
	f := &model.File{
		ID: id, Name: id + ".txt", DirectoryID: directoryID, Ancestors: ancestors,
		History:   []model.HistoryEntry{{Action: model.ActionCreated, Name: id + ".txt", At: testTime}},
		CreatedAt: testTime, UpdatedAt: testTime,
	}
	if err := db.InsertFile(f); err != nil {
		t.Fatalf("InsertFile(%s) error = %v", id, err)
	}
	return f
}

func insertVersion(t *testing.T, db *SQLiteDatabase, id, fileID string, size int64) {
	t.Helper()
	err := db.InsertFileVersion(&model.FileVersion{
		ID: id, FileID: fileID, Key: "key-" + id, MimeType: "text/plain", Size: size,
		CreatedAt: testTime, UpdatedAt: testTime,
	})
	if err != nil {
		t.Fatalf("InsertFileVersion(%s) error = %v", id, err)
	}
}

func TestSQLiteDatabase_GetDirectory(t *testing.T) {
	t.Run("returns nil when not found", func(t *testing.T) {
		db := newTestDB(t)

		dir, err := db.GetDirectory("nope")
		if err != nil {
			t.Fatalf("GetDirectory() error = %v", err)
		}
		if dir != nil {
			t.Errorf("GetDirectory() = %v, want nil", dir)
		}
	})

	t.Run("round trips ancestors and parent", func(t *testing.T) {
		db := newTestDB(t)
		root := insertDirectory(t, db, "root", nil, []string{})
		insertDirectory(t, db, "child", &root.ID, []string{root.ID})

		got, err := db.GetDirectory("child")
		if err != nil {
			t.Fatalf("GetDirectory() error = %v", err)
		}
		if got.ParentID == nil || *got.ParentID != "root" {
			t.Errorf("ParentID = %v, want root", got.ParentID)
		}
		if len(got.Ancestors) != 1 || got.Ancestors[0] != "root" {
			t.Errorf("Ancestors = %v, want [root]", got.Ancestors)
		}
		if !got.Live() {
			t.Error("freshly inserted directory is not live")
		}
	})
}

func TestSQLiteDatabase_GetRootDirectory(t *testing.T) {
	db := newTestDB(t)

	root, err := db.GetRootDirectory()
	if err != nil {
		t.Fatalf("GetRootDirectory() error = %v", err)
	}
	if root != nil {
		t.Errorf("GetRootDirectory() on empty store = %v, want nil", root)
	}

	inserted := insertDirectory(t, db, "root", nil, []string{})
	insertDirectory(t, db, "child", &inserted.ID, []string{inserted.ID})

	root, err = db.GetRootDirectory()
	if err != nil {
		t.Fatalf("GetRootDirectory() error = %v", err)
	}
	if root == nil || root.ID != "root" {
		t.Errorf("GetRootDirectory() = %v, want root", root)
	}
}

func TestSQLiteDatabase_FindByAncestor(t *testing.T) {
	db := newTestDB(t)
	root := insertDirectory(t, db, "root", nil, []string{})
	a := insertDirectory(t, db, "a", &root.ID, []string{"root"})
	insertDirectory(t, db, "b", &a.ID, []string{"root", "a"})
	insertDirectory(t, db, "c", &root.ID, []string{"root"})
	insertFile(t, db, "f1", "b", []string{"root", "a", "b"})
	insertFile(t, db, "f2", "c", []string{"root", "c"})

	t.Run("matches chain membership, not prefixes", func(t *testing.T) {
		dirs, err := db.FindDirectoriesByAncestor("a")
		if err != nil {
			t.Fatalf("FindDirectoriesByAncestor() error = %v", err)
		}
		if len(dirs) != 1 || dirs[0].ID != "b" {
			t.Errorf("descendants of a = %v, want [b]", dirs)
		}

		files, err := db.FindFilesByAncestor("a")
		if err != nil {
			t.Fatalf("FindFilesByAncestor() error = %v", err)
		}
		if len(files) != 1 || files[0].ID != "f1" {
			t.Errorf("files under a = %v, want [f1]", files)
		}
	})

	t.Run("excludes soft-deleted rows", func(t *testing.T) {
		change := ft.TreeChange{Now: testTime.Add(time.Hour)}
		change.Directories = append(change.Directories, ft.DirectoryChange{ID: "b", SoftDelete: true})
		if err := db.ApplyTreeChange(change); err != nil {
			t.Fatalf("ApplyTreeChange() error = %v", err)
		}

		dirs, err := db.FindDirectoriesByAncestor("a")
		if err != nil {
			t.Fatalf("FindDirectoriesByAncestor() error = %v", err)
		}
		if len(dirs) != 0 {
			t.Errorf("descendants of a = %v, want none", dirs)
		}

		deleted, err := db.FindSoftDeletedDirectoriesByAncestor("a")
		if err != nil {
			t.Fatalf("FindSoftDeletedDirectoriesByAncestor() error = %v", err)
		}
		if len(deleted) != 1 || deleted[0].ID != "b" {
			t.Errorf("soft-deleted descendants = %v, want [b]", deleted)
		}
	})
}

func TestSQLiteDatabase_FindByName(t *testing.T) {
	db := newTestDB(t)
	root := insertDirectory(t, db, "root", nil, []string{})
	reports := &model.Directory{
		ID: "d1", Name: "Reports", ParentID: &root.ID, Ancestors: []string{"root"},
		CreatedAt: testTime, UpdatedAt: testTime,
	}
	if err := db.InsertDirectory(reports); err != nil {
		t.Fatalf("InsertDirectory() error = %v", err)
	}
	insertFile(t, db, "report-2024", "d1", []string{"root", "d1"})

	dirs, err := db.FindDirectoriesByName("report")
	if err != nil {
		t.Fatalf("FindDirectoriesByName() error = %v", err)
	}
	if len(dirs) != 1 || dirs[0].ID != "d1" {
		t.Errorf("directories matching 'report' = %v, want [d1]", dirs)
	}

	files, err := db.FindFilesByName("REPORT")
	if err != nil {
		t.Fatalf("FindFilesByName() error = %v", err)
	}
	if len(files) != 1 || files[0].ID != "report-2024" {
		t.Errorf("files matching 'REPORT' = %v, want [report-2024]", files)
	}
}

func TestSQLiteDatabase_UpdateFile(t *testing.T) {
	t.Run("fails for a missing file", func(t *testing.T) {
		db := newTestDB(t)

		err := db.UpdateFile("nope", "name", nil, testTime)
		if !errors.Is(err, ft.ErrNotFound) {
			t.Errorf("UpdateFile() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("persists name and history", func(t *testing.T) {
		db := newTestDB(t)
		root := insertDirectory(t, db, "root", nil, []string{})
		f := insertFile(t, db, "f1", root.ID, []string{"root"})

		history := append(f.History, model.HistoryEntry{
			Action: model.ActionRenamed, Name: "renamed.txt", At: testTime.Add(time.Minute),
		})
		if err := db.UpdateFile(f.ID, "renamed.txt", history, testTime.Add(time.Minute)); err != nil {
			t.Fatalf("UpdateFile() error = %v", err)
		}

		got, err := db.GetFile(f.ID)
		if err != nil {
			t.Fatalf("GetFile() error = %v", err)
		}
		if got.Name != "renamed.txt" {
			t.Errorf("Name = %q, want renamed.txt", got.Name)
		}
		if len(got.History) != 2 || got.History[1].Action != model.ActionRenamed {
			t.Errorf("History = %+v, want created then renamed", got.History)
		}
	})
}

func TestSQLiteDatabase_FileVersions(t *testing.T) {
	t.Run("lists live versions with limit and offset", func(t *testing.T) {
		db := newTestDB(t)
		root := insertDirectory(t, db, "root", nil, []string{})
		insertFile(t, db, "f1", root.ID, []string{"root"})
		for _, id := range []string{"v1", "v2", "v3"} {
			insertVersion(t, db, id, "f1", 10)
		}

		page, err := db.ListFileVersions("f1", 2, 1)
		if err != nil {
			t.Fatalf("ListFileVersions() error = %v", err)
		}
		if len(page) != 2 {
			t.Errorf("page length = %d, want 2", len(page))
		}

		all, err := db.ListFileVersions("f1", 0, 0)
		if err != nil {
			t.Fatalf("ListFileVersions() error = %v", err)
		}
		if len(all) != 3 {
			t.Errorf("total = %d, want 3", len(all))
		}
	})

	t.Run("soft delete is final for the same row", func(t *testing.T) {
		db := newTestDB(t)
		root := insertDirectory(t, db, "root", nil, []string{})
		insertFile(t, db, "f1", root.ID, []string{"root"})
		insertVersion(t, db, "v1", "f1", 10)

		if err := db.SoftDeleteFileVersion("v1", testTime.Add(time.Minute)); err != nil {
			t.Fatalf("SoftDeleteFileVersion() error = %v", err)
		}
		if err := db.SoftDeleteFileVersion("v1", testTime.Add(time.Hour)); !errors.Is(err, ft.ErrNotFound) {
			t.Errorf("second SoftDeleteFileVersion() error = %v, want ErrNotFound", err)
		}

		got, err := db.GetFileVersion("v1")
		if err != nil {
			t.Fatalf("GetFileVersion() error = %v", err)
		}
		if got.Live() {
			t.Error("version still live after soft delete")
		}
	})
}

func TestSQLiteDatabase_Aggregates(t *testing.T) {
	db := newTestDB(t)
	root := insertDirectory(t, db, "root", nil, []string{})
	a := insertDirectory(t, db, "a", &root.ID, []string{"root"})
	insertDirectory(t, db, "b", &a.ID, []string{"root", "a"})
	insertFile(t, db, "f1", "b", []string{"root", "a", "b"})
	insertVersion(t, db, "v1", "f1", 30)
	insertVersion(t, db, "v2", "f1", 70)

	count, err := db.CountNodesByAncestor("root")
	if err != nil {
		t.Fatalf("CountNodesByAncestor() error = %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}

	sum, err := db.SumVersionSizesByAncestor("a")
	if err != nil {
		t.Fatalf("SumVersionSizesByAncestor() error = %v", err)
	}
	if sum == nil || *sum != 100 {
		t.Errorf("sum = %v, want 100", sum)
	}

	empty, err := db.SumVersionSizesByAncestor("b-sibling")
	if err != nil {
		t.Fatalf("SumVersionSizesByAncestor() error = %v", err)
	}
	if empty != nil {
		t.Errorf("sum for empty subtree = %d, want nil", *empty)
	}
}

func TestSQLiteDatabase_ApplyTreeChange(t *testing.T) {
	t.Run("rolls back everything when one update fails", func(t *testing.T) {
		db := newTestDB(t)
		root := insertDirectory(t, db, "root", nil, []string{})
		insertDirectory(t, db, "a", &root.ID, []string{"root"})

		change := ft.TreeChange{Now: testTime.Add(time.Hour)}
		change.Directories = append(change.Directories,
			ft.DirectoryChange{ID: "a", SoftDelete: true},
			ft.DirectoryChange{ID: "ghost", SoftDelete: true},
		)
		if err := db.ApplyTreeChange(change); !errors.Is(err, ft.ErrNotFound) {
			t.Fatalf("ApplyTreeChange() error = %v, want ErrNotFound", err)
		}

		a, err := db.GetDirectory("a")
		if err != nil {
			t.Fatalf("GetDirectory() error = %v", err)
		}
		if !a.Live() {
			t.Error("partial change was committed")
		}
	})

	t.Run("purging a file removes its versions", func(t *testing.T) {
		db := newTestDB(t)
		root := insertDirectory(t, db, "root", nil, []string{})
		insertFile(t, db, "f1", root.ID, []string{"root"})
		insertVersion(t, db, "v1", "f1", 10)

		change := ft.TreeChange{Now: testTime}
		change.Files = append(change.Files, ft.FileChange{ID: "f1", Purge: true})
		if err := db.ApplyTreeChange(change); err != nil {
			t.Fatalf("ApplyTreeChange() error = %v", err)
		}

		f, err := db.GetFile("f1")
		if err != nil {
			t.Fatalf("GetFile() error = %v", err)
		}
		if f != nil {
			t.Error("file still present after purge")
		}
		v, err := db.GetFileVersion("v1")
		if err != nil {
			t.Fatalf("GetFileVersion() error = %v", err)
		}
		if v != nil {
			t.Error("version still present after purge")
		}
	})

	t.Run("rewrites parent, ancestors and history together", func(t *testing.T) {
		db := newTestDB(t)
		root := insertDirectory(t, db, "root", nil, []string{})
		insertDirectory(t, db, "a", &root.ID, []string{"root"})
		c := insertDirectory(t, db, "c", &root.ID, []string{"root"})
		f := insertFile(t, db, "f1", "a", []string{"root", "a"})

		now := testTime.Add(time.Hour)
		change := ft.TreeChange{Now: now}
		change.Directories = append(change.Directories, ft.DirectoryChange{
			ID: "a", ParentID: &c.ID, Ancestors: []string{"root", "c"},
		})
		change.Files = append(change.Files, ft.FileChange{
			ID:        "f1",
			Ancestors: []string{"root", "c", "a"},
			History: append(f.History, model.HistoryEntry{
				Action: model.ActionMoved, Ancestors: []string{"root", "c", "a"}, At: now,
			}),
		})
		if err := db.ApplyTreeChange(change); err != nil {
			t.Fatalf("ApplyTreeChange() error = %v", err)
		}

		a, err := db.GetDirectory("a")
		if err != nil {
			t.Fatalf("GetDirectory() error = %v", err)
		}
		if a.ParentID == nil || *a.ParentID != "c" {
			t.Errorf("ParentID = %v, want c", a.ParentID)
		}
		if len(a.Ancestors) != 2 || a.Ancestors[1] != "c" {
			t.Errorf("Ancestors = %v, want [root c]", a.Ancestors)
		}

		moved, err := db.GetFile("f1")
		if err != nil {
			t.Fatalf("GetFile() error = %v", err)
		}
		if len(moved.History) != 2 || moved.History[1].Action != model.ActionMoved {
			t.Errorf("History = %+v, want created then moved", moved.History)
		}
		if !moved.UpdatedAt.After(f.UpdatedAt) {
			t.Errorf("UpdatedAt = %v, want after %v", moved.UpdatedAt, f.UpdatedAt)
		}
	})
}
