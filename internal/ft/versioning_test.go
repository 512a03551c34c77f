package ft_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"ft-go/internal/ft"
	"ft-go/internal/model"
	"ft-go/internal/testutil"
)

// versioningFixture wires a VersioningService over the tree fixture and an
// in-memory bucket.
type versioningFixture struct {
	*fixture
	bucket     ft.Bucket
	versioning *ft.VersioningService
}

func newVersioningFixture(t *testing.T) *versioningFixture {
	t.Helper()
	fx := newFixture(t)
	b := testutil.NewTestBucket(fx.clock)
	return &versioningFixture{
		fixture:    fx,
		bucket:     b,
		versioning: ft.NewVersioningService(fx.db, b, ft.NewNopLogger(), fx.clock, testutil.NewStubIDGenerator()),
	}
}

// deadBucket fails to issue URLs, simulating an unreachable object store.
type deadBucket struct {
	ft.Bucket
}

var errBucketDown = errors.New("bucket unreachable")

func (deadBucket) IssueSignedURL(context.Context, ft.Operation, string) (string, error) {
	return "", errBucketDown
}

func TestVersioningService_CreateFile(t *testing.T) {
	t.Run("creates a file with a first version and a working upload url", func(t *testing.T) {
		fx := newVersioningFixture(t)
		ctx := context.Background()

		file, uploadURL, err := fx.versioning.CreateFile(ctx, "notes.txt", fx.root.ID, "text/plain", 5)
		if err != nil {
			t.Fatalf("CreateFile() error = %v", err)
		}
		if file.Name != "notes.txt" || file.DirectoryID != fx.root.ID {
			t.Errorf("file = %+v, want notes.txt under root", file)
		}
		if len(file.History) != 1 || file.History[0].Action != model.ActionCreated {
			t.Errorf("history = %+v, want a single created entry", file.History)
		}

		versions, err := fx.versioning.ListFileVersions(file.ID, nil)
		if err != nil {
			t.Fatalf("ListFileVersions() error = %v", err)
		}
		if len(versions) != 1 {
			t.Fatalf("versions = %d, want 1", len(versions))
		}

		// The returned URL accepts an upload for the version's key.
		if err := fx.bucket.StoreByToken(ctx, uploadURL, ft.Object{Body: []byte("hello"), ContentType: "text/plain"}); err != nil {
			t.Fatalf("StoreByToken() error = %v", err)
		}
		info, err := fx.bucket.Head(ctx, versions[0].Key)
		if err != nil {
			t.Fatalf("Head() error = %v", err)
		}
		if info.ContentLength != 5 {
			t.Errorf("stored length = %d, want 5", info.ContentLength)
		}
	})

	t.Run("rejects a missing or deleted directory", func(t *testing.T) {
		fx := newVersioningFixture(t)
		ctx := context.Background()
		dir := fx.mkdir(t, "docs", fx.root.ID)
		if err := fx.tree.DeleteDirectory(dir.ID); err != nil {
			t.Fatalf("DeleteDirectory() error = %v", err)
		}

		if _, _, err := fx.versioning.CreateFile(ctx, "a.txt", "nope", "text/plain", 0); !errors.Is(err, ft.ErrParentNotFound) {
			t.Errorf("CreateFile(missing) error = %v, want ErrParentNotFound", err)
		}
		if _, _, err := fx.versioning.CreateFile(ctx, "a.txt", dir.ID, "text/plain", 0); !errors.Is(err, ft.ErrParentNotFound) {
			t.Errorf("CreateFile(deleted) error = %v, want ErrParentNotFound", err)
		}
	})

	t.Run("rolls back the file when no upload url can be issued", func(t *testing.T) {
		fx := newVersioningFixture(t)
		broken := ft.NewVersioningService(fx.db, deadBucket{}, ft.NewNopLogger(), fx.clock, testutil.NewStubIDGenerator())

		_, _, err := broken.CreateFile(context.Background(), "notes.txt", fx.root.ID, "text/plain", 5)
		if !errors.Is(err, errBucketDown) {
			t.Fatalf("CreateFile() error = %v, want errBucketDown", err)
		}

		files, err := fx.db.FindFilesByDirectory(fx.root.ID)
		if err != nil {
			t.Fatalf("FindFilesByDirectory() error = %v", err)
		}
		if len(files) != 0 {
			t.Errorf("files after rollback = %d, want 0", len(files))
		}
	})
}

func TestVersioningService_CreateFileVersion(t *testing.T) {
	t.Run("adds a version and records it in history", func(t *testing.T) {
		fx := newVersioningFixture(t)
		ctx := context.Background()
		file, _, err := fx.versioning.CreateFile(ctx, "notes.txt", fx.root.ID, "text/plain", 5)
		if err != nil {
			t.Fatalf("CreateFile() error = %v", err)
		}

		version, uploadURL, err := fx.versioning.CreateFileVersion(ctx, file.ID, "text/plain", 9)
		if err != nil {
			t.Fatalf("CreateFileVersion() error = %v", err)
		}
		if version.FileID != file.ID || version.Size != 9 {
			t.Errorf("version = %+v, want size 9 on %s", version, file.ID)
		}
		if uploadURL == "" {
			t.Error("upload url is empty")
		}

		updated, err := fx.db.GetFile(file.ID)
		if err != nil {
			t.Fatalf("GetFile() error = %v", err)
		}
		last := updated.History[len(updated.History)-1]
		if last.Action != model.ActionVersionAdded {
			t.Errorf("last history action = %q, want %q", last.Action, model.ActionVersionAdded)
		}

		versions, err := fx.versioning.ListFileVersions(file.ID, nil)
		if err != nil {
			t.Fatalf("ListFileVersions() error = %v", err)
		}
		if len(versions) != 2 {
			t.Errorf("versions = %d, want 2", len(versions))
		}
	})

	t.Run("rejects deleted files", func(t *testing.T) {
		fx := newVersioningFixture(t)
		ctx := context.Background()
		file, _, err := fx.versioning.CreateFile(ctx, "notes.txt", fx.root.ID, "text/plain", 5)
		if err != nil {
			t.Fatalf("CreateFile() error = %v", err)
		}
		if err := fx.tree.DeleteFile(file.ID); err != nil {
			t.Fatalf("DeleteFile() error = %v", err)
		}

		if _, _, err := fx.versioning.CreateFileVersion(ctx, file.ID, "text/plain", 9); !errors.Is(err, ft.ErrNotFound) {
			t.Errorf("CreateFileVersion() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("rolls back the version when no upload url can be issued", func(t *testing.T) {
		fx := newVersioningFixture(t)
		ctx := context.Background()
		file, _, err := fx.versioning.CreateFile(ctx, "notes.txt", fx.root.ID, "text/plain", 5)
		if err != nil {
			t.Fatalf("CreateFile() error = %v", err)
		}

		broken := ft.NewVersioningService(fx.db, deadBucket{}, ft.NewNopLogger(), fx.clock, testutil.NewStubIDGenerator())
		if _, _, err := broken.CreateFileVersion(ctx, file.ID, "text/plain", 9); !errors.Is(err, errBucketDown) {
			t.Fatalf("CreateFileVersion() error = %v, want errBucketDown", err)
		}

		versions, err := fx.versioning.ListFileVersions(file.ID, nil)
		if err != nil {
			t.Fatalf("ListFileVersions() error = %v", err)
		}
		if len(versions) != 1 {
			t.Errorf("versions after rollback = %d, want 1", len(versions))
		}
		unchanged, err := fx.db.GetFile(file.ID)
		if err != nil {
			t.Fatalf("GetFile() error = %v", err)
		}
		if got := unchanged.History[len(unchanged.History)-1].Action; got == model.ActionVersionAdded {
			t.Error("history records a version that was rolled back")
		}
	})
}

func TestVersioningService_ListFileVersions(t *testing.T) {
	fx := newVersioningFixture(t)
	ctx := context.Background()
	file, _, err := fx.versioning.CreateFile(ctx, "notes.txt", fx.root.ID, "text/plain", 1)
	if err != nil {
		t.Fatalf("CreateFile() error = %v", err)
	}
	for i := 0; i < 4; i++ {
		fx.clock.Advance(time.Second)
		if _, _, err := fx.versioning.CreateFileVersion(ctx, file.ID, "text/plain", int64(i)); err != nil {
			t.Fatalf("CreateFileVersion() error = %v", err)
		}
	}

	page, err := fx.versioning.ListFileVersions(file.ID, &ft.Pagination{Page: 2, PageLength: 2})
	if err != nil {
		t.Fatalf("ListFileVersions() error = %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("page length = %d, want 2", len(page))
	}

	all, err := fx.versioning.ListFileVersions(file.ID, nil)
	if err != nil {
		t.Fatalf("ListFileVersions() error = %v", err)
	}
	if len(all) != 5 {
		t.Errorf("total versions = %d, want 5", len(all))
	}
	// Oldest first.
	for i := 1; i < len(all); i++ {
		if all[i].CreatedAt.Before(all[i-1].CreatedAt) {
			t.Errorf("versions out of order at %d", i)
		}
	}
}

func TestVersioningService_DeleteFileVersion(t *testing.T) {
	fx := newVersioningFixture(t)
	ctx := context.Background()
	file, _, err := fx.versioning.CreateFile(ctx, "notes.txt", fx.root.ID, "text/plain", 1)
	if err != nil {
		t.Fatalf("CreateFile() error = %v", err)
	}
	versions, err := fx.versioning.ListFileVersions(file.ID, nil)
	if err != nil {
		t.Fatalf("ListFileVersions() error = %v", err)
	}

	if err := fx.versioning.DeleteFileVersion(versions[0].ID); err != nil {
		t.Fatalf("DeleteFileVersion() error = %v", err)
	}
	if _, err := fx.versioning.GetFileVersion(versions[0].ID); !errors.Is(err, ft.ErrNotFound) {
		t.Errorf("GetFileVersion() error = %v, want ErrNotFound", err)
	}
	if err := fx.versioning.DeleteFileVersion(versions[0].ID); !errors.Is(err, ft.ErrNotFound) {
		t.Errorf("second DeleteFileVersion() error = %v, want ErrNotFound", err)
	}

	// The file itself is untouched.
	if _, err := fx.tree.GetFile(file.ID); err != nil {
		t.Errorf("GetFile() error = %v", err)
	}
}

func TestVersioningService_SignedURLRoundTrip(t *testing.T) {
	fx := newVersioningFixture(t)
	ctx := context.Background()
	file, uploadURL, err := fx.versioning.CreateFile(ctx, "notes.txt", fx.root.ID, "text/plain", 5)
	if err != nil {
		t.Fatalf("CreateFile() error = %v", err)
	}
	if err := fx.bucket.StoreByToken(ctx, uploadURL, ft.Object{Body: []byte("hello"), ContentType: "text/plain"}); err != nil {
		t.Fatalf("StoreByToken() error = %v", err)
	}

	versions, err := fx.versioning.ListFileVersions(file.ID, nil)
	if err != nil {
		t.Fatalf("ListFileVersions() error = %v", err)
	}
	downloadURL, err := fx.versioning.RequestDownload(ctx, versions[0].Key)
	if err != nil {
		t.Fatalf("RequestDownload() error = %v", err)
	}
	obj, err := fx.bucket.FetchByToken(ctx, downloadURL)
	if err != nil {
		t.Fatalf("FetchByToken() error = %v", err)
	}
	if string(obj.Body) != "hello" {
		t.Errorf("body = %q, want %q", obj.Body, "hello")
	}

	// An upload URL does not authorize downloads.
	if _, err := fx.bucket.FetchByToken(ctx, uploadURL); !errors.Is(err, ft.ErrOperationMismatch) {
		t.Errorf("FetchByToken(upload url) error = %v, want ErrOperationMismatch", err)
	}
}
