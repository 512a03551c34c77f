package app

import (
	"context"
	"fmt"
	"strings"

	"ft-go/internal/ft"
)

// seedDirectories mirrors the layout used for manual testing: two levels of
// nesting so subtree moves and cascade deletes have something to chew on.
var seedDirectories = []struct {
	name   string
	parent string // name of the parent; "" = root
}{
	{name: "Sub-Directory 1"},
	{name: "Sub-Directory 2"},
	{name: "Sub-Sub-Directory 1", parent: "Sub-Directory 1"},
	{name: "Sub-Sub-Directory 2", parent: "Sub-Directory 1"},
}

// Seed populates an empty tree with the sample layout and filesPerDir text
// files in each directory, uploaded through the normal create-file path so
// every blob really lands in the object store.
func (a *FTApp) Seed(ctx context.Context, filesPerDir int) error {
	root, err := a.tree.EnsureRoot()
	if err != nil {
		return err
	}

	ids := map[string]string{"": root.ID}
	for _, sd := range seedDirectories {
		parentID, ok := ids[sd.parent]
		if !ok {
			return fmt.Errorf("seed directory %q created before its parent %q", sd.name, sd.parent)
		}
		dir, err := a.tree.CreateDirectory(sd.name, parentID)
		if err != nil {
			return fmt.Errorf("seeding directory %q: %w", sd.name, err)
		}
		ids[sd.name] = dir.ID
	}

	for dirName, dirID := range ids {
		label := dirName
		if label == "" {
			label = "root"
		}
		for i := 1; i <= filesPerDir; i++ {
			name := fmt.Sprintf("sample-%02d.txt", i)
			content := []byte(fmt.Sprintf("seed file %d in %s\n%s", i, label, strings.Repeat("lorem ipsum ", i)))

			if err := a.uploadSeedFile(ctx, name, dirID, content); err != nil {
				return fmt.Errorf("seeding file %q in %q: %w", name, label, err)
			}
		}
	}

	a.logger.Info("seed complete", "directories", len(ids), "files_per_directory", filesPerDir)
	return nil
}

func (a *FTApp) uploadSeedFile(ctx context.Context, name, dirID string, content []byte) error {
	_, uploadURL, err := a.versioning.CreateFile(ctx, name, dirID, "text/plain", int64(len(content)))
	if err != nil {
		return err
	}
	return a.bucket.StoreByToken(ctx, uploadURL, ft.Object{
		Body:        content,
		ContentType: "text/plain",
	})
}
