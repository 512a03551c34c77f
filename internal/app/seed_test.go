package app

import (
	"context"
	"testing"

	"ft-go/internal/config"
)

func newMemoryApp(t *testing.T) *FTApp {
	t.Helper()

	cfg := &config.Config{
		Mode:    config.ModeDevelopment,
		BaseDir: t.TempDir(),
		LogDir:  t.TempDir(),
		Server:  config.ServerConfig{Addr: ":0"},
		Database: config.DatabaseConfig{
			Type: "memory",
		},
		Bucket: config.BucketConfig{
			Type:        "memory",
			BaseURL:     "http://localhost:4000",
			TokenSecret: "test-secret",
		},
	}

	a, err := NewFTApp(cfg)
	if err != nil {
		t.Fatalf("NewFTApp() error = %v", err)
	}
	t.Cleanup(func() {
		a.Close()
	})
	return a
}

func TestFTApp_Seed(t *testing.T) {
	a := newMemoryApp(t)
	ctx := context.Background()

	if err := a.Seed(ctx, 2); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	root, err := a.Tree().EnsureRoot()
	if err != nil {
		t.Fatalf("EnsureRoot() error = %v", err)
	}

	// 4 directories, 2 files in each of root + 4 directories.
	count, err := a.Listing().CountDirectoryChildren(root.ID)
	if err != nil {
		t.Fatalf("CountDirectoryChildren() error = %v", err)
	}
	if count != 4+5*2 {
		t.Errorf("node count = %d, want %d", count, 4+5*2)
	}

	// Every seeded file has exactly one version with real content behind it.
	size, err := a.Listing().GetDirectorySize(root.ID)
	if err != nil {
		t.Fatalf("GetDirectorySize() error = %v", err)
	}
	if size == nil || *size == 0 {
		t.Errorf("seeded tree size = %v, want > 0", size)
	}

	nodes, err := a.Listing().SearchNodes("Sub-Sub-Directory")
	if err != nil {
		t.Fatalf("SearchNodes() error = %v", err)
	}
	if len(nodes) != 2 {
		t.Errorf("Sub-Sub directories = %d, want 2", len(nodes))
	}
}
