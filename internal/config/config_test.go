package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/tmp/ft-base")

	if cfg.Mode != ModeDevelopment {
		t.Errorf("Mode = %q, want %q", cfg.Mode, ModeDevelopment)
	}
	if cfg.BaseDir != "/tmp/ft-base" {
		t.Errorf("BaseDir = %q, want /tmp/ft-base", cfg.BaseDir)
	}
	if cfg.Database.Type != "sqlite" {
		t.Errorf("Database.Type = %q, want sqlite", cfg.Database.Type)
	}
	if cfg.Database.DataDir != filepath.Join("/tmp/ft-base", "data") {
		t.Errorf("Database.DataDir = %q, want base data dir", cfg.Database.DataDir)
	}
	if cfg.Bucket.LocalRoot != filepath.Join("/tmp/ft-base", "blobs") {
		t.Errorf("Bucket.LocalRoot = %q, want base blobs dir", cfg.Bucket.LocalRoot)
	}
	if cfg.Server.Addr != ":4000" {
		t.Errorf("Server.Addr = %q, want :4000", cfg.Server.Addr)
	}
}

func TestManager_ReadWrite(t *testing.T) {
	cfg := NewConfig("/tmp/ft-base")
	cfg.Bucket.TokenSecret = "hush"
	cfg.Bucket.TTLMinutes = 30

	var buf bytes.Buffer
	m := &Manager{}
	if err := m.Write(&buf, cfg); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.Mode != cfg.Mode {
		t.Errorf("Mode = %q, want %q", got.Mode, cfg.Mode)
	}
	if got.Bucket.TokenSecret != "hush" {
		t.Errorf("TokenSecret = %q, want hush", got.Bucket.TokenSecret)
	}
	if got.Bucket.SignedURLTTL() != 30*time.Minute {
		t.Errorf("SignedURLTTL() = %v, want 30m", got.Bucket.SignedURLTTL())
	}
}

func TestBucketConfig_SignedURLTTL(t *testing.T) {
	var b BucketConfig
	if b.SignedURLTTL() != 0 {
		t.Errorf("SignedURLTTL() = %v, want 0 for unset", b.SignedURLTTL())
	}
}

func TestInit(t *testing.T) {
	t.Run("creates the config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "conf", "ft.toml")
		cfg := NewConfig("/tmp/ft-base")

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.BaseDir != cfg.BaseDir {
			t.Errorf("BaseDir = %q, want %q", got.BaseDir, cfg.BaseDir)
		}
	})

	t.Run("refuses to overwrite an existing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ft.toml")
		if err := os.WriteFile(path, []byte("mode = \"production\"\n"), 0644); err != nil {
			t.Fatalf("writing existing file: %v", err)
		}

		if err := Init(path, NewConfig("/tmp/ft-base")); err == nil {
			t.Error("Init() expected error for existing config, got nil")
		}
	})
}

func TestReadFromFile_Missing(t *testing.T) {
	if _, err := ReadFromFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("ReadFromFile() expected error for missing file, got nil")
	}
}
