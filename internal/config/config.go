package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Mode values. Development selects the filesystem-backed object store;
// anything else requires an S3 bucket.
const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// Config represents the main configuration for ft.
type Config struct {
	Mode     string         `toml:"mode"` // "development" or "production"
	BaseDir  string         `toml:"base_dir"`
	LogDir   string         `toml:"log_dir"`
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Bucket   BucketConfig   `toml:"bucket"`
}

// ServerConfig holds settings for the HTTP blob endpoints.
type ServerConfig struct {
	Addr string `toml:"addr"` // listen address, e.g. ":4000"
}

// DatabaseConfig represents configuration for the tree-record database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// BucketConfig represents configuration for the object-store backend.
// Which backend is used follows Mode: development mode selects the local
// filesystem bucket, otherwise an S3 bucket identifier must be set. Type may
// force "memory" for tests.
type BucketConfig struct {
	Type string `toml:"type,omitempty"` // "", or "memory" to force the in-memory backend

	// S3-specific fields
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// Filesystem-specific fields
	LocalRoot string `toml:"local_root,omitempty"` // blob root directory
	BaseURL   string `toml:"base_url,omitempty"`   // base for locally signed URLs

	// Signed URL settings
	TokenSecret string `toml:"token_secret,omitempty"` // HMAC secret for local tokens
	TTLMinutes  int    `toml:"ttl_minutes,omitempty"`  // signed URL lifetime; 0 = default
}

// SignedURLTTL returns the configured signed-URL lifetime, or zero when the
// default should apply.
func (b BucketConfig) SignedURLTTL() time.Duration {
	return time.Duration(b.TTLMinutes) * time.Minute
}

// NewConfig creates a new Config with the provided base directory and
// development-mode defaults.
func NewConfig(baseDir string) *Config {
	return &Config{
		Mode:    ModeDevelopment,
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Server: ServerConfig{
			Addr: ":4000",
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "data"),
		},
		Bucket: BucketConfig{
			LocalRoot: filepath.Join(baseDir, "blobs"),
			BaseURL:   "http://localhost:4000",
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
// This is an internal helper and should not be exported.
func writeToFile(path string, cfg *Config) error {
	// Ensure the directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
