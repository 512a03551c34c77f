package database

import (
	"fmt"
	"path/filepath"

	"ft-go/internal/config"
	"ft-go/internal/database/migrations"
	"ft-go/internal/ft"
)

// NewDatabaseFromConfig creates a Database implementation based on the database config type.
// File-backed databases are migrated to the latest schema version; in-memory
// databases get the schema applied directly.
func NewDatabaseFromConfig(cfg config.DatabaseConfig) (ft.Database, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		dbPath := filepath.Join(cfg.DataDir, "ft.db")
		db, err := NewSQLiteDatabase(dbPath)
		if err != nil {
			return nil, err
		}
		if err := migrations.MigrateUp(db.DB()); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating database: %w", err)
		}
		return db, nil
	case "memory":
		db, err := NewSQLiteDatabase(":memory:")
		if err != nil {
			return nil, err
		}
		if _, err := db.DB().Exec(Schema); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying schema: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
