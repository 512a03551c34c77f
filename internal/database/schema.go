package database

// Schema is the complete current DDL, equivalent to running every migration
// against an empty database. Tests apply it directly to in-memory databases
// instead of going through golang-migrate.
//
// Keep this in sync with internal/database/migrations/files.
const Schema = `
CREATE TABLE directories (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    parent_id  TEXT REFERENCES directories(id) DEFERRABLE INITIALLY DEFERRED,
    ancestors  TEXT NOT NULL DEFAULT '[]',
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    deleted_at TIMESTAMP
);

CREATE INDEX idx_directories_parent_id ON directories(parent_id);
CREATE INDEX idx_directories_name ON directories(name);

CREATE TABLE files (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL,
    directory_id TEXT NOT NULL REFERENCES directories(id) DEFERRABLE INITIALLY DEFERRED,
    ancestors    TEXT NOT NULL DEFAULT '[]',
    history      TEXT NOT NULL DEFAULT '[]',
    created_at   TIMESTAMP NOT NULL,
    updated_at   TIMESTAMP NOT NULL,
    deleted_at   TIMESTAMP
);

CREATE INDEX idx_files_directory_id ON files(directory_id);
CREATE INDEX idx_files_name ON files(name);

CREATE TABLE file_versions (
    id         TEXT PRIMARY KEY,
    file_id    TEXT NOT NULL REFERENCES files(id) DEFERRABLE INITIALLY DEFERRED,
    key        TEXT NOT NULL UNIQUE,
    mime_type  TEXT NOT NULL,
    size       INTEGER NOT NULL CHECK (size >= 0),
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    deleted_at TIMESTAMP
);

CREATE INDEX idx_file_versions_file_id ON file_versions(file_id);
`
