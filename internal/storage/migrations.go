package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// CurrentSchemaVersion is the newest schema this build can read and write
const CurrentSchemaVersion = "1.0.0"

// ErrSchemaTooNew is returned when an index was written by a newer schema
var ErrSchemaTooNew = errors.New("index schema is newer than supported")

// migration is one forward schema step
type migration struct {
	version *semver.Version
	up      string
}

// migrations are applied in order to bring an index to CurrentSchemaVersion
var migrations = []migration{
	{version: semver.MustParse("1.0.0"), up: migrationV1Up},
}

const migrationV1Up = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- One row per store: the ingestion run it was built from
CREATE TABLE IF NOT EXISTS snapshots (
    id TEXT PRIMARY KEY,
    root_path TEXT NOT NULL,
    document_count INTEGER NOT NULL DEFAULT 0,
    total_tokens INTEGER NOT NULL DEFAULT 0,
    budget_reached BOOLEAN NOT NULL DEFAULT 0,
    provider TEXT NOT NULL,
    model TEXT NOT NULL,
    dimension INTEGER NOT NULL DEFAULT 0,
    schema_version TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Documents table, content is zstd compressed
CREATE TABLE IF NOT EXISTS documents (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source_path TEXT NOT NULL,
    chunk INTEGER NOT NULL DEFAULT 0,
    file_type TEXT NOT NULL,
    content BLOB NOT NULL,
    content_hash BLOB NOT NULL,
    token_count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (source_path, chunk)
);

CREATE INDEX IF NOT EXISTS idx_documents_file_type ON documents(file_type);
CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(content_hash);

-- Embeddings table
CREATE TABLE IF NOT EXISTS embeddings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    document_id INTEGER NOT NULL UNIQUE,
    vector BLOB NOT NULL,
    dimension INTEGER NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_embeddings_document ON embeddings(document_id);
`

// ApplyMigrations brings db up to CurrentSchemaVersion. An index written by
// a newer schema is left untouched and reported with ErrSchemaTooNew, so the
// caller can rebuild it instead of misreading it.
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	applied, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}

	if applied.GreaterThan(semver.MustParse(CurrentSchemaVersion)) {
		return fmt.Errorf("%w: %s > %s", ErrSchemaTooNew, applied, CurrentSchemaVersion)
	}

	for _, m := range migrations {
		if !applied.LessThan(m.version) {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %s: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, m.up); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to apply migration %s: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", m.version.String()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", m.version, err)
		}

		applied = m.version
	}

	return nil
}

// schemaVersion returns the highest applied version, 0.0.0 for a new database
func schemaVersion(ctx context.Context, db *sql.DB) (*semver.Version, error) {
	none := semver.MustParse("0.0.0")

	var name string
	err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return none, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check schema_version table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}
	defer func() { _ = rows.Close() }()

	highest := none
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		v, err := semver.NewVersion(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid schema version %q: %w", raw, err)
		}
		if v.GreaterThan(highest) {
			highest = v
		}
	}
	return highest, rows.Err()
}
