package store

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// schemaStatements are executed in order to create the database schema.
// All use IF NOT EXISTS for idempotent re-application. The FTS5 index over
// content/title/subtitle is an external-content table kept in sync by
// triggers, so it is rebuildable from the records table.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS records (
		id               TEXT PRIMARY KEY,
		content          TEXT    NOT NULL,
		content_hash     TEXT    NOT NULL,
		title            TEXT    NOT NULL DEFAULT '',
		subtitle         TEXT    NOT NULL DEFAULT '',
		category         TEXT    NOT NULL DEFAULT '',
		type             TEXT    NOT NULL DEFAULT 'change',
		importance       REAL    NOT NULL DEFAULT 0.5,
		trust            REAL    NOT NULL DEFAULT 0.5,
		sensitivity      TEXT    NOT NULL DEFAULT 'public',
		tags             TEXT    NOT NULL DEFAULT '[]',
		concepts         TEXT    NOT NULL DEFAULT '[]',
		files_read       TEXT    NOT NULL DEFAULT '[]',
		files_modified   TEXT    NOT NULL DEFAULT '[]',
		session_id       TEXT    NOT NULL DEFAULT '',
		project          TEXT    NOT NULL DEFAULT '',
		provenance       TEXT    NOT NULL DEFAULT '[]',
		expires_at       TEXT,
		created_at       TEXT    NOT NULL,
		updated_at       TEXT    NOT NULL,
		last_accessed_at TEXT,
		accessed_count   INTEGER NOT NULL DEFAULT 0,
		access_snapshot  INTEGER NOT NULL DEFAULT 0,
		consolidated_at  TEXT
	)`,

	`CREATE INDEX IF NOT EXISTS idx_records_hash ON records(content_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_records_created ON records(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_records_category ON records(category)`,
	`CREATE INDEX IF NOT EXISTS idx_records_session ON records(session_id)`,

	`CREATE VIRTUAL TABLE IF NOT EXISTS records_fts USING fts5(
		content,
		title,
		subtitle,
		content=records,
		content_rowid=rowid
	)`,

	`CREATE TRIGGER IF NOT EXISTS records_ai AFTER INSERT ON records BEGIN
		INSERT INTO records_fts(rowid, content, title, subtitle)
		VALUES (new.rowid, new.content, new.title, new.subtitle);
	END`,

	`CREATE TRIGGER IF NOT EXISTS records_ad AFTER DELETE ON records BEGIN
		INSERT INTO records_fts(records_fts, rowid, content, title, subtitle)
		VALUES ('delete', old.rowid, old.content, old.title, old.subtitle);
	END`,

	`CREATE TRIGGER IF NOT EXISTS records_au AFTER UPDATE ON records BEGIN
		INSERT INTO records_fts(records_fts, rowid, content, title, subtitle)
		VALUES ('delete', old.rowid, old.content, old.title, old.subtitle);
		INSERT INTO records_fts(rowid, content, title, subtitle)
		VALUES (new.rowid, new.content, new.title, new.subtitle);
	END`,

	`CREATE TABLE IF NOT EXISTS facts (
		id         TEXT PRIMARY KEY,
		subject    TEXT NOT NULL,
		predicate  TEXT NOT NULL,
		object     TEXT NOT NULL,
		provenance TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_facts_subject ON facts(subject)`,
	`CREATE INDEX IF NOT EXISTS idx_facts_predicate ON facts(predicate)`,

	`CREATE TABLE IF NOT EXISTS journal (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		op         TEXT NOT NULL,
		record_id  TEXT NOT NULL,
		detail     TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,
}

// migrate creates or updates the database schema to the latest version.
// All DDL uses IF NOT EXISTS, making migration idempotent.
func migrate(db *sql.DB) error {
	ctx := context.TODO()

	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("store: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("store: read schema version: %w", err)
	}

	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("store: record schema version: %w", err)
	}

	return nil
}
