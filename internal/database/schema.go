package database

import (
	"database/sql"
	"fmt"
)

// Schema is applied in full at open. Statements are idempotent so a
// restart against an existing file is a no-op.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id         TEXT PRIMARY KEY,
		code       TEXT NOT NULL UNIQUE,
		name       TEXT NOT NULL,
		status     TEXT NOT NULL DEFAULT 'active',
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS queue_items (
		id         TEXT PRIMARY KEY,
		event_code TEXT NOT NULL,
		status     TEXT NOT NULL DEFAULT 'pending',
		players    TEXT NOT NULL,
		song       TEXT NOT NULL,
		added_at   DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_queue_items_event ON queue_items(event_code, added_at)`,
	`CREATE INDEX IF NOT EXISTS idx_events_status ON events(status)`,
}

func applySchema(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}

// sqlite pragmas tuned for one process with many concurrent readers.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}
	return nil
}
