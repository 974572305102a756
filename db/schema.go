// ABOUTME: Manifest schema definitions
// ABOUTME: Tables for document ownership, merge audit, import provenance and per-job sync state
package db

import (
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	contact_id TEXT PRIMARY KEY,
	doc_key TEXT NOT NULL,
	name TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_key ON documents(doc_key);

CREATE TABLE IF NOT EXISTS merge_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	survivor_id TEXT NOT NULL,
	absorbed_id TEXT,
	source TEXT NOT NULL,
	rule TEXT,
	confidence TEXT,
	job_status TEXT,
	merged_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_merge_log_survivor ON merge_log(survivor_id);

CREATE TABLE IF NOT EXISTS import_log (
	source_service TEXT NOT NULL,
	source_id TEXT NOT NULL,
	contact_id TEXT NOT NULL,
	imported_at DATETIME NOT NULL,
	PRIMARY KEY (source_service, source_id)
);

CREATE TABLE IF NOT EXISTS sync_state (
	job TEXT PRIMARY KEY,
	last_run_time DATETIME,
	status TEXT NOT NULL DEFAULT 'idle',
	detail TEXT,
	error_message TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// InitSchema creates every table that does not exist yet.
func InitSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}
