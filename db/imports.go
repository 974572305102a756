// ABOUTME: Import provenance operations
// ABOUTME: Remembers which external records have already been imported and into which contact
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CheckImportLogged reports whether sourceID from sourceService was imported before.
func CheckImportLogged(ctx context.Context, db *sql.DB, sourceService, sourceID string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM import_log
		WHERE source_service = ? AND source_id = ?
	`, sourceService, sourceID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check import log: %w", err)
	}
	return count > 0, nil
}

// LogImport records that sourceID now lives in contactID.
func LogImport(ctx context.Context, db *sql.DB, sourceService, sourceID, contactID string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO import_log (source_service, source_id, contact_id, imported_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source_service, source_id) DO UPDATE SET
			contact_id = excluded.contact_id,
			imported_at = excluded.imported_at
	`, sourceService, sourceID, contactID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to log import: %w", err)
	}
	return nil
}
