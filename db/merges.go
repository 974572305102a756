// ABOUTME: Merge audit log operations
// ABOUTME: Records every duplicate merge with the rule and confidence that triggered it
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Merge sources.
const (
	MergeSourceSave  = "save"
	MergeSourceBatch = "dedupe"
)

// MergeLogEntry describes one merge. AbsorbedID is empty when the absorbed
// record was an unsaved incoming observation.
type MergeLogEntry struct {
	ID         int64
	SurvivorID string
	AbsorbedID string
	Source     string
	Rule       string
	Confidence string
	JobStatus  string
	MergedAt   time.Time
}

// LogMerge appends an entry to the merge log.
func LogMerge(ctx context.Context, db *sql.DB, e MergeLogEntry) error {
	if e.MergedAt.IsZero() {
		e.MergedAt = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO merge_log (survivor_id, absorbed_id, source, rule, confidence, job_status, merged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.SurvivorID, nullIfEmpty(e.AbsorbedID), e.Source, nullIfEmpty(e.Rule), nullIfEmpty(e.Confidence),
		nullIfEmpty(e.JobStatus), e.MergedAt)
	if err != nil {
		return fmt.Errorf("failed to log merge: %w", err)
	}
	return nil
}

// ListMerges returns the newest entries first. survivorID filters when set.
func ListMerges(ctx context.Context, db *sql.DB, survivorID string, limit int) ([]MergeLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, survivor_id, absorbed_id, source, rule, confidence, job_status, merged_at FROM merge_log`
	args := []interface{}{}
	if survivorID != "" {
		query += ` WHERE survivor_id = ?`
		args = append(args, survivorID)
	}
	query += ` ORDER BY merged_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list merges: %w", err)
	}
	defer rows.Close()

	var entries []MergeLogEntry
	for rows.Next() {
		var e MergeLogEntry
		var absorbed, rule, confidence, jobStatus sql.NullString
		if err := rows.Scan(&e.ID, &e.SurvivorID, &absorbed, &e.Source, &rule, &confidence, &jobStatus, &e.MergedAt); err != nil {
			return nil, fmt.Errorf("failed to scan merge: %w", err)
		}
		e.AbsorbedID = absorbed.String
		e.Rule = rule.String
		e.Confidence = confidence.String
		e.JobStatus = jobStatus.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
