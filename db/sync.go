// ABOUTME: Database operations for the sync_state table
// ABOUTME: Tracks the last run, status and outcome of each maintenance job
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Job names.
const (
	JobDedupe    = "dedupe"
	JobSweep     = "sweep"
	JobVerify    = "verify"
	JobMirror    = "mirror"
	JobNormalize = "normalize"
	JobImport    = "import"
)

// Job statuses.
const (
	StatusIdle    = "idle"
	StatusRunning = "running"
	StatusFailed  = "failed"
)

// SyncState is the last known state of a maintenance job.
type SyncState struct {
	Job          string
	LastRunTime  *time.Time
	Status       string
	Detail       string
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// GetSyncState retrieves the state for a job, or nil if it never ran.
func GetSyncState(ctx context.Context, db *sql.DB, job string) (*SyncState, error) {
	var state SyncState
	var lastRun sql.NullTime
	var detail, errorMessage sql.NullString

	err := db.QueryRowContext(ctx, `
		SELECT job, last_run_time, status, detail, error_message, created_at, updated_at
		FROM sync_state
		WHERE job = ?
	`, job).Scan(&state.Job, &lastRun, &state.Status, &detail, &errorMessage, &state.CreatedAt, &state.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync state: %w", err)
	}

	if lastRun.Valid {
		state.LastRunTime = &lastRun.Time
	}
	state.Detail = detail.String
	if errorMessage.Valid {
		state.ErrorMessage = &errorMessage.String
	}
	return &state, nil
}

// MarkJobRunning flags a job as in progress.
func MarkJobRunning(ctx context.Context, db *sql.DB, job string) error {
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, `
		INSERT INTO sync_state (job, status, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(job) DO UPDATE SET
			status = excluded.status,
			updated_at = excluded.updated_at
	`, job, StatusRunning, now, now)
	if err != nil {
		return fmt.Errorf("failed to update sync status: %w", err)
	}
	return nil
}

// FinishJob records the outcome of a run. A non-nil runErr marks it failed.
func FinishJob(ctx context.Context, db *sql.DB, job, detail string, runErr error) error {
	now := time.Now().UTC()
	status := StatusIdle
	var errorMsg sql.NullString
	if runErr != nil {
		status = StatusFailed
		errorMsg = sql.NullString{String: runErr.Error(), Valid: true}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO sync_state (job, last_run_time, status, detail, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job) DO UPDATE SET
			last_run_time = excluded.last_run_time,
			status = excluded.status,
			detail = excluded.detail,
			error_message = excluded.error_message,
			updated_at = excluded.updated_at
	`, job, now, status, detail, errorMsg, now, now)
	if err != nil {
		return fmt.Errorf("failed to finish job: %w", err)
	}
	return nil
}

// GetAllSyncStates retrieves the state of every job that has run.
func GetAllSyncStates(ctx context.Context, db *sql.DB) ([]SyncState, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT job, last_run_time, status, detail, error_message, created_at, updated_at
		FROM sync_state
		ORDER BY job
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync states: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var states []SyncState
	for rows.Next() {
		var state SyncState
		var lastRun sql.NullTime
		var detail, errorMessage sql.NullString

		if err := rows.Scan(&state.Job, &lastRun, &state.Status, &detail, &errorMessage, &state.CreatedAt, &state.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync state: %w", err)
		}
		if lastRun.Valid {
			state.LastRunTime = &lastRun.Time
		}
		state.Detail = detail.String
		if errorMessage.Valid {
			state.ErrorMessage = &errorMessage.String
		}
		states = append(states, state)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync states: %w", err)
	}
	return states, nil
}

// Tracker wraps a job run with MarkJobRunning and FinishJob. A nil Tracker
// or one without a DB does nothing.
type Tracker struct {
	DB *sql.DB
}

// Run executes fn and records its outcome. fn's detail string is stored.
func (t *Tracker) Run(ctx context.Context, job string, fn func() (string, error)) error {
	if t == nil || t.DB == nil {
		_, err := fn()
		return err
	}
	if err := MarkJobRunning(ctx, t.DB, job); err != nil {
		return err
	}
	detail, runErr := fn()
	if err := FinishJob(ctx, t.DB, job, detail, runErr); err != nil && runErr == nil {
		return err
	}
	return runErr
}
