// ABOUTME: Batch maintenance MCP tool handlers
// ABOUTME: Exposes deduplication, orphan document sweep, email verification and job status
package handlers

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/harperreed/cardsync/db"
	"github.com/harperreed/cardsync/dedupe"
	"github.com/harperreed/cardsync/verify"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type MaintenanceHandlers struct {
	dedupe *dedupe.Deduplicator
	verify *verify.Verifier
	db     *sql.DB
}

func NewMaintenanceHandlers(d *dedupe.Deduplicator, v *verify.Verifier, database *sql.DB) *MaintenanceHandlers {
	return &MaintenanceHandlers{dedupe: d, verify: v, db: database}
}

type DryRunInput struct {
	DryRun bool `json:"dry_run,omitempty" jsonschema:"Report what would change without writing"`
}

type DuplicateGroupOutput struct {
	Key        string   `json:"key"`
	SurvivorID string   `json:"survivor_id"`
	Survivor   string   `json:"survivor"`
	Superseded []string `json:"superseded_ids"`
}

type DedupeOutput struct {
	Scanned          int                    `json:"scanned"`
	Kept             int                    `json:"kept"`
	Removed          int                    `json:"removed"`
	Groups           []DuplicateGroupOutput `json:"groups"`
	DocumentsDeleted []string               `json:"documents_deleted"`
	Orphans          []string               `json:"orphans"`
	DryRun           bool                   `json:"dry_run"`
}

func (h *MaintenanceHandlers) Dedupe(ctx context.Context, request *mcp.CallToolRequest, input DryRunInput) (*mcp.CallToolResult, DedupeOutput, error) {
	report, err := h.dedupe.Run(ctx, dedupe.Options{DryRun: input.DryRun})
	if err != nil {
		return nil, DedupeOutput{}, fmt.Errorf("failed to deduplicate: %w", err)
	}

	groups := make([]DuplicateGroupOutput, len(report.Groups))
	for i, g := range report.Groups {
		ids := make([]string, len(g.Superseded))
		for j, c := range g.Superseded {
			ids[j] = c.ID
		}
		groups[i] = DuplicateGroupOutput{Key: g.Key, SurvivorID: g.Survivor.ID, Survivor: g.Survivor.Name, Superseded: ids}
	}
	deleted := report.DocumentsDeleted
	if deleted == nil {
		deleted = []string{}
	}
	orphans := report.Sweep.Orphans
	if orphans == nil {
		orphans = []string{}
	}

	return nil, DedupeOutput{
		Scanned:          report.Scanned,
		Kept:             report.Kept,
		Removed:          report.Removed(),
		Groups:           groups,
		DocumentsDeleted: deleted,
		Orphans:          orphans,
		DryRun:           report.DryRun,
	}, nil
}

type SweepOutput struct {
	Valid   int      `json:"valid"`
	Scanned int      `json:"scanned"`
	Orphans []string `json:"orphans"`
	Deleted int      `json:"deleted"`
	Failed  int      `json:"failed"`
}

func (h *MaintenanceHandlers) SweepDocuments(ctx context.Context, request *mcp.CallToolRequest, input DryRunInput) (*mcp.CallToolResult, SweepOutput, error) {
	report, err := h.dedupe.Sweep(ctx, dedupe.Options{DryRun: input.DryRun})
	if err != nil {
		return nil, SweepOutput{}, fmt.Errorf("failed to sweep documents: %w", err)
	}
	return nil, SweepOutput{
		Valid:   report.Valid,
		Scanned: report.Scanned,
		Orphans: report.Orphans,
		Deleted: report.Deleted,
		Failed:  report.Failed,
	}, nil
}

type VerifyOutput struct {
	Checked   int  `json:"checked"`
	Valid     int  `json:"valid"`
	Invalid   int  `json:"invalid"`
	NoEmail   int  `json:"no_email"`
	Freshened int  `json:"freshened"`
	DryRun    bool `json:"dry_run"`
}

func (h *MaintenanceHandlers) VerifyContacts(ctx context.Context, request *mcp.CallToolRequest, input DryRunInput) (*mcp.CallToolResult, VerifyOutput, error) {
	report, err := h.verify.Run(ctx, verify.Options{DryRun: input.DryRun})
	if err != nil {
		return nil, VerifyOutput{}, fmt.Errorf("failed to verify contacts: %w", err)
	}
	return nil, VerifyOutput(report), nil
}

type JobStatusInput struct{}

type JobStateOutput struct {
	Job         string `json:"job"`
	Status      string `json:"status"`
	LastRunTime string `json:"last_run_time,omitempty"`
	Detail      string `json:"detail,omitempty"`
	Error       string `json:"error,omitempty"`
}

type JobStatusOutput struct {
	Jobs []JobStateOutput `json:"jobs"`
}

func (h *MaintenanceHandlers) JobStatus(ctx context.Context, request *mcp.CallToolRequest, input JobStatusInput) (*mcp.CallToolResult, JobStatusOutput, error) {
	if h.db == nil {
		return nil, JobStatusOutput{Jobs: []JobStateOutput{}}, nil
	}
	states, err := db.GetAllSyncStates(ctx, h.db)
	if err != nil {
		return nil, JobStatusOutput{}, fmt.Errorf("failed to read job status: %w", err)
	}
	jobs := make([]JobStateOutput, len(states))
	for i, s := range states {
		jobs[i] = JobStateOutput{Job: s.Job, Status: s.Status, Detail: s.Detail}
		if s.ErrorMessage != nil {
			jobs[i].Error = *s.ErrorMessage
		}
		if s.LastRunTime != nil {
			jobs[i].LastRunTime = s.LastRunTime.Format("2006-01-02 15:04:05")
		}
	}
	return nil, JobStatusOutput{Jobs: jobs}, nil
}
