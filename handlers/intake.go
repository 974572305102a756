// ABOUTME: Card scan MCP tool handler
// ABOUTME: Reads a card image from disk and runs it through extraction, duplicate probe and save
package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/harperreed/cardsync/intake"
	"github.com/harperreed/cardsync/match"
	"github.com/harperreed/cardsync/merge"
	"github.com/harperreed/cardsync/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type IntakeHandlers struct {
	intake *intake.Intake
}

// NewIntakeHandlers wraps in. A nil intake makes the tool report that no
// extractor is configured.
func NewIntakeHandlers(in *intake.Intake) *IntakeHandlers {
	return &IntakeHandlers{intake: in}
}

type ScanCardInput struct {
	ImagePath string   `json:"image_path" jsonschema:"Path to the card image on the local filesystem"`
	MetAt     string   `json:"met_at,omitempty" jsonschema:"Where the card was collected"`
	Tags      []string `json:"tags,omitempty" jsonschema:"Tags to add to the scanned contact"`
	Notes     string   `json:"notes,omitempty" jsonschema:"Notes about the contact"`
	Merge     *bool    `json:"merge,omitempty" jsonschema:"Merge into a matching contact (default true)"`
	JobStatus string   `json:"job_status,omitempty" jsonschema:"On a role change: 'history' (default) archives the old role and 'concurrent' keeps both"`
}

func (h *IntakeHandlers) ScanCard(ctx context.Context, request *mcp.CallToolRequest, input ScanCardInput) (*mcp.CallToolResult, SaveOutput, error) {
	if h.intake == nil {
		return nil, SaveOutput{}, fmt.Errorf("card scanning requires CARDSYNC_EXTRACTOR_URL")
	}
	if input.ImagePath == "" {
		return nil, SaveOutput{}, fmt.Errorf("image_path is required")
	}

	status := merge.JobHistory
	if input.JobStatus != "" {
		parsed, err := merge.ParseJobStatus(input.JobStatus)
		if err != nil {
			return nil, SaveOutput{}, err
		}
		status = parsed
	}
	mergeDuplicates := input.Merge == nil || *input.Merge

	data, err := os.ReadFile(input.ImagePath)
	if err != nil {
		return nil, SaveOutput{}, fmt.Errorf("failed to read image: %w", err)
	}

	in := *h.intake
	in.Decide = func(context.Context, models.Contact, *match.Match) (intake.Decision, error) {
		return intake.Decision{Merge: mergeDuplicates, JobStatus: status}, nil
	}
	res, err := in.Scan(ctx, intake.Card{
		Image:    data,
		Filename: filepath.Base(input.ImagePath),
		MetAt:    input.MetAt,
		Tags:     input.Tags,
		Notes:    input.Notes,
	})
	if err != nil {
		return nil, SaveOutput{}, fmt.Errorf("failed to scan card: %w", err)
	}

	out := SaveOutput{Contact: contactToOutput(res.Contact), Created: res.Created}
	if res.Match != nil {
		out.MatchRule = string(res.Match.Rule)
		out.Confidence = string(res.Match.Confidence)
	}
	return nil, out, nil
}
