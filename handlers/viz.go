// ABOUTME: GraphViz visualization MCP handlers
// ABOUTME: Provides the career graph and dashboard tools for agents
package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/harperreed/cardsync/store"
	"github.com/harperreed/cardsync/viz"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type VizHandlers struct {
	store *store.Store
}

func NewVizHandlers(st *store.Store) *VizHandlers {
	return &VizHandlers{store: st}
}

type GenerateGraphInput struct {
	ContactID string `json:"contact_id,omitempty" jsonschema:"Limit the graph to this contact and people who shared an employer with them"`
}

type GenerateGraphOutput struct {
	DOTSource string `json:"dot_source"`
	Contacts  int    `json:"contacts"`
	Companies int    `json:"companies"`
	Edges     int    `json:"edges"`
}

func (h *VizHandlers) GenerateGraph(ctx context.Context, request *mcp.CallToolRequest, input GenerateGraphInput) (*mcp.CallToolResult, GenerateGraphOutput, error) {
	contacts, err := h.store.List(ctx)
	if err != nil {
		return nil, GenerateGraphOutput{}, fmt.Errorf("failed to load contacts: %w", err)
	}

	dot, stats, err := viz.NewGraphGenerator(contacts).CareerGraph(input.ContactID)
	if err != nil {
		return nil, GenerateGraphOutput{}, fmt.Errorf("failed to generate graph: %w", err)
	}

	return nil, GenerateGraphOutput{
		DOTSource: dot,
		Contacts:  stats.Contacts,
		Companies: stats.Companies,
		Edges:     stats.Edges,
	}, nil
}

type DashboardInput struct{}

type DashboardOutput struct {
	Text string `json:"text"`
}

func (h *VizHandlers) Dashboard(ctx context.Context, request *mcp.CallToolRequest, input DashboardInput) (*mcp.CallToolResult, DashboardOutput, error) {
	contacts, err := h.store.List(ctx)
	if err != nil {
		return nil, DashboardOutput{}, fmt.Errorf("failed to load contacts: %w", err)
	}
	stats := viz.GenerateDashboardStats(contacts, time.Now())
	return nil, DashboardOutput{Text: viz.RenderDashboard(stats)}, nil
}
