// ABOUTME: MCP resource handlers for exposing contact data
// ABOUTME: Provides read-only access to contacts, single contacts and tags via cardsync:// URIs
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harperreed/cardsync/store"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const resourceScheme = "cardsync://"

type ResourceHandlers struct {
	store *store.Store
}

func NewResourceHandlers(st *store.Store) *ResourceHandlers {
	return &ResourceHandlers{store: st}
}

// ReadResource handles resource read requests
func (h *ResourceHandlers) ReadResource(ctx context.Context, request *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := request.Params.URI
	if !strings.HasPrefix(uri, resourceScheme) {
		return nil, fmt.Errorf("invalid URI scheme: expected %s", resourceScheme)
	}

	path := strings.TrimPrefix(uri, resourceScheme)
	parts := strings.Split(path, "/")

	switch parts[0] {
	case "contacts":
		if len(parts) == 1 || parts[1] == "" {
			return h.readAllContacts(ctx, uri)
		}
		return h.readContact(ctx, uri, parts[1])
	case "tags":
		return h.readTags(ctx, uri)
	default:
		return nil, mcp.ResourceNotFoundError(uri)
	}
}

func (h *ResourceHandlers) readAllContacts(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	contacts, err := h.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch contacts: %w", err)
	}
	out := make([]ContactOutput, len(contacts))
	for i, c := range contacts {
		out[i] = contactToOutput(c)
	}
	return jsonResource(uri, out)
}

func (h *ResourceHandlers) readContact(ctx context.Context, uri, id string) (*mcp.ReadResourceResult, error) {
	c, err := h.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch contact: %w", err)
	}
	if c == nil {
		return nil, mcp.ResourceNotFoundError(uri)
	}
	return jsonResource(uri, contactToOutput(*c))
}

func (h *ResourceHandlers) readTags(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	tags, err := h.store.UniqueTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tags: %w", err)
	}
	return jsonResource(uri, tags)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}
	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{
		{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}}, nil
}
