// ABOUTME: MCP prompt handlers for reusable contact workflow templates
// ABOUTME: Provides contact summary, duplicate review and tag cleanup prompts
package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/harperreed/cardsync/dedupe"
	"github.com/harperreed/cardsync/store"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type PromptHandlers struct {
	store  *store.Store
	dedupe *dedupe.Deduplicator
}

func NewPromptHandlers(st *store.Store, d *dedupe.Deduplicator) *PromptHandlers {
	return &PromptHandlers{store: st, dedupe: d}
}

// GetPrompt generates the prompt message based on the template
func (h *PromptHandlers) GetPrompt(ctx context.Context, request *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	switch request.Params.Name {
	case "contact-summary":
		return h.getContactSummaryPrompt(ctx, request.Params.Arguments)
	case "duplicate-review":
		return h.getDuplicateReviewPrompt(ctx)
	case "tag-cleanup":
		return h.getTagCleanupPrompt(ctx)
	default:
		return nil, fmt.Errorf("unknown prompt: %s", request.Params.Name)
	}
}

func (h *PromptHandlers) getContactSummaryPrompt(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	id, ok := args["contact_id"]
	if !ok || id == "" {
		return nil, fmt.Errorf("contact_id is required")
	}
	contact, err := h.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch contact: %w", err)
	}
	if contact == nil {
		return nil, fmt.Errorf("contact not found: %s", id)
	}

	var promptText strings.Builder
	promptText.WriteString("Please provide a comprehensive summary of this contact:\n\n")
	promptText.WriteString(fmt.Sprintf("Name: %s\n", contact.Name))
	if contact.Title != "" || contact.Company != "" {
		promptText.WriteString(fmt.Sprintf("Role: %s @ %s\n", contact.Title, contact.Company))
	}
	if contact.Email != "" {
		promptText.WriteString(fmt.Sprintf("Email: %s (%s)\n", contact.Email, contact.EmailValid))
	}
	if contact.MetAt != "" {
		promptText.WriteString(fmt.Sprintf("Met at: %s\n", contact.MetAt))
	}
	if len(contact.Tags) > 0 {
		promptText.WriteString(fmt.Sprintf("Tags: %s\n", strings.Join(contact.Tags, ", ")))
	}
	if len(contact.History) > 0 {
		promptText.WriteString("\nPrevious roles:\n")
		for _, past := range contact.History {
			promptText.WriteString(fmt.Sprintf("- %s @ %s %s\n", past.Title, past.Company, past.Date))
		}
	}
	if contact.Notes != "" {
		promptText.WriteString(fmt.Sprintf("\nNotes: %s\n", contact.Notes))
	}

	promptText.WriteString("\nPlease analyze this contact and provide:")
	promptText.WriteString("\n1. A brief summary of their role and career path")
	promptText.WriteString("\n2. Why they might matter professionally")
	promptText.WriteString("\n3. A suggested next step")

	return userPrompt(fmt.Sprintf("Summary for contact: %s", contact.Name), promptText.String()), nil
}

func (h *PromptHandlers) getDuplicateReviewPrompt(ctx context.Context) (*mcp.GetPromptResult, error) {
	contacts, err := h.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch contacts: %w", err)
	}
	_, groups := h.dedupe.Plan(contacts)

	var promptText strings.Builder
	if len(groups) == 0 {
		promptText.WriteString("No duplicate groups were found in the contact list. Confirm the list looks clean.")
		return userPrompt("Duplicate review", promptText.String()), nil
	}

	promptText.WriteString(fmt.Sprintf("These %d groups share an email or a name and company. Each would be folded into the first record listed:\n\n", len(groups)))
	for _, g := range groups {
		promptText.WriteString(fmt.Sprintf("%s\n", g.Key))
		promptText.WriteString(fmt.Sprintf("  keep: %s (%s @ %s)\n", g.Survivor.Name, g.Survivor.Title, g.Survivor.Company))
		for _, other := range g.Superseded {
			promptText.WriteString(fmt.Sprintf("  fold: %s (%s @ %s)\n", other.Name, other.Title, other.Company))
		}
	}
	promptText.WriteString("\nPoint out any group that looks like two different people before running the dedupe_contacts tool.")

	return userPrompt("Duplicate review", promptText.String()), nil
}

func (h *PromptHandlers) getTagCleanupPrompt(ctx context.Context) (*mcp.GetPromptResult, error) {
	tags, err := h.store.UniqueTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tags: %w", err)
	}

	var promptText strings.Builder
	promptText.WriteString(fmt.Sprintf("The contact list uses %d distinct tags:\n\n", len(tags)))
	for _, t := range tags {
		promptText.WriteString(fmt.Sprintf("- %s\n", t))
	}
	promptText.WriteString("\nSuggest a mapping that merges spelling variants and translations into one canonical tag each, as YAML under a `mapping:` key.")

	return userPrompt("Tag cleanup", promptText.String()), nil
}

func userPrompt(description, text string) *mcp.GetPromptResult {
	return &mcp.GetPromptResult{
		Description: description,
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: text},
			},
		},
	}
}
