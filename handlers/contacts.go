// ABOUTME: Contact MCP tool handlers
// ABOUTME: Implements add, find, get, update, delete, duplicate-check and tag listing tools
package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/harperreed/cardsync/merge"
	"github.com/harperreed/cardsync/models"
	"github.com/harperreed/cardsync/record"
	"github.com/harperreed/cardsync/store"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type ContactHandlers struct {
	store *store.Store
}

func NewContactHandlers(st *store.Store) *ContactHandlers {
	return &ContactHandlers{store: st}
}

type HistoryOutput struct {
	Title   string `json:"title"`
	Company string `json:"company"`
	Date    string `json:"date,omitempty"`
}

type ContactOutput struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Title              string          `json:"title,omitempty"`
	Company            string          `json:"company,omitempty"`
	Email              string          `json:"email,omitempty"`
	SecondaryEmail     string          `json:"secondary_email,omitempty"`
	Phone              string          `json:"phone,omitempty"`
	Website            string          `json:"website,omitempty"`
	LinkedIn           string          `json:"linkedin,omitempty"`
	MetAt              string          `json:"met_at,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	Tags               []string        `json:"tags"`
	AISummary          string          `json:"ai_summary,omitempty"`
	ImageURL           string          `json:"image_url,omitempty"`
	ImportanceScore    int             `json:"importance_score"`
	VerificationStatus string          `json:"verification_status"`
	EmailValid         string          `json:"email_valid"`
	LastVerifiedAt     string          `json:"last_verified_at,omitempty"`
	History            []HistoryOutput `json:"history"`
	Revision           int64           `json:"revision"`
	AddedAt            string          `json:"added_at"`
	UpdatedAt          string          `json:"updated_at"`
}

type AddContactInput struct {
	Name           string   `json:"name,omitempty" jsonschema:"Contact name (required unless company is set)"`
	Title          string   `json:"title,omitempty" jsonschema:"Job title"`
	Company        string   `json:"company,omitempty" jsonschema:"Company name"`
	Email          string   `json:"email,omitempty" jsonschema:"Email address"`
	Phone          string   `json:"phone,omitempty" jsonschema:"Phone number"`
	Website        string   `json:"website,omitempty" jsonschema:"Website URL"`
	LinkedIn       string   `json:"linkedin,omitempty" jsonschema:"LinkedIn profile URL"`
	MetAt          string   `json:"met_at,omitempty" jsonschema:"Where or when you met"`
	Notes          string   `json:"notes,omitempty" jsonschema:"Free-form notes"`
	Tags           []string `json:"tags,omitempty" jsonschema:"Tags to attach"`
	AllowDuplicate bool     `json:"allow_duplicate,omitempty" jsonschema:"Create a new record even if a duplicate exists"`
	JobStatus      string   `json:"job_status,omitempty" jsonschema:"On a role change when merging: empty to overwrite, history to archive the old role, concurrent to keep both"`
}

type SaveOutput struct {
	Contact    ContactOutput `json:"contact"`
	Created    bool          `json:"created"`
	MatchRule  string        `json:"match_rule,omitempty"`
	Confidence string        `json:"confidence,omitempty"`
}

func (h *ContactHandlers) AddContact(ctx context.Context, request *mcp.CallToolRequest, input AddContactInput) (*mcp.CallToolResult, SaveOutput, error) {
	if strings.TrimSpace(input.Name) == "" && strings.TrimSpace(input.Company) == "" {
		return nil, SaveOutput{}, fmt.Errorf("name or company is required")
	}
	status, err := merge.ParseJobStatus(input.JobStatus)
	if err != nil {
		return nil, SaveOutput{}, err
	}

	contact := models.Contact{
		Name:           input.Name,
		Title:          input.Title,
		Company:        input.Company,
		Email:          input.Email,
		Phone:          input.Phone,
		SocialProfiles: models.SocialProfiles{Website: input.Website, LinkedIn: input.LinkedIn},
		MetAt:          input.MetAt,
		Notes:          input.Notes,
		Tags:           input.Tags,
	}

	res, err := h.store.Save(ctx, contact, store.SaveOptions{
		JobStatus:       status,
		MatchDuplicates: !input.AllowDuplicate,
	})
	if err != nil {
		return nil, SaveOutput{}, fmt.Errorf("failed to save contact: %w", err)
	}

	out := SaveOutput{Contact: contactToOutput(res.Contact), Created: res.Created}
	if res.Match != nil {
		out.MatchRule = string(res.Match.Rule)
		out.Confidence = string(res.Match.Confidence)
	}
	return nil, out, nil
}

type FindContactsInput struct {
	Query string `json:"query,omitempty" jsonschema:"Search text matched against name, email, company and title"`
	Tag   string `json:"tag,omitempty" jsonschema:"Only contacts carrying this tag"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of results (default 10)"`
}

type FindContactsOutput struct {
	Contacts []ContactOutput `json:"contacts"`
	Total    int             `json:"total"`
}

func (h *ContactHandlers) FindContacts(ctx context.Context, request *mcp.CallToolRequest, input FindContactsInput) (*mcp.CallToolResult, FindContactsOutput, error) {
	limit := input.Limit
	if limit == 0 {
		limit = 10
	}

	contacts, err := h.store.List(ctx)
	if err != nil {
		return nil, FindContactsOutput{}, fmt.Errorf("failed to find contacts: %w", err)
	}

	query := strings.ToLower(strings.TrimSpace(input.Query))
	tagKey := h.store.Tags().Key(input.Tag)
	result := []ContactOutput{}
	total := 0
	for _, c := range contacts {
		if query != "" && !matchesQuery(c, query) {
			continue
		}
		if tagKey != "" && !hasTag(h.store, c, tagKey) {
			continue
		}
		total++
		if len(result) < limit {
			result = append(result, contactToOutput(c))
		}
	}

	return nil, FindContactsOutput{Contacts: result, Total: total}, nil
}

type ContactIDInput struct {
	ID string `json:"id" jsonschema:"Contact ID (required)"`
}

func (h *ContactHandlers) GetContact(ctx context.Context, request *mcp.CallToolRequest, input ContactIDInput) (*mcp.CallToolResult, ContactOutput, error) {
	if input.ID == "" {
		return nil, ContactOutput{}, fmt.Errorf("id is required")
	}
	c, err := h.store.Get(ctx, input.ID)
	if err != nil {
		return nil, ContactOutput{}, fmt.Errorf("failed to get contact: %w", err)
	}
	if c == nil {
		return nil, ContactOutput{}, fmt.Errorf("contact not found: %s", input.ID)
	}
	return nil, contactToOutput(*c), nil
}

type UpdateContactInput struct {
	ID        string    `json:"id" jsonschema:"Contact ID (required)"`
	Name      *string   `json:"name,omitempty" jsonschema:"New name"`
	Title     *string   `json:"title,omitempty" jsonschema:"New job title"`
	Company   *string   `json:"company,omitempty" jsonschema:"New company"`
	Email     *string   `json:"email,omitempty" jsonschema:"New email address"`
	Phone     *string   `json:"phone,omitempty" jsonschema:"New phone number"`
	Website   *string   `json:"website,omitempty" jsonschema:"New website URL"`
	LinkedIn  *string   `json:"linkedin,omitempty" jsonschema:"New LinkedIn URL"`
	MetAt     *string   `json:"met_at,omitempty" jsonschema:"Where or when you met"`
	Notes     *string   `json:"notes,omitempty" jsonschema:"Replacement notes"`
	Tags      *[]string `json:"tags,omitempty" jsonschema:"Replacement tag set"`
	Score     *int      `json:"importance_score,omitempty" jsonschema:"Importance score 0-100"`
	Revision  int64     `json:"revision,omitempty" jsonschema:"Revision you last read; the update fails if the contact changed since"`
	JobStatus string    `json:"job_status,omitempty" jsonschema:"On a role change: empty to overwrite, history to archive the old role, concurrent to keep both"`
}

func (h *ContactHandlers) UpdateContact(ctx context.Context, request *mcp.CallToolRequest, input UpdateContactInput) (*mcp.CallToolResult, ContactOutput, error) {
	if input.ID == "" {
		return nil, ContactOutput{}, fmt.Errorf("id is required")
	}
	status, err := merge.ParseJobStatus(input.JobStatus)
	if err != nil {
		return nil, ContactOutput{}, err
	}

	patch := store.Patch{
		Name:            input.Name,
		Title:           input.Title,
		Company:         input.Company,
		Email:           input.Email,
		Phone:           input.Phone,
		Website:         input.Website,
		LinkedIn:        input.LinkedIn,
		MetAt:           input.MetAt,
		Notes:           input.Notes,
		Tags:            input.Tags,
		ImportanceScore: input.Score,
		Revision:        input.Revision,
	}
	updated, err := h.store.Update(ctx, input.ID, patch, status)
	if err != nil {
		return nil, ContactOutput{}, fmt.Errorf("failed to update contact: %w", err)
	}
	if updated == nil {
		return nil, ContactOutput{}, fmt.Errorf("contact not found: %s", input.ID)
	}
	return nil, contactToOutput(*updated), nil
}

type DeleteContactOutput struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Deleted bool   `json:"deleted"`
}

func (h *ContactHandlers) DeleteContact(ctx context.Context, request *mcp.CallToolRequest, input ContactIDInput) (*mcp.CallToolResult, DeleteContactOutput, error) {
	if input.ID == "" {
		return nil, DeleteContactOutput{}, fmt.Errorf("id is required")
	}
	removed, err := h.store.Delete(ctx, input.ID)
	if err != nil {
		return nil, DeleteContactOutput{}, fmt.Errorf("failed to delete contact: %w", err)
	}
	if removed == nil {
		return nil, DeleteContactOutput{ID: input.ID}, nil
	}
	return nil, DeleteContactOutput{ID: removed.ID, Name: removed.Name, Deleted: true}, nil
}

type CheckDuplicateInput struct {
	Name    string `json:"name,omitempty" jsonschema:"Candidate name"`
	Email   string `json:"email,omitempty" jsonschema:"Candidate email"`
	Phone   string `json:"phone,omitempty" jsonschema:"Candidate phone"`
	Company string `json:"company,omitempty" jsonschema:"Candidate company"`
}

type CheckDuplicateOutput struct {
	Found      bool           `json:"found"`
	Contact    *ContactOutput `json:"contact,omitempty"`
	Rule       string         `json:"rule,omitempty"`
	Confidence string         `json:"confidence,omitempty"`
	RoleChange bool           `json:"role_change"`
}

func (h *ContactHandlers) CheckDuplicate(ctx context.Context, request *mcp.CallToolRequest, input CheckDuplicateInput) (*mcp.CallToolResult, CheckDuplicateOutput, error) {
	candidate := models.Contact{Name: input.Name, Email: input.Email, Phone: input.Phone, Company: input.Company}
	found, err := h.store.FindDuplicate(ctx, candidate)
	if err != nil {
		return nil, CheckDuplicateOutput{}, fmt.Errorf("failed to check duplicates: %w", err)
	}
	if found == nil {
		return nil, CheckDuplicateOutput{}, nil
	}
	out := contactToOutput(found.Contact)
	return nil, CheckDuplicateOutput{
		Found:      true,
		Contact:    &out,
		Rule:       string(found.Rule),
		Confidence: string(found.Confidence),
		RoleChange: merge.RoleChanged(found.Contact, candidate),
	}, nil
}

type ListTagsInput struct{}

type ListTagsOutput struct {
	Tags []string `json:"tags"`
}

func (h *ContactHandlers) ListTags(ctx context.Context, request *mcp.CallToolRequest, input ListTagsInput) (*mcp.CallToolResult, ListTagsOutput, error) {
	tags, err := h.store.UniqueTags(ctx)
	if err != nil {
		return nil, ListTagsOutput{}, fmt.Errorf("failed to list tags: %w", err)
	}
	return nil, ListTagsOutput{Tags: tags}, nil
}

func matchesQuery(c models.Contact, query string) bool {
	for _, field := range []string{c.Name, c.Email, c.SecondaryEmail, c.Company, c.Title} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

func hasTag(st *store.Store, c models.Contact, key string) bool {
	for _, t := range c.Tags {
		if st.Tags().Key(t) == key {
			return true
		}
	}
	return false
}

func contactToOutput(c models.Contact) ContactOutput {
	history := make([]HistoryOutput, len(c.History))
	for i, h := range c.History {
		history[i] = HistoryOutput{Title: h.Title, Company: h.Company, Date: h.Date}
	}
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	c.ApplyDefaults()
	return ContactOutput{
		ID:                 c.ID,
		Name:               c.Name,
		Title:              c.Title,
		Company:            c.Company,
		Email:              c.Email,
		SecondaryEmail:     c.SecondaryEmail,
		Phone:              c.Phone,
		Website:            c.SocialProfiles.Website,
		LinkedIn:           c.SocialProfiles.LinkedIn,
		MetAt:              c.MetAt,
		Notes:              c.Notes,
		Tags:               tags,
		AISummary:          c.AISummary,
		ImageURL:           c.ImageURL,
		ImportanceScore:    c.ImportanceScore,
		VerificationStatus: string(c.VerificationStatus),
		EmailValid:         string(c.EmailValid),
		LastVerifiedAt:     c.LastVerifiedAt,
		History:            history,
		Revision:           c.Revision,
		AddedAt:            record.FormatTime(c.AddedAt),
		UpdatedAt:          record.FormatTime(c.UpdatedAt),
	}
}
