// ABOUTME: Tests for the MCP tool, resource and prompt handlers
// ABOUTME: Runs handlers against a snapshot store in a temporary directory
package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/harperreed/cardsync/blob"
	"github.com/harperreed/cardsync/db"
	"github.com/harperreed/cardsync/dedupe"
	"github.com/harperreed/cardsync/models"
	"github.com/harperreed/cardsync/store"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T, seed []models.Contact) *store.Store {
	t.Helper()
	bucket, err := blob.NewDir(t.TempDir())
	require.NoError(t, err)
	backend := store.NewSnapshotBackend(bucket, "")
	if seed != nil {
		require.NoError(t, backend.ReplaceAll(context.Background(), seed))
	}
	return store.New(backend, store.Options{CacheTTL: -1})
}

func seedContacts() []models.Contact {
	return []models.Contact{
		{ID: "c1", Name: "Jane Doe", Title: "CTO", Company: "Acme", Email: "jane@acme.com", Tags: []string{"AI", "Museum"}, Revision: 1},
		{ID: "c2", Name: "Sam Lee", Title: "Curator", Company: "Gallery X", Email: "sam@galleryx.org", Tags: []string{"Curator"}, Revision: 1},
		{ID: "c3", Name: "Ann Park", Company: "Acme", Revision: 1},
	}
}

func TestAddContactCreatesAndMerges(t *testing.T) {
	ctx := context.Background()
	st := setupTestStore(t, nil)
	h := NewContactHandlers(st)

	_, out, err := h.AddContact(ctx, nil, AddContactInput{
		Name:    "John Smith",
		Email:   "john@example.com",
		Company: "Acme Corp",
		Title:   "Engineer",
		Tags:    []string{"Tech"},
	})
	require.NoError(t, err)
	assert.True(t, out.Created)
	assert.NotEmpty(t, out.Contact.ID)
	assert.Equal(t, int64(1), out.Contact.Revision)

	_, merged, err := h.AddContact(ctx, nil, AddContactInput{
		Name:      "John Smith",
		Email:     "JOHN@example.com",
		Company:   "Beta Inc",
		Title:     "VP",
		JobStatus: "history",
	})
	require.NoError(t, err)
	assert.False(t, merged.Created)
	assert.Equal(t, out.Contact.ID, merged.Contact.ID)
	assert.Equal(t, "email", merged.MatchRule)
	assert.Equal(t, "exact", merged.Confidence)
	assert.Equal(t, "Beta Inc", merged.Contact.Company)
	require.Len(t, merged.Contact.History, 1)
	assert.Equal(t, "Acme Corp", merged.Contact.History[0].Company)
}

func TestAddContactAllowDuplicate(t *testing.T) {
	ctx := context.Background()
	st := setupTestStore(t, seedContacts())
	h := NewContactHandlers(st)

	_, out, err := h.AddContact(ctx, nil, AddContactInput{Name: "Jane Doe", Email: "jane@acme.com", AllowDuplicate: true})
	require.NoError(t, err)
	assert.True(t, out.Created)

	all, err := st.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestAddContactValidation(t *testing.T) {
	h := NewContactHandlers(setupTestStore(t, nil))

	_, _, err := h.AddContact(context.Background(), nil, AddContactInput{Email: "x@y.com"})
	assert.Error(t, err)

	_, _, err = h.AddContact(context.Background(), nil, AddContactInput{Name: "X", JobStatus: "sideways"})
	assert.Error(t, err)
}

func TestAddContactCompanyCard(t *testing.T) {
	h := NewContactHandlers(setupTestStore(t, nil))

	_, out, err := h.AddContact(context.Background(), nil, AddContactInput{Company: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "Acme", out.Contact.Name)
	assert.Contains(t, out.Contact.Tags, models.CompanyCardTag)
}

func TestFindContacts(t *testing.T) {
	ctx := context.Background()
	h := NewContactHandlers(setupTestStore(t, seedContacts()))

	_, out, err := h.FindContacts(ctx, nil, FindContactsInput{Query: "acme"})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Total)

	_, out, err = h.FindContacts(ctx, nil, FindContactsInput{Tag: "museum"})
	require.NoError(t, err)
	require.Len(t, out.Contacts, 1)
	assert.Equal(t, "c1", out.Contacts[0].ID)

	_, out, err = h.FindContacts(ctx, nil, FindContactsInput{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, out.Contacts, 1)
	assert.Equal(t, 3, out.Total)
}

func TestGetContact(t *testing.T) {
	ctx := context.Background()
	h := NewContactHandlers(setupTestStore(t, seedContacts()))

	_, out, err := h.GetContact(ctx, nil, ContactIDInput{ID: "c2"})
	require.NoError(t, err)
	assert.Equal(t, "Sam Lee", out.Name)

	_, _, err = h.GetContact(ctx, nil, ContactIDInput{ID: "missing"})
	assert.Error(t, err)

	_, _, err = h.GetContact(ctx, nil, ContactIDInput{})
	assert.Error(t, err)
}

func TestUpdateContact(t *testing.T) {
	ctx := context.Background()
	h := NewContactHandlers(setupTestStore(t, seedContacts()))

	notes := "met at the opening"
	tags := []string{"Museum"}
	_, out, err := h.UpdateContact(ctx, nil, UpdateContactInput{ID: "c1", Notes: &notes, Tags: &tags, Revision: 1})
	require.NoError(t, err)
	assert.Equal(t, notes, out.Notes)
	assert.Equal(t, []string{"Museum"}, out.Tags)
	assert.Equal(t, "CTO", out.Title)
	assert.Equal(t, int64(2), out.Revision)

	_, _, err = h.UpdateContact(ctx, nil, UpdateContactInput{ID: "c1", Notes: &notes, Revision: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrRevisionConflict)

	_, _, err = h.UpdateContact(ctx, nil, UpdateContactInput{ID: "missing", Notes: &notes})
	assert.Error(t, err)
}

func TestDeleteContact(t *testing.T) {
	ctx := context.Background()
	st := setupTestStore(t, seedContacts())
	h := NewContactHandlers(st)

	_, out, err := h.DeleteContact(ctx, nil, ContactIDInput{ID: "c3"})
	require.NoError(t, err)
	assert.True(t, out.Deleted)
	assert.Equal(t, "Ann Park", out.Name)

	_, again, err := h.DeleteContact(ctx, nil, ContactIDInput{ID: "c3"})
	require.NoError(t, err)
	assert.False(t, again.Deleted)

	got, err := st.Get(ctx, "c3")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCheckDuplicate(t *testing.T) {
	ctx := context.Background()
	h := NewContactHandlers(setupTestStore(t, seedContacts()))

	_, out, err := h.CheckDuplicate(ctx, nil, CheckDuplicateInput{Name: "J. Doe", Email: "Jane@Acme.com", Company: "NewCo"})
	require.NoError(t, err)
	assert.True(t, out.Found)
	assert.Equal(t, "c1", out.Contact.ID)
	assert.Equal(t, "email", out.Rule)
	assert.True(t, out.RoleChange)

	_, out, err = h.CheckDuplicate(ctx, nil, CheckDuplicateInput{Name: "Nobody", Email: "nobody@nowhere.test"})
	require.NoError(t, err)
	assert.False(t, out.Found)
	assert.Nil(t, out.Contact)
}

func TestListTags(t *testing.T) {
	h := NewContactHandlers(setupTestStore(t, seedContacts()))
	_, out, err := h.ListTags(context.Background(), nil, ListTagsInput{})
	require.NoError(t, err)
	assert.Equal(t, []string{"AI", "Curator", "Museum"}, out.Tags)
}

func TestJobStatusWithoutDatabase(t *testing.T) {
	h := NewMaintenanceHandlers(nil, nil, nil)
	_, out, err := h.JobStatus(context.Background(), nil, JobStatusInput{})
	require.NoError(t, err)
	assert.Empty(t, out.Jobs)
}

func TestJobStatusReportsFailures(t *testing.T) {
	ctx := context.Background()
	conn, err := db.OpenDatabase(db.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	tracker := &db.Tracker{DB: conn}
	_ = tracker.Run(ctx, db.JobSweep, func() (string, error) {
		return "", assert.AnError
	})

	h := NewMaintenanceHandlers(nil, nil, conn)
	_, out, err := h.JobStatus(ctx, nil, JobStatusInput{})
	require.NoError(t, err)

	var sweep *JobStateOutput
	for i := range out.Jobs {
		if out.Jobs[i].Job == db.JobSweep {
			sweep = &out.Jobs[i]
		}
	}
	require.NotNil(t, sweep)
	assert.Equal(t, db.StatusFailed, sweep.Status)
	assert.Equal(t, assert.AnError.Error(), sweep.Error)
}

func TestGenerateGraph(t *testing.T) {
	h := NewVizHandlers(setupTestStore(t, seedContacts()))
	_, out, err := h.GenerateGraph(context.Background(), nil, GenerateGraphInput{})
	require.NoError(t, err)
	assert.Contains(t, out.DOTSource, "digraph")
	assert.Equal(t, 3, out.Contacts)
	assert.Equal(t, 2, out.Companies)

	_, _, err = h.GenerateGraph(context.Background(), nil, GenerateGraphInput{ContactID: "missing"})
	assert.Error(t, err)
}

func TestDashboard(t *testing.T) {
	h := NewVizHandlers(setupTestStore(t, seedContacts()))
	_, out, err := h.Dashboard(context.Background(), nil, DashboardInput{})
	require.NoError(t, err)
	assert.Contains(t, out.Text, "CARDSYNC DASHBOARD")
}

func TestScanCardWithoutExtractor(t *testing.T) {
	h := NewIntakeHandlers(nil)
	_, _, err := h.ScanCard(context.Background(), nil, ScanCardInput{ImagePath: "card.jpg"})
	assert.Error(t, err)
}

func TestReadResource(t *testing.T) {
	ctx := context.Background()
	h := NewResourceHandlers(setupTestStore(t, seedContacts()))

	res, err := h.ReadResource(ctx, &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "cardsync://contacts"}})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	var contacts []ContactOutput
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &contacts))
	assert.Len(t, contacts, 3)

	res, err = h.ReadResource(ctx, &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "cardsync://contacts/c2"}})
	require.NoError(t, err)
	var one ContactOutput
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &one))
	assert.Equal(t, "Sam Lee", one.Name)

	res, err = h.ReadResource(ctx, &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "cardsync://tags"}})
	require.NoError(t, err)
	assert.Contains(t, res.Contents[0].Text, "Curator")

	_, err = h.ReadResource(ctx, &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "cardsync://contacts/missing"}})
	assert.Error(t, err)

	_, err = h.ReadResource(ctx, &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "other://contacts"}})
	assert.Error(t, err)
}

func TestGetPrompt(t *testing.T) {
	ctx := context.Background()
	seed := append(seedContacts(), models.Contact{ID: "c4", Name: "Jane Doe (old)", Email: "jane@acme.com", Revision: 1})
	st := setupTestStore(t, seed)
	h := NewPromptHandlers(st, dedupe.New(st, nil, nil))

	res, err := h.GetPrompt(ctx, &mcp.GetPromptRequest{Params: &mcp.GetPromptParams{
		Name:      "contact-summary",
		Arguments: map[string]string{"contact_id": "c1"},
	}})
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	text := res.Messages[0].Content.(*mcp.TextContent).Text
	assert.Contains(t, text, "Name: Jane Doe")
	assert.Contains(t, text, "Role: CTO @ Acme")

	res, err = h.GetPrompt(ctx, &mcp.GetPromptRequest{Params: &mcp.GetPromptParams{Name: "duplicate-review"}})
	require.NoError(t, err)
	text = res.Messages[0].Content.(*mcp.TextContent).Text
	assert.Contains(t, text, "These 1 groups")

	_, err = h.GetPrompt(ctx, &mcp.GetPromptRequest{Params: &mcp.GetPromptParams{Name: "contact-summary"}})
	assert.Error(t, err)

	_, err = h.GetPrompt(ctx, &mcp.GetPromptRequest{Params: &mcp.GetPromptParams{Name: "nope"}})
	assert.Error(t, err)
}

func TestNewServerRegistersTools(t *testing.T) {
	st := setupTestStore(t, nil)
	server := NewServer(Deps{Store: st, Dedupe: dedupe.New(st, nil, nil), Version: "test"})
	assert.NotNil(t, server)
}
