// ABOUTME: MCP server assembly
// ABOUTME: Registers every contact, maintenance, visualization and intake tool plus resources and prompts
package handlers

import (
	"database/sql"

	"github.com/harperreed/cardsync/dedupe"
	"github.com/harperreed/cardsync/intake"
	"github.com/harperreed/cardsync/store"
	"github.com/harperreed/cardsync/verify"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Deps is what the server needs. Intake and DB may be nil.
type Deps struct {
	Store   *store.Store
	Dedupe  *dedupe.Deduplicator
	Verify  *verify.Verifier
	Intake  *intake.Intake
	DB      *sql.DB
	Version string
}

// NewServer builds the MCP server with all tools registered.
func NewServer(deps Deps) *mcp.Server {
	contactHandlers := NewContactHandlers(deps.Store)
	maintenanceHandlers := NewMaintenanceHandlers(deps.Dedupe, deps.Verify, deps.DB)
	vizHandlers := NewVizHandlers(deps.Store)
	intakeHandlers := NewIntakeHandlers(deps.Intake)
	resourceHandlers := NewResourceHandlers(deps.Store)
	promptHandlers := NewPromptHandlers(deps.Store, deps.Dedupe)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "cardsync",
		Version: deps.Version,
	}, nil)

	// Contact tools
	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_contact",
		Description: "Save a contact, merging into an existing one when a duplicate is found",
	}, contactHandlers.AddContact)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_contacts",
		Description: "Search contacts by name, email, company or title, optionally filtered by tag",
	}, contactHandlers.FindContacts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_contact",
		Description: "Fetch one contact by ID",
	}, contactHandlers.GetContact)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_contact",
		Description: "Edit fields of an existing contact; pass the revision you read to detect concurrent edits",
	}, contactHandlers.UpdateContact)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_contact",
		Description: "Delete a contact and its card document",
	}, contactHandlers.DeleteContact)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "check_duplicate",
		Description: "Check whether a contact would match an existing one, and by which rule",
	}, contactHandlers.CheckDuplicate)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_tags",
		Description: "List every distinct tag in use",
	}, contactHandlers.ListTags)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "scan_card",
		Description: "Scan a business card image into a contact",
	}, intakeHandlers.ScanCard)

	// Maintenance tools
	mcp.AddTool(server, &mcp.Tool{
		Name:        "dedupe_contacts",
		Description: "Fold duplicate contacts together and clean up their card documents",
	}, maintenanceHandlers.Dedupe)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sweep_documents",
		Description: "Delete card documents that no longer belong to any contact",
	}, maintenanceHandlers.SweepDocuments)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "verify_contacts",
		Description: "Check every email domain for mail servers and stamp verification dates",
	}, maintenanceHandlers.VerifyContacts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "job_status",
		Description: "Show the last run of each batch job",
	}, maintenanceHandlers.JobStatus)

	// Visualization tools
	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_graph",
		Description: "Generate a GraphViz DOT career graph of contacts and their employers",
	}, vizHandlers.GenerateGraph)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "dashboard",
		Description: "Summarize the contact list: verification, email health, tags and stale contacts",
	}, vizHandlers.Dashboard)

	registerResources(server, resourceHandlers)
	registerPrompts(server, promptHandlers)

	return server
}

func registerResources(server *mcp.Server, h *ResourceHandlers) {
	server.AddResource(&mcp.Resource{
		URI:         resourceScheme + "contacts",
		Name:        "contacts",
		Description: "Every contact",
		MIMEType:    "application/json",
	}, h.ReadResource)

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: resourceScheme + "contacts/{id}",
		Name:        "contact",
		Description: "One contact including role history",
		MIMEType:    "application/json",
	}, h.ReadResource)

	server.AddResource(&mcp.Resource{
		URI:         resourceScheme + "tags",
		Name:        "tags",
		Description: "Distinct tags in use",
		MIMEType:    "application/json",
	}, h.ReadResource)
}

func registerPrompts(server *mcp.Server, h *PromptHandlers) {
	server.AddPrompt(&mcp.Prompt{
		Name:        "contact-summary",
		Title:       "Contact Summary",
		Description: "Summarize a contact's role, career path and next step",
		Arguments: []*mcp.PromptArgument{
			{
				Name:        "contact_id",
				Description: "ID of the contact to summarize",
				Required:    true,
			},
		},
	}, h.GetPrompt)

	server.AddPrompt(&mcp.Prompt{
		Name:        "duplicate-review",
		Title:       "Duplicate Review",
		Description: "Review the duplicate groups a dedupe run would fold together",
	}, h.GetPrompt)

	server.AddPrompt(&mcp.Prompt{
		Name:        "tag-cleanup",
		Title:       "Tag Cleanup",
		Description: "Propose a canonical tag mapping for the tags in use",
	}, h.GetPrompt)
}
