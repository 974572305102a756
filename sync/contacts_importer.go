// ABOUTME: Google Contacts API importer
// ABOUTME: Fetches connections from the People API and folds them into the store with deduplication
package sync

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/people/v1"

	"github.com/harperreed/cardsync/db"
	"github.com/harperreed/cardsync/merge"
	"github.com/harperreed/cardsync/models"
	"github.com/harperreed/cardsync/store"
)

// ContactsService names Google Contacts in the import log.
const ContactsService = "google_contacts"

// ImportTag is added to every contact created by an import.
const ImportTag = "Google Contacts"

type GoogleContact struct {
	ResourceName   string
	Name           string
	Email          string
	SecondaryEmail string
	Phone          string
	Company        string
	JobTitle       string
	Website        string
	Notes          string
}

// Contact is the store record for gc.
func (gc *GoogleContact) Contact() models.Contact {
	return models.Contact{
		Name:           gc.Name,
		Title:          gc.JobTitle,
		Company:        gc.Company,
		Email:          gc.Email,
		SecondaryEmail: gc.SecondaryEmail,
		Phone:          gc.Phone,
		SocialProfiles: models.SocialProfiles{Website: gc.Website},
		Notes:          gc.Notes,
		Tags:           []string{ImportTag},
	}
}

// Outcome is what happened to one imported contact.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
)

// ImportReport summarizes a run.
type ImportReport struct {
	Fetched   int
	Skipped   int
	Created   int
	Updated   int
	Unchanged int
	Failed    []string
}

func (r ImportReport) String() string {
	return fmt.Sprintf("fetched %d, created %d, updated %d, unchanged %d, skipped %d, failed %d",
		r.Fetched, r.Created, r.Updated, r.Unchanged, r.Skipped, len(r.Failed))
}

type ContactsImporter struct {
	store *store.Store
	// db holds the import log; nil imports every connection every time.
	db     *sql.DB
	DryRun bool
	logger *zap.Logger
}

func NewContactsImporter(st *store.Store, database *sql.DB, logger *zap.Logger) *ContactsImporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContactsImporter{
		store:  st,
		db:     database,
		logger: logger.Named("google_contacts"),
	}
}

// ImportContact creates a new contact, or fills the empty fields of the
// duplicate it matches. Fields already set locally are never overwritten.
func (ci *ContactsImporter) ImportContact(ctx context.Context, gc *GoogleContact) (Outcome, string, error) {
	incoming := gc.Contact()
	found, err := ci.store.FindDuplicate(ctx, incoming)
	if err != nil {
		return "", "", err
	}

	if found == nil {
		if ci.DryRun {
			return OutcomeCreated, "", nil
		}
		res, err := ci.store.Save(ctx, incoming, store.SaveOptions{})
		if err != nil {
			return "", "", fmt.Errorf("failed to create contact: %w", err)
		}
		return OutcomeCreated, res.Contact.ID, ci.logImport(ctx, gc.ResourceName, res.Contact.ID)
	}

	existing := found.Contact
	patch, changed := fillGaps(existing, incoming)
	if !changed {
		return OutcomeUnchanged, existing.ID, ci.logImport(ctx, gc.ResourceName, existing.ID)
	}
	if ci.DryRun {
		return OutcomeUpdated, existing.ID, nil
	}

	patch.Revision = existing.Revision
	updated, err := ci.store.Update(ctx, existing.ID, patch, merge.JobOverwrite)
	if err != nil {
		return "", "", fmt.Errorf("failed to update contact %s: %w", existing.ID, err)
	}
	if updated == nil {
		return "", "", fmt.Errorf("contact %s disappeared during import", existing.ID)
	}
	return OutcomeUpdated, existing.ID, ci.logImport(ctx, gc.ResourceName, existing.ID)
}

// fillGaps builds a patch that only sets fields empty on existing.
func fillGaps(existing, incoming models.Contact) (store.Patch, bool) {
	var patch store.Patch
	changed := false
	fill := func(dst **string, have, want string) {
		if strings.TrimSpace(have) == "" && strings.TrimSpace(want) != "" {
			v := want
			*dst = &v
			changed = true
		}
	}

	fill(&patch.Title, existing.Title, incoming.Title)
	fill(&patch.Company, existing.Company, incoming.Company)
	fill(&patch.Email, existing.Email, incoming.Email)
	fill(&patch.Phone, existing.Phone, incoming.Phone)
	fill(&patch.Website, existing.SocialProfiles.Website, incoming.SocialProfiles.Website)
	fill(&patch.Notes, existing.Notes, incoming.Notes)

	// A second address goes to the secondary slot unless it is already known.
	if incoming.Email != "" && existing.Email != "" &&
		!strings.EqualFold(incoming.Email, existing.Email) &&
		!strings.EqualFold(incoming.Email, existing.SecondaryEmail) {
		fill(&patch.SecondaryEmail, existing.SecondaryEmail, incoming.Email)
	}
	return patch, changed
}

func (ci *ContactsImporter) logImport(ctx context.Context, resourceName, contactID string) error {
	if ci.db == nil || ci.DryRun || resourceName == "" {
		return nil
	}
	return db.LogImport(ctx, ci.db, ContactsService, resourceName, contactID)
}

func (ci *ContactsImporter) alreadyImported(ctx context.Context, resourceName string) (bool, error) {
	if ci.db == nil || resourceName == "" {
		return false, nil
	}
	return db.CheckImportLogged(ctx, ci.db, ContactsService, resourceName)
}

// ImportContacts pages through every connection and imports the new ones.
// Individual failures are collected in the report; a paging error aborts.
func (ci *ContactsImporter) ImportContacts(ctx context.Context, client PeopleLister) (*ImportReport, error) {
	report := &ImportReport{}
	pageToken := ""

	for {
		connections, next, err := client.ListConnections(ctx, pageToken)
		if err != nil {
			return report, err
		}
		report.Fetched += len(connections)

		for _, person := range connections {
			gc := convertPerson(person)

			// A name plus a way to reach them is required
			if gc.Name == "" || (gc.Email == "" && gc.Phone == "") {
				report.Skipped++
				continue
			}

			seen, err := ci.alreadyImported(ctx, gc.ResourceName)
			if err != nil {
				return report, err
			}
			if seen {
				report.Skipped++
				continue
			}

			outcome, _, err := ci.ImportContact(ctx, gc)
			if err != nil {
				ci.logger.Warn("failed to import contact", zap.String("name", gc.Name), zap.Error(err))
				report.Failed = append(report.Failed, gc.Name)
				continue
			}
			switch outcome {
			case OutcomeCreated:
				report.Created++
			case OutcomeUpdated:
				report.Updated++
			default:
				report.Unchanged++
			}
		}

		pageToken = next
		if pageToken == "" {
			break
		}
		ci.logger.Debug("fetched page", zap.Int("fetched", report.Fetched))
	}

	ci.logger.Info("google contacts imported",
		zap.Int("fetched", report.Fetched),
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("failed", len(report.Failed)))
	return report, nil
}

// convertPerson converts a People API Person to GoogleContact.
func convertPerson(person *people.Person) *GoogleContact {
	gc := &GoogleContact{
		ResourceName: person.ResourceName,
	}

	if len(person.Names) > 0 {
		gc.Name = strings.TrimSpace(person.Names[0].DisplayName)
	}

	// Prefer the primary email; the first other one becomes the secondary
	for _, email := range person.EmailAddresses {
		if email.Value == "" {
			continue
		}
		if email.Metadata != nil && email.Metadata.Primary {
			if gc.Email != "" && gc.SecondaryEmail == "" {
				gc.SecondaryEmail = gc.Email
			}
			gc.Email = email.Value
			continue
		}
		if gc.Email == "" {
			gc.Email = email.Value
		} else if gc.SecondaryEmail == "" {
			gc.SecondaryEmail = email.Value
		}
	}

	// Extract phone (prefer primary, otherwise first available)
	for _, phone := range person.PhoneNumbers {
		if phone.Value != "" {
			if gc.Phone == "" {
				gc.Phone = phone.Value
			}
			if phone.Metadata != nil && phone.Metadata.Primary {
				gc.Phone = phone.Value
				break
			}
		}
	}

	if len(person.Organizations) > 0 {
		org := person.Organizations[0]
		gc.Company = org.Name
		gc.JobTitle = org.Title
	}

	if len(person.Urls) > 0 {
		gc.Website = person.Urls[0].Value
	}

	if len(person.Biographies) > 0 {
		gc.Notes = person.Biographies[0].Value
	}

	return gc
}
