// ABOUTME: Contact CLI commands
// ABOUTME: Human-friendly commands for adding, listing, editing and deleting contacts
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/harperreed/cardsync/merge"
	"github.com/harperreed/cardsync/models"
	"github.com/harperreed/cardsync/record"
	"github.com/harperreed/cardsync/store"
)

// out receives command output; tests replace it.
var out io.Writer = os.Stdout

// AddContactCommand saves a contact, merging into a duplicate unless --new is set.
func AddContactCommand(ctx context.Context, rt *store.Runtime, args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	name := fs.String("name", "", "Contact name (required unless --company is set)")
	title := fs.String("title", "", "Job title")
	company := fs.String("company", "", "Company name")
	email := fs.String("email", "", "Email address")
	phone := fs.String("phone", "", "Phone number")
	website := fs.String("website", "", "Website URL")
	linkedin := fs.String("linkedin", "", "LinkedIn profile URL")
	metAt := fs.String("met-at", "", "Where or when you met")
	notes := fs.String("notes", "", "Notes about the contact")
	tagList := fs.String("tags", "", "Comma-separated tags")
	jobStatus := fs.String("job-status", "history", "On a role change: history, concurrent or empty to overwrite")
	forceNew := fs.Bool("new", false, "Always create a new contact")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if strings.TrimSpace(*name) == "" && strings.TrimSpace(*company) == "" {
		return fmt.Errorf("--name or --company is required")
	}
	status, err := merge.ParseJobStatus(*jobStatus)
	if err != nil {
		return err
	}

	contact := models.Contact{
		Name:    *name,
		Title:   *title,
		Company: *company,
		Email:   *email,
		Phone:   *phone,
		SocialProfiles: models.SocialProfiles{
			Website:  *website,
			LinkedIn: *linkedin,
		},
		MetAt: *metAt,
		Notes: *notes,
		Tags:  record.SplitTags(*tagList),
	}

	res, err := rt.Store.Save(ctx, contact, store.SaveOptions{JobStatus: status, MatchDuplicates: !*forceNew})
	if err != nil {
		return fmt.Errorf("failed to save contact: %w", err)
	}

	if res.Created {
		_, _ = fmt.Fprintf(out, "✓ Contact created: %s (ID: %s)\n", res.Contact.Name, res.Contact.ID)
	} else {
		_, _ = fmt.Fprintf(out, "✓ Merged into existing contact: %s (ID: %s, %s match)\n", res.Contact.Name, res.Contact.ID, res.Match.Rule)
	}
	printContactSummary(res.Contact)
	return nil
}

// ListContactsCommand lists contacts.
func ListContactsCommand(ctx context.Context, rt *store.Runtime, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	query := fs.String("query", "", "Search by name, email, company or title")
	tag := fs.String("tag", "", "Only contacts carrying this tag")
	limit := fs.Int("limit", 50, "Maximum results")
	if err := fs.Parse(args); err != nil {
		return err
	}

	contacts, err := rt.Store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list contacts: %w", err)
	}

	q := strings.ToLower(strings.TrimSpace(*query))
	tagKey := rt.Store.Tags().Key(*tag)
	var shown []models.Contact
	for _, c := range contacts {
		if q != "" && !matchesQuery(c, q) {
			continue
		}
		if tagKey != "" && !carriesTag(rt.Store, c, tagKey) {
			continue
		}
		shown = append(shown, c)
		if len(shown) == *limit {
			break
		}
	}

	if len(shown) == 0 {
		_, _ = fmt.Fprintln(out, "No contacts found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tTITLE\tCOMPANY\tEMAIL\tTAGS\tID")
	_, _ = fmt.Fprintln(w, "----\t-----\t-------\t-----\t----\t--")
	for _, c := range shown {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.Name, dash(c.Title), dash(c.Company), dash(c.Email), dash(strings.Join(c.Tags, ", ")), c.ID)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\nShowing %d of %d contacts\n", len(shown), len(contacts))
	return nil
}

// GetContactCommand prints one contact in full.
func GetContactCommand(ctx context.Context, rt *store.Runtime, args []string) error {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "Print the snapshot JSON form")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("contact ID required")
	}

	c, err := rt.Store.Get(ctx, fs.Arg(0))
	if err != nil {
		return fmt.Errorf("failed to get contact: %w", err)
	}
	if c == nil {
		return fmt.Errorf("contact not found: %s", fs.Arg(0))
	}

	if *asJSON {
		data, err := record.MarshalSnapshot([]models.Contact{*c})
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, string(data))
		return nil
	}

	_, _ = fmt.Fprintf(out, "%s (ID: %s, revision %d)\n", c.Name, c.ID, c.Revision)
	printContactSummary(*c)
	for _, h := range c.History {
		_, _ = fmt.Fprintf(out, "  Previously: %s @ %s (%s)\n", h.Title, h.Company, h.Date)
	}
	if c.LastVerifiedAt != "" {
		_, _ = fmt.Fprintf(out, "  Verified: %s (%s, email %s)\n", c.LastVerifiedAt, c.VerificationStatus, c.EmailValid)
	}
	if c.Notes != "" {
		_, _ = fmt.Fprintf(out, "  Notes: %s\n", c.Notes)
	}
	return nil
}

// UpdateContactCommand edits fields of an existing contact. Only flags that
// are given change anything.
func UpdateContactCommand(ctx context.Context, rt *store.Runtime, args []string) error {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	fs.String("name", "", "Contact name")
	fs.String("title", "", "Job title")
	fs.String("company", "", "Company name")
	fs.String("email", "", "Email address")
	fs.String("phone", "", "Phone number")
	fs.String("website", "", "Website URL")
	fs.String("linkedin", "", "LinkedIn profile URL")
	fs.String("met-at", "", "Where or when you met")
	fs.String("notes", "", "Notes")
	fs.String("tags", "", "Comma-separated replacement tags")
	score := fs.Int("score", -1, "Importance score 0-100")
	revision := fs.Int64("revision", 0, "Expected current revision")
	jobStatus := fs.String("job-status", "history", "On a role change: history, concurrent or empty to overwrite")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("contact ID required")
	}
	status, err := merge.ParseJobStatus(*jobStatus)
	if err != nil {
		return err
	}

	set := map[string]*string{}
	fs.Visit(func(f *flag.Flag) {
		v := f.Value.String()
		set[f.Name] = &v
	})

	patch := store.Patch{
		Name:     set["name"],
		Title:    set["title"],
		Company:  set["company"],
		Email:    set["email"],
		Phone:    set["phone"],
		Website:  set["website"],
		LinkedIn: set["linkedin"],
		MetAt:    set["met-at"],
		Notes:    set["notes"],
		Revision: *revision,
	}
	if t, ok := set["tags"]; ok {
		tags := record.SplitTags(*t)
		patch.Tags = &tags
	}
	if *score >= 0 {
		patch.ImportanceScore = score
	}

	updated, err := rt.Store.Update(ctx, fs.Arg(0), patch, status)
	if errors.Is(err, store.ErrRevisionConflict) {
		return fmt.Errorf("contact changed since revision %d, reload and retry: %w", *revision, err)
	}
	if err != nil {
		return fmt.Errorf("failed to update contact: %w", err)
	}
	if updated == nil {
		return fmt.Errorf("contact not found: %s", fs.Arg(0))
	}

	_, _ = fmt.Fprintf(out, "✓ Contact updated: %s (revision %d)\n", updated.Name, updated.Revision)
	printContactSummary(*updated)
	return nil
}

// DeleteContactCommand deletes a contact and its card document.
func DeleteContactCommand(ctx context.Context, rt *store.Runtime, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("contact ID required")
	}

	removed, err := rt.Store.Delete(ctx, fs.Arg(0))
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	if removed == nil {
		_, _ = fmt.Fprintf(out, "No contact with ID %s\n", fs.Arg(0))
		return nil
	}
	_, _ = fmt.Fprintf(out, "✓ Deleted contact: %s\n", removed.Name)
	return nil
}

// TagsCommand lists every distinct tag.
func TagsCommand(ctx context.Context, rt *store.Runtime, args []string) error {
	tags, err := rt.Store.UniqueTags(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tags: %w", err)
	}
	for _, t := range tags {
		_, _ = fmt.Fprintln(out, t)
	}
	return nil
}

func printContactSummary(c models.Contact) {
	if c.Title != "" || c.Company != "" {
		_, _ = fmt.Fprintf(out, "  Role: %s\n", strings.Trim(c.Title+" @ "+c.Company, " @"))
	}
	if c.Email != "" {
		_, _ = fmt.Fprintf(out, "  Email: %s\n", c.Email)
	}
	if c.Phone != "" {
		_, _ = fmt.Fprintf(out, "  Phone: %s\n", c.Phone)
	}
	if len(c.Tags) > 0 {
		_, _ = fmt.Fprintf(out, "  Tags: %s\n", strings.Join(c.Tags, ", "))
	}
}

func matchesQuery(c models.Contact, query string) bool {
	for _, field := range []string{c.Name, c.Email, c.SecondaryEmail, c.Company, c.Title} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

func carriesTag(st *store.Store, c models.Contact, key string) bool {
	for _, t := range c.Tags {
		if st.Tags().Key(t) == key {
			return true
		}
	}
	return false
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
