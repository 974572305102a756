// ABOUTME: Markdown rendering and parsing of per-contact documents
// ABOUTME: Fixed metadata block and section layout shared with external tooling
package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/harperreed/cardsync/models"
	"github.com/harperreed/cardsync/record"
	"gopkg.in/yaml.v3"
)

// Metadata is the key/value block at the top of a document.
type Metadata struct {
	ID                 string   `yaml:"id"`
	Name               string   `yaml:"name"`
	Title              string   `yaml:"title"`
	Company            string   `yaml:"company"`
	Email              string   `yaml:"email"`
	Phone              string   `yaml:"phone"`
	Tags               []string `yaml:"tags"`
	MetAt              string   `yaml:"met_at"`
	AddedAt            string   `yaml:"added_at"`
	ImageURL           string   `yaml:"image_url"`
	ImportanceScore    int      `yaml:"importance_score"`
	VerificationStatus string   `yaml:"verification_status"`
}

// Document is a parsed contact document.
type Document struct {
	Meta Metadata
	Body string
}

var ErrNoMetadata = errors.New("document has no metadata block")

const fence = "---"

// Render produces the document for c. Optional lines render as blank lines
// so section offsets stay stable for line-oriented readers.
func Render(c models.Contact) []byte {
	status := string(c.VerificationStatus)
	if status == "" {
		status = string(models.VerificationUnknown)
	}
	quotedTags := make([]string, len(c.Tags))
	for i, t := range c.Tags {
		quotedTags[i] = quote(t)
	}

	lines := []string{
		fence,
		"id: " + quote(c.ID),
		"name: " + quote(c.Name),
		"title: " + quote(c.Title),
		"company: " + quote(c.Company),
		"email: " + quote(c.Email),
		"phone: " + quote(c.Phone),
		"tags: [" + strings.Join(quotedTags, ", ") + "]",
		"met_at: " + quote(c.MetAt),
		"added_at: " + quote(record.FormatTime(c.AddedAt)),
		"image_url: " + quote(c.ImageURL),
		"importance_score: " + strconv.Itoa(c.ImportanceScore),
		"verification_status: " + quote(status),
		fence,
		"",
		"# " + c.Name,
		"",
		optional(c.ImageURL != "", "![Card Image]("+c.ImageURL+")"),
		"",
		"**" + c.Title + "** @ " + c.Company,
		"",
		"## Relationship Context",
		"- Met At: " + orDefault(c.MetAt, "Not specified"),
		"",
		"## Contact Details",
		"- Email: " + orDefault(c.Email, "N/A"),
		optional(c.SecondaryEmail != "", "- Secondary Email: "+c.SecondaryEmail),
		"- Phone: " + orDefault(c.Phone, "N/A"),
		"- Website: " + orDefault(c.SocialProfiles.Website, "N/A"),
		"",
		"## Online Presence",
		optional(c.SocialProfiles.LinkedIn != "", "- LinkedIn: "+c.SocialProfiles.LinkedIn),
		optional(c.SocialProfiles.Facebook != "", "- Facebook: "+c.SocialProfiles.Facebook),
		optional(c.SocialProfiles.Instagram != "", "- Instagram: "+c.SocialProfiles.Instagram),
		"",
		"## AI Summary",
		orDefault(c.AISummary, "No summary generated yet."),
		"",
		"## Notes",
		c.Notes,
		"",
		"## Career History",
	}
	for _, h := range c.History {
		lines = append(lines, fmt.Sprintf("- %s @ %s (%s)", h.Title, h.Company, orDefault(h.Date, "Past")))
	}
	lines = append(lines, "")

	return []byte(strings.Join(lines, "\n"))
}

// ParseDocument splits a document into its metadata block and body.
func ParseDocument(data []byte) (Document, error) {
	text := string(bytes.TrimPrefix(data, []byte("\ufeff")))
	if !strings.HasPrefix(text, fence+"\n") {
		return Document{}, ErrNoMetadata
	}
	rest := text[len(fence)+1:]
	end := strings.Index(rest, "\n"+fence+"\n")
	if end < 0 {
		return Document{}, ErrNoMetadata
	}

	var doc Document
	if err := yaml.Unmarshal([]byte(rest[:end]), &doc.Meta); err != nil {
		return Document{}, fmt.Errorf("failed to parse metadata: %w", err)
	}
	doc.Body = rest[end+len(fence)+2:]
	return doc, nil
}

// quote renders s as a double-quoted scalar.
func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	return `"` + r.Replace(s) + `"`
}

func optional(ok bool, line string) string {
	if ok {
		return line
	}
	return ""
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
