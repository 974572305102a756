// ABOUTME: JSON snapshot codec for contact records
// ABOUTME: Reads and writes the data/contacts.json array used by the snapshot backend and mirrors
package record

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/harperreed/cardsync/models"
)

// snapshotContact mirrors models.Contact with timestamps as ISO strings so the
// file keeps the millisecond format the rest of the tooling writes.
type snapshotContact struct {
	ID                 string                `json:"id"`
	Name               string                `json:"name"`
	Title              string                `json:"title"`
	Company            string                `json:"company"`
	Email              string                `json:"email"`
	SecondaryEmail     string                `json:"secondaryEmail"`
	Phone              string                `json:"phone"`
	SocialProfiles     models.SocialProfiles `json:"socialProfiles"`
	MetAt              string                `json:"metAt"`
	Notes              string                `json:"notes"`
	Tags               []string              `json:"tags"`
	AISummary          string                `json:"aiSummary"`
	AddedAt            string                `json:"addedAt"`
	UpdatedAt          string                `json:"updatedAt"`
	ImageURL           string                `json:"imageUrl"`
	ImportanceScore    json.RawMessage       `json:"importanceScore,omitempty"`
	LastVerifiedAt     string                `json:"lastVerifiedAt"`
	VerificationStatus string                `json:"verificationStatus"`
	EmailValid         string                `json:"emailValid"`
	History            []models.HistoryEntry `json:"history"`
	Revision           int64                 `json:"revision,omitempty"`
	// Website is a legacy top-level copy of socialProfiles.website.
	Website string `json:"website,omitempty"`
}

// MarshalSnapshot encodes contacts as an indented JSON array.
func MarshalSnapshot(contacts []models.Contact) ([]byte, error) {
	out := make([]snapshotContact, 0, len(contacts))
	for _, c := range contacts {
		c.ApplyDefaults()
		tags := c.Tags
		if tags == nil {
			tags = []string{}
		}
		history := c.History
		if history == nil {
			history = []models.HistoryEntry{}
		}
		out = append(out, snapshotContact{
			ID:                 c.ID,
			Name:               c.Name,
			Title:              c.Title,
			Company:            c.Company,
			Email:              c.Email,
			SecondaryEmail:     c.SecondaryEmail,
			Phone:              c.Phone,
			SocialProfiles:     c.SocialProfiles,
			MetAt:              c.MetAt,
			Notes:              c.Notes,
			Tags:               tags,
			AISummary:          c.AISummary,
			AddedAt:            FormatTime(c.AddedAt),
			UpdatedAt:          FormatTime(c.UpdatedAt),
			ImageURL:           c.ImageURL,
			ImportanceScore:    json.RawMessage(fmt.Sprintf("%d", c.ImportanceScore)),
			LastVerifiedAt:     c.LastVerifiedAt,
			VerificationStatus: string(c.VerificationStatus),
			EmailValid:         string(c.EmailValid),
			History:            history,
			Revision:           c.Revision,
		})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalSnapshot decodes a snapshot file. Empty input is an empty set.
// importanceScore may be a number or a numeric string.
func UnmarshalSnapshot(data []byte) ([]models.Contact, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []models.Contact{}, nil
	}

	var raw []snapshotContact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	contacts := make([]models.Contact, 0, len(raw))
	for _, s := range raw {
		sp := s.SocialProfiles
		if sp.Website == "" {
			sp.Website = s.Website
		}
		tags := make([]string, 0, len(s.Tags))
		for _, t := range s.Tags {
			if t != "" {
				tags = append(tags, t)
			}
		}
		history := s.History
		if history == nil {
			history = []models.HistoryEntry{}
		}
		c := models.Contact{
			ID:                 s.ID,
			Name:               s.Name,
			Title:              s.Title,
			Company:            s.Company,
			Email:              s.Email,
			SecondaryEmail:     s.SecondaryEmail,
			Phone:              s.Phone,
			SocialProfiles:     sp,
			MetAt:              s.MetAt,
			Notes:              s.Notes,
			Tags:               tags,
			AISummary:          s.AISummary,
			AddedAt:            ParseTime(s.AddedAt),
			UpdatedAt:          ParseTime(s.UpdatedAt),
			ImageURL:           s.ImageURL,
			ImportanceScore:    scoreFromJSON(s.ImportanceScore),
			LastVerifiedAt:     s.LastVerifiedAt,
			VerificationStatus: models.VerificationStatus(s.VerificationStatus),
			EmailValid:         models.EmailValidity(s.EmailValid),
			History:            history,
			Revision:           s.Revision,
		}
		c.ApplyDefaults()
		contacts = append(contacts, c)
	}
	return contacts, nil
}

func scoreFromJSON(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int(n)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return leadingInt(s)
	}
	return 0
}
