// ABOUTME: Tabular row codec for contact records
// ABOUTME: Maps Contact to fixed column positions and back, tolerating short or malformed rows
package record

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/harperreed/cardsync/models"
)

// Column positions. The first 22 are shared with older tooling; history and
// revision are appended so they survive a round trip through the sheet.
const (
	ColID = iota
	ColName
	ColTitle
	ColCompany
	ColEmail
	ColSecondaryEmail
	ColPhone
	ColWebsite
	ColLinkedIn
	ColFacebook
	ColInstagram
	ColMetAt
	ColNotes
	ColTags
	ColAISummary
	ColAddedAt
	ColUpdatedAt
	ColImageURL
	ColImportanceScore
	ColLastVerifiedAt
	ColVerificationStatus
	ColEmailValid
	ColHistory
	ColRevision

	Width = ColRevision + 1
)

// CanonicalWidth is the column count understood by older readers.
const CanonicalWidth = ColEmailValid + 1

// Header is the sheet's first row.
var Header = []string{
	"id", "name", "title", "company", "email", "secondaryEmail", "phone",
	"website", "linkedin", "facebook", "instagram", "metAt", "notes", "tags",
	"aiSummary", "addedAt", "updatedAt", "imageUrl", "importanceScore",
	"lastVerifiedAt", "verificationStatus", "emailValid", "history", "revision",
}

// TimeLayout is ISO-8601 UTC with millisecond precision.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// ToRow renders a contact as exactly Width cells.
func ToRow(c models.Contact) []string {
	row := make([]string, Width)
	row[ColID] = c.ID
	row[ColName] = c.Name
	row[ColTitle] = c.Title
	row[ColCompany] = c.Company
	row[ColEmail] = c.Email
	row[ColSecondaryEmail] = c.SecondaryEmail
	row[ColPhone] = c.Phone
	row[ColWebsite] = c.SocialProfiles.Website
	row[ColLinkedIn] = c.SocialProfiles.LinkedIn
	row[ColFacebook] = c.SocialProfiles.Facebook
	row[ColInstagram] = c.SocialProfiles.Instagram
	row[ColMetAt] = c.MetAt
	row[ColNotes] = c.Notes
	row[ColTags] = JoinTags(c.Tags)
	row[ColAISummary] = c.AISummary
	row[ColAddedAt] = FormatTime(c.AddedAt)
	row[ColUpdatedAt] = FormatTime(c.UpdatedAt)
	row[ColImageURL] = c.ImageURL
	row[ColImportanceScore] = strconv.Itoa(c.ImportanceScore)
	row[ColLastVerifiedAt] = c.LastVerifiedAt
	row[ColVerificationStatus] = string(c.VerificationStatus)
	if row[ColVerificationStatus] == "" {
		row[ColVerificationStatus] = string(models.VerificationUnknown)
	}
	row[ColEmailValid] = string(c.EmailValid)
	if row[ColEmailValid] == "" {
		row[ColEmailValid] = string(models.EmailUnknown)
	}
	if len(c.History) > 0 {
		if data, err := json.Marshal(c.History); err == nil {
			row[ColHistory] = string(data)
		}
	}
	if c.Revision > 0 {
		row[ColRevision] = strconv.FormatInt(c.Revision, 10)
	}
	return row
}

// ToCells converts a row to the []interface{} shape the Sheets API expects.
func ToCells(row []string) []interface{} {
	cells := make([]interface{}, len(row))
	for i, v := range row {
		cells[i] = v
	}
	return cells
}

// FromRow decodes a row of any width. Missing cells read as empty, a
// non-numeric importance score reads as 0, and unparseable timestamps read
// as the zero time.
func FromRow(cells []interface{}) models.Contact {
	row := make([]string, Width)
	for i := 0; i < len(cells) && i < Width; i++ {
		row[i] = cellString(cells[i])
	}

	c := models.Contact{
		ID:             row[ColID],
		Name:           row[ColName],
		Title:          row[ColTitle],
		Company:        row[ColCompany],
		Email:          row[ColEmail],
		SecondaryEmail: row[ColSecondaryEmail],
		Phone:          row[ColPhone],
		SocialProfiles: models.SocialProfiles{
			Website:   row[ColWebsite],
			LinkedIn:  row[ColLinkedIn],
			Facebook:  row[ColFacebook],
			Instagram: row[ColInstagram],
		},
		MetAt:              row[ColMetAt],
		Notes:              row[ColNotes],
		Tags:               SplitTags(row[ColTags]),
		AISummary:          row[ColAISummary],
		AddedAt:            ParseTime(row[ColAddedAt]),
		UpdatedAt:          ParseTime(row[ColUpdatedAt]),
		ImageURL:           row[ColImageURL],
		ImportanceScore:    leadingInt(row[ColImportanceScore]),
		LastVerifiedAt:     row[ColLastVerifiedAt],
		VerificationStatus: models.VerificationStatus(row[ColVerificationStatus]),
		EmailValid:         models.EmailValidity(row[ColEmailValid]),
		History:            []models.HistoryEntry{},
	}
	c.ApplyDefaults()

	if raw := strings.TrimSpace(row[ColHistory]); raw != "" {
		var history []models.HistoryEntry
		if err := json.Unmarshal([]byte(raw), &history); err == nil {
			c.History = history
		}
	}
	if rev, err := strconv.ParseInt(strings.TrimSpace(row[ColRevision]), 10, 64); err == nil && rev > 0 {
		c.Revision = rev
	}
	return c
}

// FromStrings is FromRow for plain string rows.
func FromStrings(row []string) models.Contact {
	cells := make([]interface{}, len(row))
	for i, v := range row {
		cells[i] = v
	}
	return FromRow(cells)
}

// JoinTags renders tags as a single ", " separated cell.
func JoinTags(tags []string) string {
	return strings.Join(tags, ", ")
}

// SplitTags splits a tag cell on commas, trimming and dropping empties.
func SplitTags(cell string) []string {
	tags := []string{}
	for _, part := range strings.Split(cell, ",") {
		if t := strings.TrimSpace(part); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// FormatTime renders t in TimeLayout, or "" for the zero time.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime accepts ISO-8601 timestamps and bare dates; anything else is zero.
func ParseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func cellString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// leadingInt parses an optional sign and leading digits, ignoring the rest.
func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
