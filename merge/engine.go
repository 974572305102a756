// ABOUTME: Field-level merge policy for contact records
// ABOUTME: Interactive merge with job-change handling and the batch absorb used by deduplication
package merge

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/cardsync/match"
	"github.com/harperreed/cardsync/models"
	"github.com/harperreed/cardsync/record"
	"github.com/harperreed/cardsync/tags"
)

// JobStatus tells Merge how to treat a changed title or company.
type JobStatus string

const (
	// JobOverwrite replaces the role without tracking it.
	JobOverwrite JobStatus = ""
	// JobHistory archives the previous role into History.
	JobHistory JobStatus = "history"
	// JobConcurrent keeps both roles active in the current fields.
	JobConcurrent JobStatus = "concurrent"
)

var ErrInvalidJobStatus = errors.New("invalid job status")

// ParseJobStatus accepts "", "history" and "concurrent".
func ParseJobStatus(s string) (JobStatus, error) {
	switch JobStatus(strings.ToLower(strings.TrimSpace(s))) {
	case JobOverwrite:
		return JobOverwrite, nil
	case JobHistory:
		return JobHistory, nil
	case JobConcurrent:
		return JobConcurrent, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidJobStatus, s)
}

// Engine merges contacts. Tags are combined with the normalizer's union so
// two spellings of one canonical tag never coexist.
type Engine struct {
	Tags *tags.Normalizer
	Now  func() time.Time
}

// NewEngine returns an engine using the default tag table and wall clock.
func NewEngine(normalizer *tags.Normalizer) *Engine {
	if normalizer == nil {
		normalizer = tags.NewNormalizer(nil)
	}
	return &Engine{Tags: normalizer, Now: time.Now}
}

// RoleChanged reports whether incoming carries a title or company that
// differs from existing.
func RoleChanged(existing, incoming models.Contact) bool {
	return (incoming.Title != "" && incoming.Title != existing.Title) ||
		(incoming.Company != "" && incoming.Company != existing.Company)
}

// Merge overlays incoming onto existing. Non-empty incoming fields win, tags
// are unioned, and a changed role is archived or combined per status.
// Identity fields (ID, AddedAt, Revision) and History come from existing.
func (e *Engine) Merge(existing, incoming models.Contact, status JobStatus) models.Contact {
	out := existing.Clone()
	overlay(&out, incoming)
	out.Tags = e.Tags.Union(existing.Tags, incoming.Tags)

	if RoleChanged(existing, incoming) {
		switch status {
		case JobHistory:
			out.History = append(out.History, models.HistoryEntry{
				Title:   existing.Title,
				Company: existing.Company,
				Date:    record.FormatTime(existing.LastTouched()),
			})
		case JobConcurrent:
			out.Title = joinRole(existing.Title, incoming.Title, " & ")
			out.Company = joinRole(existing.Company, incoming.Company, " / ")
		}
	}
	if out.History == nil {
		out.History = []models.HistoryEntry{}
	}

	out.UpdatedAt = e.now()
	return out
}

// Edit applies an explicit edit. Unlike Merge, edited field values are
// authoritative (a blank field clears it) and its tags replace the set. A
// changed role is still archived or combined per status.
func (e *Engine) Edit(existing, edited models.Contact, status JobStatus) models.Contact {
	out := edited.Clone()
	out.ID = existing.ID
	out.AddedAt = existing.AddedAt
	out.Revision = existing.Revision
	out.History = append([]models.HistoryEntry{}, existing.History...)
	out.Tags = e.Tags.Union(edited.Tags)

	if RoleChanged(existing, edited) {
		switch status {
		case JobHistory:
			out.History = append(out.History, models.HistoryEntry{
				Title:   existing.Title,
				Company: existing.Company,
				Date:    record.FormatTime(existing.LastTouched()),
			})
		case JobConcurrent:
			out.Title = joinRole(existing.Title, edited.Title, " & ")
			out.Company = joinRole(existing.Company, edited.Company, " / ")
		}
	}

	out.ImportanceScore = models.ClampScore(out.ImportanceScore)
	out.UpdatedAt = e.now()
	return out
}

// Absorb folds a superseded record into the survivor of a duplicate group:
// fallback-if-empty for image, notes, encounter and title, tag union, and a
// Latin-script name preferred over one without.
func (e *Engine) Absorb(survivor, other models.Contact) models.Contact {
	out := survivor.Clone()

	if match.HasLatin(other.Name) && !match.HasLatin(out.Name) {
		out.Name = other.Name
	}
	fillEmpty(&out.ImageURL, other.ImageURL)
	fillEmpty(&out.Notes, other.Notes)
	fillEmpty(&out.MetAt, other.MetAt)
	fillEmpty(&out.Title, other.Title)
	out.Tags = e.Tags.Union(out.Tags, other.Tags)
	return out
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now().UTC().Truncate(time.Millisecond)
	}
	return e.Now().UTC().Truncate(time.Millisecond)
}

func joinRole(prev, next, sep string) string {
	switch {
	case next == "" || next == prev:
		return prev
	case prev == "":
		return next
	default:
		return prev + sep + next
	}
}

func fillEmpty(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}

func overlay(dst *models.Contact, src models.Contact) {
	take := func(d *string, s string) {
		if s != "" {
			*d = s
		}
	}
	take(&dst.Name, src.Name)
	take(&dst.Title, src.Title)
	take(&dst.Company, src.Company)
	take(&dst.Email, src.Email)
	take(&dst.SecondaryEmail, src.SecondaryEmail)
	take(&dst.Phone, src.Phone)
	take(&dst.SocialProfiles.Website, src.SocialProfiles.Website)
	take(&dst.SocialProfiles.LinkedIn, src.SocialProfiles.LinkedIn)
	take(&dst.SocialProfiles.Facebook, src.SocialProfiles.Facebook)
	take(&dst.SocialProfiles.Instagram, src.SocialProfiles.Instagram)
	take(&dst.MetAt, src.MetAt)
	take(&dst.Notes, src.Notes)
	take(&dst.AISummary, src.AISummary)
	take(&dst.ImageURL, src.ImageURL)
	take(&dst.LastVerifiedAt, src.LastVerifiedAt)

	if src.ImportanceScore != 0 {
		dst.ImportanceScore = models.ClampScore(src.ImportanceScore)
	}
	// Unknown is the default, not an observation.
	if src.VerificationStatus != "" && src.VerificationStatus != models.VerificationUnknown {
		dst.VerificationStatus = src.VerificationStatus
	}
	if src.EmailValid != "" && src.EmailValid != models.EmailUnknown {
		dst.EmailValid = src.EmailValid
	}
}
