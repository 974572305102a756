// ABOUTME: Data models for contact records
// ABOUTME: Defines Contact, SocialProfiles, HistoryEntry and the status enums
package models

import (
	"strings"
	"time"
)

type VerificationStatus string

const (
	VerificationUnknown  VerificationStatus = "Unknown"
	VerificationFresh    VerificationStatus = "Fresh"
	VerificationStale    VerificationStatus = "Stale"
	VerificationMismatch VerificationStatus = "Mismatch"
)

type EmailValidity string

const (
	EmailUnknown EmailValidity = "Unknown"
	EmailValid   EmailValidity = "Valid"
	EmailInvalid EmailValidity = "Invalid"
	EmailNone    EmailValidity = "No Email"
)

// CompanyCardTag marks records created from a card that carried only a company.
const CompanyCardTag = "Company Card"

type SocialProfiles struct {
	Website   string `json:"website"`
	LinkedIn  string `json:"linkedin"`
	Facebook  string `json:"facebook"`
	Instagram string `json:"instagram"`
}

// IsZero reports whether no profile URL is set.
func (s SocialProfiles) IsZero() bool {
	return s == SocialProfiles{}
}

// HistoryEntry is a past role. Date is free text: an ISO date or empty.
type HistoryEntry struct {
	Title   string `json:"title"`
	Company string `json:"company"`
	Date    string `json:"date"`
}

type Contact struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Title              string             `json:"title"`
	Company            string             `json:"company"`
	Email              string             `json:"email"`
	SecondaryEmail     string             `json:"secondaryEmail"`
	Phone              string             `json:"phone"`
	SocialProfiles     SocialProfiles     `json:"socialProfiles"`
	MetAt              string             `json:"metAt"`
	Notes              string             `json:"notes"`
	Tags               []string           `json:"tags"`
	AISummary          string             `json:"aiSummary"`
	AddedAt            time.Time          `json:"addedAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
	ImageURL           string             `json:"imageUrl"`
	ImportanceScore    int                `json:"importanceScore"`
	LastVerifiedAt     string             `json:"lastVerifiedAt"`
	VerificationStatus VerificationStatus `json:"verificationStatus"`
	EmailValid         EmailValidity      `json:"emailValid"`
	History            []HistoryEntry     `json:"history"`
	Revision           int64              `json:"revision"`
}

// Clone returns a deep copy so callers can mutate slices freely.
func (c Contact) Clone() Contact {
	out := c
	if c.Tags != nil {
		out.Tags = append([]string(nil), c.Tags...)
	}
	if c.History != nil {
		out.History = append([]HistoryEntry(nil), c.History...)
	}
	return out
}

// LastTouched is UpdatedAt, falling back to AddedAt. Zero when neither is set.
func (c Contact) LastTouched() time.Time {
	if !c.UpdatedAt.IsZero() {
		return c.UpdatedAt
	}
	return c.AddedAt
}

// ApplyDefaults fills the status enums and clamps the importance score.
func (c *Contact) ApplyDefaults() {
	if c.VerificationStatus == "" {
		c.VerificationStatus = VerificationUnknown
	}
	if c.EmailValid == "" {
		c.EmailValid = EmailUnknown
	}
	c.ImportanceScore = ClampScore(c.ImportanceScore)
}

// ApplyCompanyCard names a nameless record after its company and tags it.
// Reports whether the rule fired.
func (c *Contact) ApplyCompanyCard() bool {
	if strings.TrimSpace(c.Name) != "" || strings.TrimSpace(c.Company) == "" {
		return false
	}
	c.Name = strings.TrimSpace(c.Company)
	for _, t := range c.Tags {
		if t == CompanyCardTag {
			return true
		}
	}
	c.Tags = append(c.Tags, CompanyCardTag)
	return true
}

func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
