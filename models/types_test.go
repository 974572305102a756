// ABOUTME: Tests for contact data models
// ABOUTME: Validates defaults, cloning, and the company card rule
package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults(t *testing.T) {
	c := Contact{ImportanceScore: 140}
	c.ApplyDefaults()

	assert.Equal(t, VerificationUnknown, c.VerificationStatus)
	assert.Equal(t, EmailUnknown, c.EmailValid)
	assert.Equal(t, 100, c.ImportanceScore)

	c = Contact{ImportanceScore: -3, EmailValid: EmailNone}
	c.ApplyDefaults()
	assert.Equal(t, 0, c.ImportanceScore)
	assert.Equal(t, EmailNone, c.EmailValid)
}

func TestCloneIsDeep(t *testing.T) {
	c := Contact{Tags: []string{"AI"}, History: []HistoryEntry{{Title: "CEO"}}}
	cp := c.Clone()
	cp.Tags[0] = "VR"
	cp.History[0].Title = "CTO"

	assert.Equal(t, "AI", c.Tags[0])
	assert.Equal(t, "CEO", c.History[0].Title)
}

func TestApplyCompanyCard(t *testing.T) {
	c := Contact{Company: "  Acme  "}
	assert.True(t, c.ApplyCompanyCard())
	assert.Equal(t, "Acme", c.Name)
	assert.Equal(t, []string{CompanyCardTag}, c.Tags)

	named := Contact{Name: "Ann", Company: "Acme"}
	assert.False(t, named.ApplyCompanyCard())
	assert.Empty(t, named.Tags)

	empty := Contact{}
	assert.False(t, empty.ApplyCompanyCard())
}

func TestLastTouched(t *testing.T) {
	added := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	updated := added.Add(time.Hour)

	assert.Equal(t, updated, Contact{AddedAt: added, UpdatedAt: updated}.LastTouched())
	assert.Equal(t, added, Contact{AddedAt: added}.LastTouched())
	assert.True(t, Contact{}.LastTouched().IsZero())
}
