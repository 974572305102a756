// ABOUTME: Company-driven tag and name standardization
// ABOUTME: Applies keyword rules that add organisation tags or expand short company names
package tags

import (
	"strings"

	"github.com/harperreed/cardsync/models"
)

// CompanyRule fires when a contact's company contains any Keywords entry, or
// equals any Exact entry. It then adds Tag and, when set, rewrites the company
// to ExpandTo.
type CompanyRule struct {
	Keywords []string `yaml:"keywords"`
	Exact    []string `yaml:"exact"`
	Tag      string   `yaml:"tag"`
	ExpandTo string   `yaml:"expand_to"`
}

// DefaultCompanyRules are the built-in organisation rules.
var DefaultCompanyRules = []CompanyRule{
	{
		Keywords: []string{"文策院", "文化內容策進院", "Taiwan Creative Content Agency", "TAICCA"},
		Tag:      "TAICCA",
	},
	{
		Exact:    []string{"CMHK", "現在音樂"},
		Tag:      "Contemporary Musiking Hong Kong",
		ExpandTo: "Contemporary Musiking Hong Kong",
	},
}

func (r CompanyRule) matches(company string) bool {
	if company == "" {
		return false
	}
	for _, e := range r.Exact {
		if company == e {
			return true
		}
	}
	for _, k := range r.Keywords {
		if strings.Contains(company, k) {
			return true
		}
	}
	return false
}

// Standardize applies every rule to c and reports whether anything changed.
func Standardize(c *models.Contact, rules []CompanyRule) bool {
	changed := false
	for _, r := range rules {
		if !r.matches(c.Company) {
			continue
		}
		if r.ExpandTo != "" && c.Company != r.ExpandTo {
			c.Company = r.ExpandTo
			changed = true
		}
		if r.Tag != "" && !hasTag(c.Tags, r.Tag) {
			c.Tags = append(c.Tags, r.Tag)
			changed = true
		}
	}
	return changed
}

// Standardize applies the normalizer's company rules to c.
func (n *Normalizer) Standardize(c *models.Contact) bool {
	return Standardize(c, n.rules)
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
