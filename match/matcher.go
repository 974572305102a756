// ABOUTME: Duplicate detection for contact records
// ABOUTME: Finds the existing contact that most likely describes the same person
package match

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/harperreed/cardsync/models"
)

// Rule names the heuristic that produced a match.
type Rule string

const (
	RuleEmail        Rule = "email"
	RulePhone        Rule = "phone"
	RuleName         Rule = "name"
	RuleNameContains Rule = "name_contains"
	RuleCrossScript  Rule = "cross_script_role"
)

// Confidence separates identity-grade matches from guesses a human may want
// to confirm.
type Confidence string

const (
	Exact    Confidence = "exact"
	Probable Confidence = "probable"
)

// Match is an existing contact judged to be the same person as a candidate.
type Match struct {
	Contact    models.Contact
	Rule       Rule
	Confidence Confidence
}

// minPhoneDigits is the shortest digit string compared; shorter numbers are
// extensions or fragments.
const minPhoneDigits = 8

type ContactMatcher struct {
	contacts []models.Contact
}

// NewContactMatcher creates a matcher over existing contacts. Order matters:
// the first matching contact wins.
func NewContactMatcher(contacts []models.Contact) *ContactMatcher {
	return &ContactMatcher{contacts: contacts}
}

// AddContact makes a newly created contact visible to later lookups in the
// same session.
func (m *ContactMatcher) AddContact(c models.Contact) {
	m.contacts = append(m.contacts, c)
}

// FindMatch returns the first existing contact matched by any rule, or nil.
// A contact with the candidate's own id is never a match.
func (m *ContactMatcher) FindMatch(candidate models.Contact) *Match {
	for _, existing := range m.contacts {
		if candidate.ID != "" && existing.ID == candidate.ID {
			continue
		}
		if rule, conf, ok := Compare(candidate, existing); ok {
			return &Match{Contact: existing, Rule: rule, Confidence: conf}
		}
	}
	return nil
}

// Find is a one-shot FindMatch.
func Find(candidate models.Contact, existing []models.Contact) *Match {
	return NewContactMatcher(existing).FindMatch(candidate)
}

// Compare applies the rules in order to a single pair.
func Compare(a, b models.Contact) (Rule, Confidence, bool) {
	if ea, eb := NormalizeEmail(a.Email), NormalizeEmail(b.Email); ea != "" && ea == eb {
		return RuleEmail, Exact, true
	}

	if pa, pb := PhoneDigits(a.Phone), PhoneDigits(b.Phone); len(pa) >= minPhoneDigits && pa == pb {
		return RulePhone, Exact, true
	}

	na, nb := normalizeName(a.Name), normalizeName(b.Name)
	if na != "" && nb != "" {
		if na == nb {
			return RuleName, Exact, true
		}
		if utf8.RuneCountInString(na) > 1 && utf8.RuneCountInString(nb) > 1 &&
			(strings.Contains(na, nb) || strings.Contains(nb, na)) {
			return RuleNameContains, Probable, true
		}
	}

	if a.Company != "" && a.Company == b.Company && a.Title != "" && a.Title == b.Title {
		if HasHan(a.Name) != HasHan(b.Name) {
			return RuleCrossScript, Probable, true
		}
	}

	return "", "", false
}

// Key is the conservative grouping key used by the batch pass.
func Key(c models.Contact) string {
	email := NormalizeEmail(c.Email)
	if len(email) > 3 {
		return "email:" + email
	}
	return "nc:" + normalizeName(c.Name) + "|" + normalizeName(c.Company)
}

// NormalizeEmail converts email to lowercase for comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PhoneDigits strips everything but ASCII digits.
func PhoneDigits(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// HasHan reports whether s contains a CJK ideograph.
func HasHan(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// HasLatin reports whether s contains an ASCII letter.
func HasLatin(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
