// ABOUTME: Tag vocabulary normalization
// ABOUTME: Maps raw tags to canonical names via a lookup table with a title-case fallback
package tags

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// DefaultMapping is the built-in source → canonical tag table.
var DefaultMapping = map[string]string{
	"Museum": "Museum", "博物館": "Museum",
	"美術館": "Art Museum",
	"Art Venue": "Art Venue", "Art Center": "Art Center", "藝術中心": "Art Center",
	"Festival": "Festival", "藝術節": "Festival",
	"Gallery": "Gallery", "畫廊": "Gallery",
	"C-LAB": "C-LAB", "C-lab": "C-LAB", "臺灣當代文化實驗場": "C-LAB",
	"IRCAM": "IRCAM", "Ircam": "IRCAM",
	"Taicc": "TAICCA", "TAICCA": "TAICCA", "文策院": "TAICCA", "文化內容策進院": "TAICCA",
	"北藝中心": "TPAC", "TPAC": "TPAC",
	"兩廳院": "NTCH", "NTCH": "NTCH",
	"衛武營": "Weiwuying", "歌劇院": "NTT",
	"CMHK": "Contemporary Musiking Hong Kong", "現在音樂": "Contemporary Musiking Hong Kong",
	"Curator": "Curator", "策展人": "Curator", "策展": "Curator",
	"Director": "Director", "總監": "Director",
	"Admin": "Administration", "Administrator": "Administration", "行政": "Administration",
	"Producer": "Producer", "製作人": "Producer",
	"Artist": "Artist", "藝術家": "Artist",
	"教育": "Education", "Higher Education": "Education",
	"大學": "University", "University": "University",
	"Academic": "Academia", "科技": "Tech", "Technology": "Tech",
	"AI": "AI", "Artificial Intelligence": "AI",
	"藝術": "Art", "Arts": "Art", "音樂": "Music", "Music": "Music",
	"Sound Art": "Sound Art", "聲音藝術": "Sound Art",
	"New Media": "New Media", "新媒體": "New Media",
	"Government": "Government", "公部門": "Government",
	"CEO": "Executive", "Founder": "Founder",
	"Manager": "Management", "管理": "Management", "行銷": "Marketing",
}

// DefaultAcronyms are kept fully upper-case by the title-case fallback.
var DefaultAcronyms = []string{"AI", "VR", "XR", "CEO", "CTO", "CFO", "MBA", "PHD", "USA", "UK", "EU"}

var wordPattern = regexp.MustCompile(`\w\S*`)

// Normalizer maps raw tags onto a canonical vocabulary.
type Normalizer struct {
	mapping  map[string]string
	acronyms map[string]bool
	rules    []CompanyRule
}

// TableFile is the YAML shape accepted by LoadTable.
type TableFile struct {
	Mapping   map[string]string `yaml:"mapping"`
	Acronyms  []string          `yaml:"acronyms"`
	Companies []CompanyRule     `yaml:"companies"`
}

// NewNormalizer builds a normalizer over the default table plus any extra
// entries, which override defaults on conflict.
func NewNormalizer(extra map[string]string) *Normalizer {
	n := &Normalizer{
		mapping:  make(map[string]string, len(DefaultMapping)+len(extra)),
		acronyms: make(map[string]bool, len(DefaultAcronyms)),
		rules:    append([]CompanyRule(nil), DefaultCompanyRules...),
	}
	for k, v := range DefaultMapping {
		n.mapping[k] = v
	}
	for k, v := range extra {
		n.mapping[k] = v
	}
	for _, a := range DefaultAcronyms {
		n.acronyms[a] = true
	}
	return n
}

// LoadTable builds a normalizer from a YAML table file layered on the defaults.
// An empty path yields the defaults.
func LoadTable(path string) (*Normalizer, error) {
	if path == "" {
		return NewNormalizer(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tag table: %w", err)
	}
	var file TableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse tag table: %w", err)
	}
	n := NewNormalizer(file.Mapping)
	for _, a := range file.Acronyms {
		n.acronyms[strings.ToUpper(strings.TrimSpace(a))] = true
	}
	n.rules = append(n.rules, file.Companies...)
	return n, nil
}

// Canonical returns the table target for tag, or the trimmed tag itself.
func (n *Normalizer) Canonical(tag string) string {
	tag = strings.TrimSpace(tag)
	if target, ok := n.mapping[tag]; ok {
		return target
	}
	return tag
}

// Normalize returns the table target for tag, or its title-cased form.
func (n *Normalizer) Normalize(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}
	if target, ok := n.mapping[tag]; ok {
		return target
	}
	return n.titleCase(tag)
}

// NormalizeAll normalizes every tag, dropping empties and repeats.
func (n *Normalizer) NormalizeAll(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		canon := n.Normalize(t)
		if canon == "" || seen[canon] {
			continue
		}
		seen[canon] = true
		out = append(out, canon)
	}
	return out
}

// Union merges tag sets without dropping anything. Tags are compared by the
// fold key of their canonical form, but the first spelling seen is kept as
// written; rewriting to the table target is NormalizeAll's job.
func (n *Normalizer) Union(sets ...[]string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, set := range sets {
		for _, t := range set {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			key := n.Key(n.Canonical(t))
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, t)
		}
	}
	return out
}

// Key is the comparison key for a tag: NFC, trimmed, lower-cased.
func (n *Normalizer) Key(tag string) string {
	return cases.Lower(language.Und).String(norm.NFC.String(strings.TrimSpace(tag)))
}

// Changed reports whether after differs from before as a set.
func Changed(before, after []string) bool {
	if len(before) != len(after) {
		return true
	}
	have := make(map[string]bool, len(before))
	for _, t := range before {
		have[t] = true
	}
	for _, t := range after {
		if !have[t] {
			return true
		}
	}
	return false
}

func (n *Normalizer) titleCase(tag string) string {
	if n.acronyms[strings.ToUpper(tag)] {
		return strings.ToUpper(tag)
	}
	lower := cases.Lower(language.Und)
	return wordPattern.ReplaceAllStringFunc(tag, func(word string) string {
		// \w only matches ASCII, so the first byte is a whole rune.
		return strings.ToUpper(word[:1]) + lower.String(word[1:])
	})
}
