// ABOUTME: Terminal dashboard statistics and rendering
// ABOUTME: Summarizes the contact set: verification, email health, tags and stale records
package viz

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/harperreed/cardsync/models"
)

// StaleAfter is how long a record can go untouched before it needs attention.
const StaleAfter = 180 * 24 * time.Hour

type DashboardStats struct {
	TotalContacts int
	CompanyCards  int
	WithEmail     int

	ByVerification map[models.VerificationStatus]int
	ByEmail        map[models.EmailValidity]int
	TopTags        []TagCount

	// Added in the last 7 days
	RecentlyAdded []string

	// Needs attention
	StaleContacts   []StaleContact
	InvalidEmails   []string
	NeverVerified   int
	JobChangesKnown int
}

type TagCount struct {
	Tag   string
	Count int
}

type StaleContact struct {
	Name      string
	DaysSince int
}

// GenerateDashboardStats summarizes contacts as of now.
func GenerateDashboardStats(contacts []models.Contact, now time.Time) *DashboardStats {
	stats := &DashboardStats{
		TotalContacts:  len(contacts),
		ByVerification: make(map[models.VerificationStatus]int),
		ByEmail:        make(map[models.EmailValidity]int),
	}

	tagCounts := map[string]int{}
	for _, c := range contacts {
		c.ApplyDefaults()
		stats.ByVerification[c.VerificationStatus]++
		stats.ByEmail[c.EmailValid]++
		if strings.TrimSpace(c.Email) != "" {
			stats.WithEmail++
		}
		if c.EmailValid == models.EmailInvalid {
			stats.InvalidEmails = append(stats.InvalidEmails, c.Name)
		}
		if c.LastVerifiedAt == "" {
			stats.NeverVerified++
		}
		if len(c.History) > 0 {
			stats.JobChangesKnown++
		}
		for _, t := range c.Tags {
			if t == models.CompanyCardTag {
				stats.CompanyCards++
			}
			tagCounts[t]++
		}

		if !c.AddedAt.IsZero() && now.Sub(c.AddedAt) <= 7*24*time.Hour {
			stats.RecentlyAdded = append(stats.RecentlyAdded, c.Name)
		}
		touched := c.LastTouched()
		if touched.IsZero() {
			stats.StaleContacts = append(stats.StaleContacts, StaleContact{Name: c.Name, DaysSince: -1})
		} else if since := now.Sub(touched); since > StaleAfter {
			stats.StaleContacts = append(stats.StaleContacts, StaleContact{Name: c.Name, DaysSince: int(since.Hours() / 24)})
		}
	}

	for tag, n := range tagCounts {
		stats.TopTags = append(stats.TopTags, TagCount{Tag: tag, Count: n})
	}
	sort.Slice(stats.TopTags, func(i, j int) bool {
		if stats.TopTags[i].Count != stats.TopTags[j].Count {
			return stats.TopTags[i].Count > stats.TopTags[j].Count
		}
		return stats.TopTags[i].Tag < stats.TopTags[j].Tag
	})
	if len(stats.TopTags) > 8 {
		stats.TopTags = stats.TopTags[:8]
	}
	return stats
}

func RenderDashboard(stats *DashboardStats) string {
	var out strings.Builder

	out.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	out.WriteString("  CARDSYNC DASHBOARD\n")
	out.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	out.WriteString("STATS\n")
	out.WriteString(fmt.Sprintf("  📇 %d contacts  📧 %d with email  🏢 %d company cards  🔁 %d with job history\n\n",
		stats.TotalContacts, stats.WithEmail, stats.CompanyCards, stats.JobChangesKnown))

	out.WriteString("VERIFICATION\n")
	renderBars(&out, []string{
		string(models.VerificationFresh),
		string(models.VerificationStale),
		string(models.VerificationMismatch),
		string(models.VerificationUnknown),
	}, func(k string) int { return stats.ByVerification[models.VerificationStatus(k)] })
	out.WriteString("\n")

	out.WriteString("EMAIL\n")
	renderBars(&out, []string{
		string(models.EmailValid),
		string(models.EmailInvalid),
		string(models.EmailNone),
		string(models.EmailUnknown),
	}, func(k string) int { return stats.ByEmail[models.EmailValidity(k)] })
	out.WriteString("\n")

	if len(stats.TopTags) > 0 {
		out.WriteString("TOP TAGS\n")
		for _, tc := range stats.TopTags {
			out.WriteString(fmt.Sprintf("  %-20s %3d\n", tc.Tag, tc.Count))
		}
		out.WriteString("\n")
	}

	if len(stats.RecentlyAdded) > 0 {
		out.WriteString(fmt.Sprintf("RECENT\n  ✨ %d added this week\n\n", len(stats.RecentlyAdded)))
	}

	if len(stats.StaleContacts) > 0 || len(stats.InvalidEmails) > 0 || stats.NeverVerified > 0 {
		out.WriteString("NEEDS ATTENTION\n")
		if len(stats.StaleContacts) > 0 {
			out.WriteString(fmt.Sprintf("  ⚠️  %d contacts - untouched in %d+ days\n", len(stats.StaleContacts), int(StaleAfter.Hours()/24)))
		}
		if len(stats.InvalidEmails) > 0 {
			out.WriteString(fmt.Sprintf("  ⚠️  %d contacts - email domain has no mail server\n", len(stats.InvalidEmails)))
		}
		if stats.NeverVerified > 0 {
			out.WriteString(fmt.Sprintf("  ⚠️  %d contacts - never verified\n", stats.NeverVerified))
		}
	}

	return out.String()
}

func renderBars(out *strings.Builder, keys []string, count func(string) int) {
	maxCount := 0
	for _, k := range keys {
		if n := count(k); n > maxCount {
			maxCount = n
		}
	}
	if maxCount == 0 {
		maxCount = 1
	}
	for _, k := range keys {
		n := count(k)
		if n == 0 {
			continue
		}
		barLength := (n * 10) / maxCount
		bar := strings.Repeat("█", barLength) + strings.Repeat("░", 10-barLength)
		out.WriteString(fmt.Sprintf("  %-10s %s  %3d\n", k, bar, n))
	}
}
