package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/harperreed/cardsync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteMailchimp(t *testing.T) {
	var buf bytes.Buffer
	sum, err := WriteMailchimp(&buf, []models.Contact{
		{Name: " Jane Doe ", Email: " jane@acme.com ", Company: "Acme, Inc.", Title: "CTO", Tags: []string{"AI", "Design"}, Phone: "+1 555"},
		{Name: "No Mail"},
		{Name: `Sam "The Man"`, Email: "sam@x.org"},
	})
	require.NoError(t, err)
	assert.Equal(t, Summary{Exported: 2, Skipped: 1}, sum)

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "\ufeff"))
	lines := strings.Split(strings.TrimSuffix(strings.TrimPrefix(out, "\ufeff"), "\n"), "\n")
	assert.Equal(t, []string{
		"Email Address,Full Name,Company,Title,Tags,Phone Number",
		`jane@acme.com,Jane Doe,"Acme, Inc.",CTO,"AI,Design",+1 555`,
		`sam@x.org,"Sam ""The Man""",,,,`,
	}, lines)
}

func TestWorkbookRoundTrip(t *testing.T) {
	added := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	in := []models.Contact{
		{
			ID: "1", Name: "Jane", Title: "CTO", Company: "Acme", Email: "jane@acme.com",
			Tags: []string{"AI", "Design"}, AddedAt: added, UpdatedAt: added,
			ImportanceScore: 70, VerificationStatus: models.VerificationFresh, EmailValid: models.EmailValid,
			History: []models.HistoryEntry{{Title: "Eng", Company: "Initech", Date: "2020-01-01"}},
			Revision: 3,
		},
		{ID: "2", Name: "Sam"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, in))

	got, err := ReadWorkbook(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Jane", got[0].Name)
	assert.Equal(t, []string{"AI", "Design"}, got[0].Tags)
	assert.Equal(t, added, got[0].AddedAt)
	assert.Equal(t, 70, got[0].ImportanceScore)
	assert.Equal(t, in[0].History, got[0].History)
	assert.Equal(t, int64(3), got[0].Revision)
	assert.Equal(t, "Sam", got[1].Name)
}

func TestReadWorkbookRejectsGarbage(t *testing.T) {
	_, err := ReadWorkbook(strings.NewReader("not a zip"))
	assert.Error(t, err)
}
