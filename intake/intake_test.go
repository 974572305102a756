package intake

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/harperreed/cardsync/blob"
	"github.com/harperreed/cardsync/match"
	"github.com/harperreed/cardsync/merge"
	"github.com/harperreed/cardsync/models"
	"github.com/harperreed/cardsync/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n0000")

func TestCandidateContactMergesTitles(t *testing.T) {
	tests := []struct {
		title, zh, want string
	}{
		{"CTO", "首席技术官", "CTO (首席技术官)"},
		{"CTO", "CTO", "CTO"},
		{"", "经理", "经理"},
		{"Designer", "", "Designer"},
	}
	for _, tt := range tests {
		c := Candidate{Name: " Jane ", Title: tt.title, TitleZh: tt.zh, Tags: []string{"AI", " "}}.Contact()
		assert.Equal(t, tt.want, c.Title)
		assert.Equal(t, "Jane", c.Name)
		assert.Equal(t, []string{"AI"}, c.Tags)
	}
}

func TestHTTPExtractor(t *testing.T) {
	var gotAuth, gotImage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var body extractRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotImage = body.Image
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"Jane Doe","title":"CTO","title_zh":"首席技术官","company":"Acme","email":"jane@acme.com","website":"acme.com","tags":["AI"],"aiSummary":"builds things"}`))
	}))
	defer srv.Close()

	ex := NewHTTPExtractor(srv.URL, "secret", 5*time.Second, nil)
	cand, err := ex.Extract(context.Background(), pngHeader, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.True(t, strings.HasPrefix(gotImage, "data:image/png;base64,"))
	assert.Equal(t, "Jane Doe", cand.Name)
	assert.Equal(t, "首席技术官", cand.TitleZh)

	c := cand.Contact()
	assert.Equal(t, "CTO (首席技术官)", c.Title)
	assert.Equal(t, "acme.com", c.SocialProfiles.Website)
	assert.Equal(t, "builds things", c.AISummary)
}

func TestHTTPExtractorReportsServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"No image provided"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPExtractor(srv.URL, "", time.Second, nil).Extract(context.Background(), pngHeader, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No image provided")
}

type fixture struct {
	bucket *blob.DirBucket
	store  *store.Store
	intake *Intake
}

func newFixture(t *testing.T, seed []models.Contact, cand Candidate) *fixture {
	t.Helper()
	ctx := context.Background()
	bucket, err := blob.NewDir(t.TempDir())
	require.NoError(t, err)
	backend := store.NewSnapshotBackend(bucket, "")
	require.NoError(t, backend.ReplaceAll(ctx, seed))
	st := store.New(backend, store.Options{CacheTTL: -1})

	ex := ExtractorFunc(func(context.Context, []byte, string) (*Candidate, error) {
		c := cand
		return &c, nil
	})
	in := New(st, bucket, ex, nil)
	in.Now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return &fixture{bucket: bucket, store: st, intake: in}
}

func TestScanCreatesContactAndStoresImage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, Candidate{Name: "Jane", Company: "Acme", Tags: []string{"ai"}})

	res, err := f.intake.Scan(ctx, Card{Image: pngHeader, MetAt: "Expo 2024", Tags: []string{"AI", "Museum"}})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.True(t, strings.HasPrefix(res.ImageKey, "Images/01"))
	assert.True(t, strings.HasSuffix(res.ImageKey, ".png"))

	img, err := f.bucket.Get(ctx, res.ImageKey)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, img)

	assert.Equal(t, res.ImageKey, res.Contact.ImageURL)
	assert.Equal(t, "Expo 2024", res.Contact.MetAt)
	assert.Equal(t, []string{"AI", "Museum"}, res.Contact.Tags)
}

func TestScanCompanyOnlyCard(t *testing.T) {
	f := newFixture(t, nil, Candidate{Company: "Acme Museum"})
	res, err := f.intake.Scan(context.Background(), Card{Image: pngHeader, Filename: "card.JPG"})
	require.NoError(t, err)
	assert.Equal(t, "Acme Museum", res.Contact.Name)
	assert.Contains(t, res.Contact.Tags, models.CompanyCardTag)
	assert.True(t, strings.HasSuffix(res.ImageKey, ".jpg"))
}

func TestScanRejectsBlankCard(t *testing.T) {
	f := newFixture(t, nil, Candidate{})
	_, err := f.intake.Scan(context.Background(), Card{Image: pngHeader})
	assert.ErrorIs(t, err, store.ErrInvalidContact)
}

func TestScanMergesConfirmedDuplicate(t *testing.T) {
	ctx := context.Background()
	seed := []models.Contact{{ID: "a", Name: "Jane", Email: "jane@acme.com", Title: "Engineer", Company: "Acme", Revision: 1}}
	f := newFixture(t, seed, Candidate{Name: "Jane", Email: "JANE@acme.com", Title: "CTO", Company: "Acme"})

	var asked *match.Match
	f.intake.Decide = func(_ context.Context, _ models.Contact, m *match.Match) (Decision, error) {
		asked = m
		return Decision{Merge: true, JobStatus: merge.JobHistory}, nil
	}

	res, err := f.intake.Scan(ctx, Card{Image: pngHeader})
	require.NoError(t, err)
	require.NotNil(t, asked)
	assert.Equal(t, "a", asked.Contact.ID)
	assert.False(t, res.Created)
	assert.Equal(t, "a", res.Contact.ID)
	assert.Equal(t, "CTO", res.Contact.Title)
	require.Len(t, res.Contact.History, 1)
	assert.Equal(t, "Engineer", res.Contact.History[0].Title)
	assert.Equal(t, int64(2), res.Contact.Revision)
}

func TestScanDeclinedDuplicateCreatesNew(t *testing.T) {
	ctx := context.Background()
	seed := []models.Contact{{ID: "a", Name: "Jane", Email: "jane@acme.com", Revision: 1}}
	f := newFixture(t, seed, Candidate{Name: "Jane", Email: "jane@acme.com"})
	f.intake.Decide = func(context.Context, models.Contact, *match.Match) (Decision, error) {
		return Decision{}, nil
	}

	res, err := f.intake.Scan(ctx, Card{Image: pngHeader})
	require.NoError(t, err)
	assert.True(t, res.Created)

	all, err := f.store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
