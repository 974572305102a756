// ABOUTME: Tests for the web UI routes
// ABOUTME: Exercises login gating, contact forms, duplicate checks, card uploads and image serving
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/cardsync/blob"
	"github.com/harperreed/cardsync/intake"
	"github.com/harperreed/cardsync/models"
	"github.com/harperreed/cardsync/store"
)

const testPassword = "hunter2"

type fixture struct {
	server *Server
	store  *store.Store
	bucket blob.Bucket
	auth   *Auth
}

func seedContacts() []models.Contact {
	return []models.Contact{
		{ID: "c1", Name: "Jane Doe", Title: "CTO", Company: "Acme", Email: "jane@acme.com", Tags: []string{"AI", "Museum"}, Revision: 1},
		{ID: "c2", Name: "Sam Lee", Title: "Curator", Company: "Gallery X", Email: "sam@galleryx.org", Tags: []string{"Curator"}, Revision: 1},
	}
}

func setup(t *testing.T, extractor intake.Extractor) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	bucket, err := blob.NewDir(t.TempDir())
	require.NoError(t, err)
	backend := store.NewSnapshotBackend(bucket, "")
	require.NoError(t, backend.ReplaceAll(context.Background(), seedContacts()))
	st := store.New(backend, store.Options{CacheTTL: -1})

	auth, err := NewAuth(testPassword, "test-secret", time.Hour, false)
	require.NoError(t, err)

	var in *intake.Intake
	if extractor != nil {
		in = intake.New(st, bucket, extractor, nil)
	}

	srv, err := NewServer(Options{Store: st, Images: bucket, Intake: in, Auth: auth})
	require.NoError(t, err)
	return &fixture{server: srv, store: st, bucket: bucket, auth: auth}
}

func (f *fixture) do(t *testing.T, req *http.Request, signedIn bool) *httptest.ResponseRecorder {
	t.Helper()
	if signedIn {
		token, err := f.auth.Issue()
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func postForm(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func postJSON(path string, body interface{}) *http.Request {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestNewAuthRequiresPassword(t *testing.T) {
	_, err := NewAuth("", "secret", time.Hour, false)
	assert.Error(t, err)
}

func TestSignedOutVisitorsAreRedirected(t *testing.T) {
	f := setup(t, nil)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/", nil), false)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = f.do(t, postJSON("/api/duplicates", map[string]string{"name": "x"}), false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/login", nil), false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="password"`)
}

func TestLoginIssuesSessionCookie(t *testing.T) {
	f := setup(t, nil)

	rec := f.do(t, postJSON("/api/login", map[string]string{"password": "wrong"}), false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Incorrect password")

	rec = f.do(t, postJSON("/api/login", map[string]string{"password": testPassword}), false)
	require.Equal(t, http.StatusOK, rec.Code)

	var session *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			session = c
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)
	assert.NoError(t, f.auth.Verify(session.Value))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(session)
	rec = f.do(t, req, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Jane Doe")
}

func TestFormLoginRedirectsHome(t *testing.T) {
	f := setup(t, nil)

	rec := f.do(t, postForm("/api/login", url.Values{"password": {testPassword}}), false)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	rec = f.do(t, postForm("/api/login", url.Values{"password": {"nope"}}), false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Incorrect password")
}

func TestSignedInVisitorSkipsLoginPage(t *testing.T) {
	f := setup(t, nil)
	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/login", nil), true)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestVerifyRejectsExpiredAndForeignTokens(t *testing.T) {
	auth, err := NewAuth(testPassword, "secret-a", time.Hour, false)
	require.NoError(t, err)

	auth.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := auth.Issue()
	require.NoError(t, err)
	assert.Error(t, auth.Verify(expired))

	other, err := NewAuth(testPassword, "secret-b", time.Hour, false)
	require.NoError(t, err)
	foreign, err := other.Issue()
	require.NoError(t, err)
	assert.Error(t, auth.Verify(foreign))

	assert.Error(t, auth.Verify("not-a-token"))
}

func TestContactGridFilters(t *testing.T) {
	f := setup(t, nil)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/?q=curator", nil), true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sam Lee")
	assert.NotContains(t, rec.Body.String(), "Jane Doe")

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/?tag=museum", nil), true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Jane Doe")
	assert.NotContains(t, rec.Body.String(), "Sam Lee")
	assert.Contains(t, rec.Body.String(), "Showing 1 of 2 contacts")
}

func TestAddContactCreatesAndMerges(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	rec := f.do(t, postForm("/contacts", url.Values{
		"name":    {"Ann Park"},
		"company": {"Beta"},
		"tags":    {"ai, Design"},
	}), true)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	all, err := f.store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)

	rec = f.do(t, postForm("/contacts", url.Values{
		"name":      {"Jane Doe"},
		"email":     {"jane@acme.com"},
		"title":     {"CEO"},
		"company":   {"Acme"},
		"jobStatus": {"history"},
	}), true)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	all, err = f.store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	jane, err := f.store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "CEO", jane.Title)
	require.Len(t, jane.History, 1)
	assert.Equal(t, "CTO", jane.History[0].Title)
}

func TestAddContactRejectsEmptyCard(t *testing.T) {
	f := setup(t, nil)
	rec := f.do(t, postForm("/contacts", url.Values{"notes": {"nothing else"}}), true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, postForm("/contacts", url.Values{"name": {"X"}, "jobStatus": {"sideways"}}), true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateContact(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	rec := f.do(t, postForm("/contacts/c2", url.Values{
		"revision": {"1"},
		"notes":    {"met at the biennale"},
		"tags":     {"Curator, Art"},
	}), true)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	sam, err := f.store.Get(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, "met at the biennale", sam.Notes)
	assert.Equal(t, "Sam Lee", sam.Name)
	assert.Equal(t, []string{"Curator", "Art"}, sam.Tags)

	rec = f.do(t, postForm("/contacts/c2", url.Values{"revision": {"1"}, "notes": {"stale"}}), true)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, postForm("/contacts/missing", url.Values{"notes": {"x"}}), true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, postForm("/contacts/c2", url.Values{"revision": {"abc"}}), true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContactDetailAndDelete(t *testing.T) {
	f := setup(t, nil)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/contacts/c1", nil), true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="jane@acme.com"`)

	rec = f.do(t, postForm("/contacts/c1/delete", nil), true)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/contacts/c1", nil), true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, postForm("/contacts/c1/delete", nil), true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckDuplicate(t *testing.T) {
	f := setup(t, nil)

	rec := f.do(t, postJSON("/api/duplicates", map[string]string{
		"name": "J. Doe", "email": "JANE@acme.com", "title": "CEO", "company": "Acme",
	}), true)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Duplicate   bool           `json:"duplicate"`
		Rule        string         `json:"rule"`
		RoleChanged bool           `json:"roleChanged"`
		Contact     models.Contact `json:"contact"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out.Duplicate)
	assert.Equal(t, "email", out.Rule)
	assert.True(t, out.RoleChanged)
	assert.Equal(t, "c1", out.Contact.ID)

	rec = f.do(t, postJSON("/api/duplicates", map[string]string{"name": "Nobody"}), true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"duplicate": false}`, rec.Body.String())
}

func TestImagesAreServedFromBucket(t *testing.T) {
	f := setup(t, nil)
	png := []byte("\x89PNG\r\n\x1a\nfake")
	require.NoError(t, f.bucket.Put(context.Background(), "Images/card.png", png, "image/png"))

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/images/card.png", nil), true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Cache-Control"), "immutable")
	assert.Equal(t, png, rec.Body.Bytes())

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/images/missing.jpg", nil), true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func multipartCard(t *testing.T, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", "card.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("\xff\xd8\xff\xe0 jpeg bytes"))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/parse-card", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestParseCard(t *testing.T) {
	f := setup(t, intake.ExtractorFunc(func(context.Context, []byte, string) (*intake.Candidate, error) {
		return &intake.Candidate{Name: "Mei Chen", Company: "TAICCA", Email: "mei@taicca.tw"}, nil
	}))

	rec := f.do(t, multipartCard(t, map[string]string{"metAt": "Taipei Expo", "tags": "Expo"}), true)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Created  bool           `json:"created"`
		ImageKey string         `json:"imageKey"`
		Contact  models.Contact `json:"contact"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out.Created)
	assert.True(t, strings.HasPrefix(out.ImageKey, intake.ImagePrefix))
	assert.Equal(t, "Mei Chen", out.Contact.Name)
	assert.Equal(t, "Taipei Expo", out.Contact.MetAt)

	stored, err := f.bucket.Get(context.Background(), out.ImageKey)
	require.NoError(t, err)
	assert.NotEmpty(t, stored)
}

func TestParseCardWithoutExtractor(t *testing.T) {
	f := setup(t, nil)
	rec := f.do(t, multipartCard(t, nil), true)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDashboard(t *testing.T) {
	f := setup(t, nil)
	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/dashboard", nil), true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Top tags")
	assert.Contains(t, rec.Body.String(), "Museum")
}

func TestImageSrc(t *testing.T) {
	assert.Equal(t, "/images/a.jpg", imageSrc("Images/a.jpg"))
	assert.Equal(t, "https://cdn.example.com/a.jpg", imageSrc("https://cdn.example.com/a.jpg"))
	assert.Equal(t, "JA", initials("jane"))
	assert.Equal(t, "陳美", initials("陳美玲"))
}
