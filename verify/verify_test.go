package verify

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harperreed/cardsync/artifact"
	"github.com/harperreed/cardsync/blob"
	"github.com/harperreed/cardsync/db"
	"github.com/harperreed/cardsync/models"
	"github.com/harperreed/cardsync/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	mx    map[string]bool
	calls atomic.Int32
}

func (r *fakeResolver) LookupMX(_ context.Context, name string) ([]*net.MX, error) {
	r.calls.Add(1)
	if r.mx[name] {
		return []*net.MX{{Host: "mx." + name, Pref: 10}}, nil
	}
	return nil, &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
}

func newVerifier(t *testing.T, seed []models.Contact) (*Verifier, *store.Store, *fakeResolver) {
	t.Helper()
	bucket, err := blob.NewDir(t.TempDir())
	require.NoError(t, err)
	backend := store.NewSnapshotBackend(bucket, "")
	require.NoError(t, backend.ReplaceAll(context.Background(), seed))
	st := store.New(backend, store.Options{})

	res := &fakeResolver{mx: map[string]bool{"acme.com": true}}
	v := New(st, nil, nil)
	v.Resolver = res
	v.Now = func() time.Time { return time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC) }
	return v, st, res
}

func TestRunStampsContacts(t *testing.T) {
	ctx := context.Background()
	v, st, res := newVerifier(t, []models.Contact{
		{ID: "1", Name: "A", Email: "a@acme.com", Revision: 1},
		{ID: "2", Name: "B", Email: "b@ACME.com", VerificationStatus: models.VerificationStale, Revision: 3},
		{ID: "3", Name: "C", Email: "c@nowhere.invalid", Revision: 1},
		{ID: "4", Name: "D", Revision: 1},
	})
	conn, err := db.OpenDatabase(db.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	v.Tracker = &db.Tracker{DB: conn}

	report, err := v.Run(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, Report{Checked: 4, Valid: 2, Invalid: 1, NoEmail: 1, Freshened: 3}, report)
	assert.Equal(t, int32(2), res.calls.Load(), "each domain resolved once")

	got, err := st.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, models.EmailValid, got[0].EmailValid)
	assert.Equal(t, models.EmailValid, got[1].EmailValid)
	assert.Equal(t, models.EmailInvalid, got[2].EmailValid)
	assert.Equal(t, models.EmailNone, got[3].EmailValid)
	assert.Equal(t, "2024-03-09", got[0].LastVerifiedAt)
	assert.Equal(t, models.VerificationFresh, got[0].VerificationStatus)
	assert.Equal(t, models.VerificationStale, got[1].VerificationStatus)
	assert.Equal(t, int64(4), got[1].Revision)

	state, err := db.GetSyncState(ctx, conn, db.JobVerify)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, db.StatusIdle, state.Status)
}

func TestRunDryRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	v, st, _ := newVerifier(t, []models.Contact{{ID: "1", Name: "A", Email: "a@acme.com", Revision: 1}})

	report, err := v.Run(ctx, Options{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Valid)

	got, err := st.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, got[0].LastVerifiedAt)
	assert.Equal(t, int64(1), got[0].Revision)
}

func TestRunEmptyStore(t *testing.T) {
	v, _, res := newVerifier(t, nil)
	report, err := v.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Checked)
	assert.Zero(t, res.calls.Load())
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	v, _, _ := newVerifier(t, []models.Contact{{ID: "1", Name: "A", Email: "a@acme.com"}})
	v.Resolver = resolverFunc(func(ctx context.Context, _ string) ([]*net.MX, error) {
		return nil, context.Canceled
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := v.Run(ctx, Options{})
	assert.Error(t, err)
}

type resolverFunc func(ctx context.Context, name string) ([]*net.MX, error)

func (f resolverFunc) LookupMX(ctx context.Context, name string) ([]*net.MX, error) {
	return f(ctx, name)
}

func TestDomainOf(t *testing.T) {
	assert.Equal(t, "acme.com", domainOf(" Jane@ACME.com "))
	assert.Equal(t, "", domainOf("not-an-email"))
	assert.Equal(t, "", domainOf(""))
}

func TestRunRegeneratesDocuments(t *testing.T) {
	ctx := context.Background()
	bucket, err := blob.NewDir(t.TempDir())
	require.NoError(t, err)
	backend := store.NewSnapshotBackend(bucket, "")
	require.NoError(t, backend.ReplaceAll(ctx, []models.Contact{
		{ID: "1", Name: "Ann", Email: "ann@acme.com", Revision: 1},
	}))
	docs := artifact.NewSyncer(bucket, "", nil, nil)
	st := store.New(backend, store.Options{Artifacts: docs})

	v := New(st, docs, nil)
	v.Resolver = &fakeResolver{mx: map[string]bool{"acme.com": true}}
	_, err = v.Run(ctx, Options{})
	require.NoError(t, err)

	data, err := bucket.Get(ctx, "Cards/Ann.md")
	require.NoError(t, err)
	doc, err := artifact.ParseDocument(data)
	require.NoError(t, err)
	assert.Equal(t, string(models.VerificationFresh), doc.Meta.VerificationStatus)
}
