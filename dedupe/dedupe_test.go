// ABOUTME: Tests for the batch deduplication pass
// ABOUTME: Uses a snapshot store and document syncer sharing one embedded bucket
package dedupe

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/harperreed/cardsync/artifact"
	"github.com/harperreed/cardsync/blob"
	"github.com/harperreed/cardsync/db"
	"github.com/harperreed/cardsync/models"
	"github.com/harperreed/cardsync/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type env struct {
	bucket *blob.BadgerBucket
	store  *store.Store
	docs   *artifact.Syncer
	dedupe *Deduplicator
	conn   *db.Manifest
}

func newEnv(t *testing.T, seed []models.Contact) *env {
	t.Helper()
	return newEnvWith(t, seed, nil, nil)
}

// newEnvWith lets a test wrap the backend and observe document logs.
func newEnvWith(t *testing.T, seed []models.Contact, wrap func(store.Backend, *artifact.Syncer) store.Backend, logger *zap.Logger) *env {
	t.Helper()
	ctx := context.Background()

	bucket, err := blob.OpenBadger(filepath.Join(t.TempDir(), "bucket"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = bucket.Close() })
	conn, err := db.OpenDatabase(db.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	snapshot := store.NewSnapshotBackend(bucket, "")
	require.NoError(t, snapshot.ReplaceAll(ctx, seed))

	docs := artifact.NewSyncer(bucket, "", db.Manifest{DB: conn}, logger)
	docs.RegenerateAll(ctx, seed)

	var backend store.Backend = snapshot
	if wrap != nil {
		backend = wrap(snapshot, docs)
	}
	st := store.New(backend, store.Options{Artifacts: docs})
	d := New(st, docs, nil)
	d.MergeLog = conn
	d.Tracker = &db.Tracker{DB: conn}
	return &env{bucket: bucket, store: st, docs: docs, dedupe: d, conn: &db.Manifest{DB: conn}}
}

func (e *env) keys(t *testing.T) []string {
	t.Helper()
	keys, err := e.bucket.List(context.Background(), artifact.DefaultPrefix)
	require.NoError(t, err)
	return keys
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestRunMergesEmailGroup(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, []models.Contact{
		{ID: "a", Name: "王小明", Email: "Jane@Co.com", Tags: []string{"AI"}, UpdatedAt: day(20), Revision: 1},
		{ID: "b", Name: "Xiaoming Wang", Email: "jane@co.com", Tags: []string{"Museum"}, Notes: "met at expo", UpdatedAt: day(2), Revision: 1},
		{ID: "c", Name: "Solo", Revision: 1},
	})
	require.NoError(t, e.bucket.Put(ctx, "Cards/Ghost.md", []byte("stale"), ""))

	report, err := e.dedupe.Run(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, 2, report.Kept)
	assert.Equal(t, 1, report.Removed())
	require.Len(t, report.Groups, 1)
	assert.Equal(t, "email:jane@co.com", report.Groups[0].Key)

	contacts, err := e.store.List(ctx)
	require.NoError(t, err)
	require.Len(t, contacts, 2)

	survivor := contacts[0]
	assert.Equal(t, "a", survivor.ID)
	assert.Equal(t, "Xiaoming Wang", survivor.Name)
	assert.Equal(t, []string{"AI", "Museum"}, survivor.Tags)
	assert.Equal(t, "met at expo", survivor.Notes)
	assert.Equal(t, day(20), survivor.UpdatedAt)
	assert.Equal(t, int64(2), survivor.Revision)

	// the superseded record's document is the survivor's new one, so it stays
	assert.Empty(t, report.DocumentsDeleted)
	assert.Equal(t, []string{"Cards/Solo.md", "Cards/Xiaoming Wang.md"}, e.keys(t))
	assert.Equal(t, []string{"Cards/Ghost.md"}, report.Sweep.Orphans)

	merges, err := db.ListMerges(ctx, e.conn.DB, "a", 10)
	require.NoError(t, err)
	require.Len(t, merges, 1)
	assert.Equal(t, "b", merges[0].AbsorbedID)
	assert.Equal(t, "email_key", merges[0].Rule)

	state, err := db.GetSyncState(ctx, e.conn.DB, db.JobDedupe)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, db.StatusIdle, state.Status)
}

func TestRunDeletesSupersededDocumentWithDifferentName(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, []models.Contact{
		{ID: "old", Name: "J Doe", Company: "Acme", UpdatedAt: day(1), Revision: 1},
		{ID: "new", Name: "Jane Doe", Email: "", Company: "Acme", UpdatedAt: day(5), Revision: 1},
		{ID: "dup", Name: "jane doe ", Company: "ACME", AddedAt: day(3), Revision: 1},
	})

	report, err := e.dedupe.Run(ctx, Options{})
	require.NoError(t, err)
	require.Len(t, report.Groups, 1)
	assert.Equal(t, "nc:jane doe|acme", report.Groups[0].Key)
	assert.Equal(t, "new", report.Groups[0].Survivor.ID)
	assert.Equal(t, []string{"dup"}, report.DocumentsDeleted)
	assert.Equal(t, []string{"Cards/J Doe.md", "Cards/Jane Doe.md"}, e.keys(t))
}

// lateWriter adds a contact, the way a concurrent Save would, on the second
// Load: the one ReplaceAll makes after the pass took its snapshot.
type lateWriter struct {
	store.Backend
	docs  *artifact.Syncer
	loads int
	late  models.Contact
}

func (w *lateWriter) Load(ctx context.Context) ([]models.Contact, error) {
	w.loads++
	if w.loads == 2 {
		if err := w.Backend.Insert(ctx, w.late); err != nil {
			return nil, err
		}
		w.docs.Written(ctx, "", w.late)
	}
	return w.Backend.Load(ctx)
}

func TestRunKeepsDocumentOfContactCreatedDuringRun(t *testing.T) {
	ctx := context.Background()
	late := models.Contact{ID: "late", Name: "Late Comer", Revision: 1}
	e := newEnvWith(t, []models.Contact{
		{ID: "a", Name: "Ann", Email: "ann@co.com", UpdatedAt: day(2), Revision: 1},
		{ID: "b", Name: "Ann", Email: "ANN@co.com", UpdatedAt: day(1), Revision: 1},
	}, func(b store.Backend, docs *artifact.Syncer) store.Backend {
		return &lateWriter{Backend: b, docs: docs, late: late}
	}, nil)

	report, err := e.dedupe.Run(ctx, Options{})
	require.NoError(t, err)

	contacts, err := e.store.List(ctx)
	require.NoError(t, err)
	ids := []string{}
	for _, c := range contacts {
		ids = append(ids, c.ID)
	}
	assert.ElementsMatch(t, []string{"a", "late"}, ids)
	assert.Empty(t, report.Sweep.Orphans)
	assert.Equal(t, []string{"Cards/Ann.md", "Cards/Late Comer.md"}, e.keys(t))
}

func TestRunSurvivorTakingSupersededNameIsNotACollision(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	e := newEnvWith(t, []models.Contact{
		{ID: "a", Name: "王小明", Email: "wang@co.com", UpdatedAt: day(20), Revision: 1},
		{ID: "b", Name: "Xiaoming Wang", Email: "wang@co.com", UpdatedAt: day(2), Revision: 1},
	}, nil, zap.New(core))

	_, err := e.dedupe.Run(ctx, Options{})
	require.NoError(t, err)
	assert.Zero(t, logs.FilterMessageSnippet("NameCollision").Len())

	owners, err := e.conn.Owners(ctx, "Cards/Xiaoming Wang.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, owners)
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, []models.Contact{
		{ID: "a", Name: "Jane", Email: "jane@co.com", UpdatedAt: day(2), Revision: 1},
		{ID: "b", Name: "Jane", Email: "JANE@co.com", UpdatedAt: day(1), Revision: 1},
	})

	_, err := e.dedupe.Run(ctx, Options{})
	require.NoError(t, err)
	first, err := e.store.List(ctx)
	require.NoError(t, err)

	report, err := e.dedupe.Run(ctx, Options{})
	require.NoError(t, err)
	assert.Empty(t, report.Groups)
	assert.Equal(t, report.Scanned, report.Kept)
	assert.Empty(t, report.Sweep.Orphans)

	second, err := e.store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRunDryRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	seed := []models.Contact{
		{ID: "a", Name: "Jane", Email: "jane@co.com", UpdatedAt: day(2), Revision: 1},
		{ID: "b", Name: "Janet", Email: "jane@co.com", UpdatedAt: day(1), Revision: 1},
	}
	e := newEnv(t, seed)
	require.NoError(t, e.bucket.Put(ctx, "Cards/Ghost.md", []byte("stale"), ""))

	report, err := e.dedupe.Run(ctx, Options{DryRun: true})
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Len(t, report.Groups, 1)
	assert.Equal(t, []string{"Cards/Ghost.md"}, report.Sweep.Orphans)

	contacts, err := e.store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, contacts, 2)
	assert.Len(t, e.keys(t), 3)
}

func TestRunSkipsSweepOnEmptyStore(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil)
	require.NoError(t, e.bucket.Put(ctx, "Cards/Keep.md", []byte("x"), ""))

	report, err := e.dedupe.Run(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Scanned)
	assert.Equal(t, []string{"Cards/Keep.md"}, e.keys(t))
}

func TestSweepRemovesOrphans(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, []models.Contact{{ID: "a", Name: "Jane", Revision: 1}})
	require.NoError(t, e.bucket.Put(ctx, "Cards/Ghost.md", []byte("stale"), ""))

	report, err := e.dedupe.Sweep(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Cards/Ghost.md"}, report.Orphans)
	assert.Equal(t, 1, report.Deleted)
	assert.Equal(t, []string{"Cards/Jane.md"}, e.keys(t))

	state, err := db.GetSyncState(ctx, e.conn.DB, db.JobSweep)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, db.StatusIdle, state.Status)
}

func TestSweepRefusesEmptyStore(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil)
	require.NoError(t, e.bucket.Put(ctx, "Cards/Keep.md", []byte("x"), ""))

	_, err := e.dedupe.Sweep(ctx, Options{})
	assert.ErrorIs(t, err, ErrEmptyStore)
	assert.Equal(t, []string{"Cards/Keep.md"}, e.keys(t))

	state, err := db.GetSyncState(ctx, e.conn.DB, db.JobSweep)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, db.StatusFailed, state.Status)
}
