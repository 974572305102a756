package db

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenDatabase(MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "manifest.db")

	db, err := OpenDatabase(dbPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(dbPath)
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('documents','merge_log','sync_state')").Scan(&count))
	assert.Equal(t, 3, count)

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestOpenDatabaseInvalidPath(t *testing.T) {
	_, err := OpenDatabase("/proc/nonexistent/path/test.db")
	assert.Error(t, err)
}

func TestDocumentManifest(t *testing.T) {
	ctx := context.Background()
	m := Manifest{DB: setupTestDB(t)}

	key, err := m.KeyFor(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "", key)

	require.NoError(t, m.Record(ctx, "c1", "Cards/Jane.md", "Jane"))
	require.NoError(t, m.Record(ctx, "c2", "Cards/Jane.md", "Jane"))

	owners, err := m.Owners(ctx, "Cards/Jane.md")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c1", "c2"}, owners)

	require.NoError(t, m.Record(ctx, "c1", "Cards/Janet.md", "Janet"))
	key, err = m.KeyFor(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Cards/Janet.md", key)

	require.NoError(t, m.Forget(ctx, "c2"))
	owners, err = m.Owners(ctx, "Cards/Jane.md")
	require.NoError(t, err)
	assert.Empty(t, owners)
}

func TestPruneDocuments(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	m := Manifest{DB: db}

	require.NoError(t, m.Record(ctx, "keep", "Cards/A.md", "A"))
	require.NoError(t, m.Record(ctx, "gone", "Cards/B.md", "B"))

	n, err := m.Prune(ctx, map[string]bool{"keep": true})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	doc, err := GetDocument(ctx, db, "gone")
	require.NoError(t, err)
	assert.Nil(t, doc)

	doc, err = GetDocument(ctx, db, "keep")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "A", doc.Name)
}

func TestMergeLog(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	require.NoError(t, LogMerge(ctx, db, MergeLogEntry{SurvivorID: "s1", Source: MergeSourceSave, Rule: "email", Confidence: "exact", JobStatus: "history"}))
	require.NoError(t, LogMerge(ctx, db, MergeLogEntry{SurvivorID: "s1", AbsorbedID: "o1", Source: MergeSourceBatch}))
	require.NoError(t, LogMerge(ctx, db, MergeLogEntry{SurvivorID: "s2", Source: MergeSourceSave}))

	entries, err := ListMerges(ctx, db, "s1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "o1", entries[0].AbsorbedID)
	assert.Equal(t, "email", entries[1].Rule)
	assert.Equal(t, "history", entries[1].JobStatus)

	all, err := ListMerges(ctx, db, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestImportLog(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	seen, err := CheckImportLogged(ctx, db, "google_contacts", "people/1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, LogImport(ctx, db, "google_contacts", "people/1", "c1"))
	require.NoError(t, LogImport(ctx, db, "google_contacts", "people/1", "c2"))

	seen, err = CheckImportLogged(ctx, db, "google_contacts", "people/1")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = CheckImportLogged(ctx, db, "other", "people/1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestSyncStateTracking(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	state, err := GetSyncState(ctx, db, JobDedupe)
	require.NoError(t, err)
	assert.Nil(t, state)

	tracker := &Tracker{DB: db}
	require.NoError(t, tracker.Run(ctx, JobDedupe, func() (string, error) {
		running, err := GetSyncState(ctx, db, JobDedupe)
		require.NoError(t, err)
		assert.Equal(t, StatusRunning, running.Status)
		return "merged 2 groups", nil
	}))

	state, err = GetSyncState(ctx, db, JobDedupe)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, StatusIdle, state.Status)
	assert.Equal(t, "merged 2 groups", state.Detail)
	assert.NotNil(t, state.LastRunTime)
	assert.Nil(t, state.ErrorMessage)

	boom := errors.New("boom")
	err = tracker.Run(ctx, JobSweep, func() (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)

	states, err := GetAllSyncStates(ctx, db)
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, JobDedupe, states[0].Job)
	assert.Equal(t, StatusFailed, states[1].Status)
	require.NotNil(t, states[1].ErrorMessage)
	assert.Equal(t, "boom", *states[1].ErrorMessage)
}

func TestNilTrackerRunsFn(t *testing.T) {
	var tracker *Tracker
	called := false
	require.NoError(t, tracker.Run(context.Background(), JobVerify, func() (string, error) {
		called = true
		return "", nil
	}))
	assert.True(t, called)
}
