// ABOUTME: Tests for document sync against a real embedded bucket
// ABOUTME: Covers rename cleanup, collisions, removal and orphan sweeps
package artifact

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/harperreed/cardsync/blob"
	"github.com/harperreed/cardsync/db"
	"github.com/harperreed/cardsync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestBucket(t *testing.T) *blob.BadgerBucket {
	t.Helper()
	b, err := blob.OpenBadger(filepath.Join(t.TempDir(), "bucket"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func newTestManifest(t *testing.T) db.Manifest {
	t.Helper()
	conn, err := db.OpenDatabase(db.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return db.Manifest{DB: conn}
}

func listKeys(t *testing.T, b blob.Bucket) []string {
	t.Helper()
	keys, err := b.List(context.Background(), DefaultPrefix)
	require.NoError(t, err)
	return keys
}

func TestWrittenRenameDeletesOldDocuments(t *testing.T) {
	ctx := context.Background()
	b := newTestBucket(t)
	s := NewSyncer(b, "", nil, nil)

	c := models.Contact{ID: "1", Name: "A/B"}
	s.Written(ctx, "", c)
	assert.Equal(t, []string{"Cards/A_B.md"}, listKeys(t, b))

	// a document left behind by the legacy naming rule
	require.NoError(t, b.Put(ctx, "Cards/a_b.md", []byte("old"), ""))

	c.Name = "C"
	s.Written(ctx, "A/B", c)
	assert.Equal(t, []string{"Cards/C.md"}, listKeys(t, b))

	data, err := b.Get(ctx, "Cards/C.md")
	require.NoError(t, err)
	assert.Contains(t, string(data), "# C\n")
}

func TestWrittenSameNameOverwrites(t *testing.T) {
	ctx := context.Background()
	b := newTestBucket(t)
	s := NewSyncer(b, "", nil, nil)

	c := models.Contact{ID: "1", Name: "Jane", Title: "CEO"}
	s.Written(ctx, "", c)
	c.Title = "CTO"
	s.Written(ctx, "Jane", c)

	assert.Equal(t, []string{"Cards/Jane.md"}, listKeys(t, b))
	data, err := b.Get(ctx, "Cards/Jane.md")
	require.NoError(t, err)
	assert.Contains(t, string(data), "**CTO** @ ")
}

func TestWrittenUsesManifestForOutOfBandRename(t *testing.T) {
	ctx := context.Background()
	b := newTestBucket(t)
	m := newTestManifest(t)
	s := NewSyncer(b, "", m, nil)

	s.Written(ctx, "", models.Contact{ID: "1", Name: "Old Name"})
	// caller lost track of the previous name
	s.Written(ctx, "", models.Contact{ID: "1", Name: "New Name"})

	assert.Equal(t, []string{"Cards/New Name.md"}, listKeys(t, b))
	key, err := m.KeyFor(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Cards/New Name.md", key)
}

func TestWrittenWarnsOnNameCollision(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	b := newTestBucket(t)
	s := NewSyncer(b, "", newTestManifest(t), zap.New(core))

	s.Written(ctx, "", models.Contact{ID: "1", Name: "Sam Lee"})
	s.Written(ctx, "", models.Contact{ID: "2", Name: "Sam Lee"})

	collisions := logs.FilterMessageSnippet("NameCollision").All()
	require.Len(t, collisions, 1)
	assert.Equal(t, "1", collisions[0].ContextMap()["owner_id"])
	assert.Equal(t, []string{"Cards/Sam Lee.md"}, listKeys(t, b))
}

func TestRenameKeepsDocumentOwnedByAnotherContact(t *testing.T) {
	ctx := context.Background()
	b := newTestBucket(t)
	s := NewSyncer(b, "", newTestManifest(t), nil)

	// contact 2's current file equals contact 1's legacy filename
	s.Written(ctx, "", models.Contact{ID: "2", Name: "jane_doe"})
	s.Written(ctx, "", models.Contact{ID: "1", Name: "Jane Doe"})
	s.Written(ctx, "Jane Doe", models.Contact{ID: "1", Name: "Janet Doe"})

	assert.Equal(t, []string{"Cards/Janet Doe.md", "Cards/jane_doe.md"}, listKeys(t, b))
}

func TestRemoved(t *testing.T) {
	ctx := context.Background()
	b := newTestBucket(t)
	m := newTestManifest(t)
	s := NewSyncer(b, "", m, nil)

	c := models.Contact{ID: "1", Name: "Jane Doe"}
	s.Written(ctx, "", c)
	require.NoError(t, b.Put(ctx, "Cards/jane_doe.md", []byte("legacy"), ""))

	s.Removed(ctx, c)
	assert.Empty(t, listKeys(t, b))

	key, err := m.KeyFor(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "", key)

	// removing again is harmless
	s.Removed(ctx, c)
}

func TestSweepOrphans(t *testing.T) {
	ctx := context.Background()
	b := newTestBucket(t)
	s := NewSyncer(b, "", nil, nil)

	for _, key := range []string{"Cards/X.md", "Cards/Y.md", "Cards/Z.md", "data/contacts.json"} {
		require.NoError(t, b.Put(ctx, key, []byte("x"), ""))
	}
	contacts := []models.Contact{{ID: "1", Name: "X"}, {ID: "2", Name: "Y"}}

	report, err := s.SweepOrphans(ctx, contacts, SweepOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Cards/Z.md"}, report.Orphans)
	assert.Equal(t, 0, report.Deleted)
	assert.Len(t, listKeys(t, b), 3)

	report, err = s.SweepOrphans(ctx, contacts, SweepOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Cards/Z.md"}, report.Orphans)
	assert.Equal(t, 1, report.Deleted)
	assert.Equal(t, 2, report.Valid)
	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, []string{"Cards/X.md", "Cards/Y.md"}, listKeys(t, b))

	_, err = b.Get(ctx, "data/contacts.json")
	assert.NoError(t, err, "keys outside the prefix are untouched")
}

func TestSweepOrphansPrunesManifest(t *testing.T) {
	ctx := context.Background()
	b := newTestBucket(t)
	m := newTestManifest(t)
	s := NewSyncer(b, "", m, nil)

	s.Written(ctx, "", models.Contact{ID: "1", Name: "Keep"})
	s.Written(ctx, "", models.Contact{ID: "2", Name: "Gone"})

	_, err := s.SweepOrphans(ctx, []models.Contact{{ID: "1", Name: "Keep"}}, SweepOptions{})
	require.NoError(t, err)

	key, err := m.KeyFor(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "", key)
}

type failingBucket struct {
	blob.Bucket
	listErr error
	putErr  error
}

func (f failingBucket) List(ctx context.Context, prefix string) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Bucket.List(ctx, prefix)
}

func (f failingBucket) Put(ctx context.Context, key string, data []byte, ct string) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.Bucket.Put(ctx, key, data, ct)
}

func TestSweepOrphansListFailure(t *testing.T) {
	s := NewSyncer(failingBucket{Bucket: newTestBucket(t), listErr: errors.New("offline")}, "", nil, nil)
	_, err := s.SweepOrphans(context.Background(), nil, SweepOptions{})
	assert.Error(t, err)
}

func TestWrittenSwallowsPutFailure(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	s := NewSyncer(failingBucket{Bucket: newTestBucket(t), putErr: errors.New("denied")}, "", nil, zap.New(core))

	s.Written(context.Background(), "", models.Contact{ID: "1", Name: "Jane"})
	assert.Equal(t, 1, logs.FilterMessage("failed to write document").Len())
}
