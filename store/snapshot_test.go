package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/harperreed/cardsync/blob"
	"github.com/harperreed/cardsync/config"
	"github.com/harperreed/cardsync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotBackend(t *testing.T) {
	ctx := context.Background()
	bucket, err := blob.OpenBadger(filepath.Join(t.TempDir(), "kv"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = bucket.Close() })
	b := NewSnapshotBackend(bucket, "")

	got, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got, "missing snapshot is an empty store")

	require.NoError(t, b.Insert(ctx, models.Contact{ID: "1", Name: "A"}))
	require.NoError(t, b.Insert(ctx, models.Contact{ID: "2", Name: "B"}))
	require.NoError(t, b.Replace(ctx, models.Contact{ID: "1", Name: "A2"}))
	assert.ErrorIs(t, b.Replace(ctx, models.Contact{ID: "9"}), ErrRowMissing)
	require.NoError(t, b.Remove(ctx, "2"))
	require.NoError(t, b.Remove(ctx, "2"))

	got, err = b.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A2", got[0].Name)

	raw, err := bucket.Get(ctx, SnapshotKey)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"name": "A2"`)
}

func TestSnapshotBackendRejectsCorruptData(t *testing.T) {
	ctx := context.Background()
	bucket, err := blob.NewDir(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, bucket.Put(ctx, SnapshotKey, []byte("{not json"), ""))

	_, err = NewSnapshotBackend(bucket, "").Load(ctx)
	assert.Error(t, err)
}

func TestOpenLocalRuntime(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Backend:    config.BackendSnapshot,
		Bucket:     config.BucketDir,
		DataDir:    dir,
		ManifestDB: filepath.Join(dir, "manifest.db"),
	}

	rt, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	res, err := rt.Store.Save(context.Background(), models.Contact{Name: "A/B"}, SaveOptions{})
	require.NoError(t, err)

	doc, err := rt.Bucket.Get(context.Background(), "Cards/A_B.md")
	require.NoError(t, err)
	assert.Contains(t, string(doc), "id: \""+res.Contact.ID+"\"")

	assert.Equal(t, "Cards/A_B.md", rt.Docs.Key("A/B"))

	backend, err := OpenBackend(context.Background(), &config.Config{}, config.BackendSheets, rt.Bucket)
	require.NoError(t, err)
	_, err = backend.Load(context.Background())
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}
