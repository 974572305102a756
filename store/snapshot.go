// ABOUTME: JSON snapshot backend kept as a single object in a blob bucket
// ABOUTME: Every write rewrites the whole array; the Store serializes writers
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/harperreed/cardsync/blob"
	"github.com/harperreed/cardsync/models"
	"github.com/harperreed/cardsync/record"
)

// SnapshotKey is where the snapshot lives in the bucket.
const SnapshotKey = "data/contacts.json"

// SnapshotBackend stores the record set as a JSON array.
type SnapshotBackend struct {
	bucket blob.Bucket
	key    string
}

// NewSnapshotBackend uses SnapshotKey when key is empty.
func NewSnapshotBackend(bucket blob.Bucket, key string) *SnapshotBackend {
	if key == "" {
		key = SnapshotKey
	}
	return &SnapshotBackend{bucket: bucket, key: key}
}

func (b *SnapshotBackend) Name() string { return "snapshot" }

// Load treats a missing snapshot as an empty store.
func (b *SnapshotBackend) Load(ctx context.Context) ([]models.Contact, error) {
	data, err := b.bucket.Get(ctx, b.key)
	if errors.Is(err, blob.ErrNotFound) {
		return []models.Contact{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	contacts, err := record.UnmarshalSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", b.key, err)
	}
	return contacts, nil
}

func (b *SnapshotBackend) Insert(ctx context.Context, c models.Contact) error {
	contacts, err := b.Load(ctx)
	if err != nil {
		return err
	}
	return b.ReplaceAll(ctx, append(contacts, c))
}

func (b *SnapshotBackend) Replace(ctx context.Context, c models.Contact) error {
	contacts, err := b.Load(ctx)
	if err != nil {
		return err
	}
	i := indexOf(contacts, c.ID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrRowMissing, c.ID)
	}
	contacts[i] = c
	return b.ReplaceAll(ctx, contacts)
}

func (b *SnapshotBackend) Remove(ctx context.Context, id string) error {
	contacts, err := b.Load(ctx)
	if err != nil {
		return err
	}
	i := indexOf(contacts, id)
	if i < 0 {
		return nil
	}
	return b.ReplaceAll(ctx, append(contacts[:i], contacts[i+1:]...))
}

func (b *SnapshotBackend) ReplaceAll(ctx context.Context, contacts []models.Contact) error {
	data, err := record.MarshalSnapshot(contacts)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := b.bucket.Put(ctx, b.key, data, "application/json"); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}
