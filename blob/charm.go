// ABOUTME: Bucket backed by Charm KV with automatic sync support
// ABOUTME: Lets documents and snapshots follow the user across devices via a charm server

package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/charm/client"
	"github.com/charmbracelet/charm/kv"
	"github.com/dgraph-io/badger/v3"
)

// CharmOptions configures the charm connection.
type CharmOptions struct {
	// Host is the charm server hostname.
	Host string
	// AppName names the local KV database.
	AppName string
	// AutoSync syncs after every write.
	AutoSync bool
}

// CharmBucket stores objects in a charm KV database.
type CharmBucket struct {
	kv   *kv.KV
	opts CharmOptions
	mu   sync.RWMutex
}

// OpenCharm opens the KV database and pulls remote changes when AutoSync is on.
func OpenCharm(opts CharmOptions) (*CharmBucket, error) {
	if opts.Host != "" {
		_ = os.Setenv("CHARM_HOST", opts.Host)
	}
	db, err := kv.OpenWithDefaults(opts.AppName)
	if err != nil {
		return nil, fmt.Errorf("failed to open charm kv: %w", err)
	}
	if opts.AutoSync {
		_ = db.Sync()
	}
	return &CharmBucket{kv: db, opts: opts}, nil
}

// ID returns the charm user ID for this device.
func (b *CharmBucket) ID() (string, error) {
	cc, err := client.NewClientWithDefaults()
	if err != nil {
		return "", fmt.Errorf("failed to create charm client: %w", err)
	}
	return cc.ID()
}

// Sync performs a manual sync with the charm server.
func (b *CharmBucket) Sync() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.kv.Sync()
}

func (b *CharmBucket) Put(_ context.Context, key string, data []byte, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.kv.Set([]byte(key), data); err != nil {
		return err
	}
	if b.opts.AutoSync {
		_ = b.kv.Sync()
	}
	return nil
}

func (b *CharmBucket) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, err := b.kv.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return data, err
}

func (b *CharmBucket) List(_ context.Context, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	raw, err := b.kv.Keys()
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(raw))
	for i, k := range raw {
		keys[i] = string(k)
	}
	return filterPrefix(keys, prefix), nil
}

func (b *CharmBucket) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.kv.Delete([]byte(key)); err != nil {
		return err
	}
	if b.opts.AutoSync {
		_ = b.kv.Sync()
	}
	return nil
}

// Close releases the KV database.
func (b *CharmBucket) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.kv.Close()
}
