// ABOUTME: Builds a ready-to-use store from configuration
// ABOUTME: Picks the bucket and backend strategies once and wires the document syncer and manifest
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/harperreed/cardsync/artifact"
	"github.com/harperreed/cardsync/blob"
	"github.com/harperreed/cardsync/config"
	"github.com/harperreed/cardsync/db"
	"github.com/harperreed/cardsync/tags"
	"go.uber.org/zap"
)

// Runtime is everything a command needs. Close releases it.
type Runtime struct {
	Config *config.Config
	Store  *Store
	Bucket blob.Bucket
	Docs   *artifact.Syncer
	DB     *sql.DB
	Tags   *tags.Normalizer
	Logger *zap.Logger

	closers []func() error
}

// Close releases the bucket and database.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open builds the runtime described by cfg.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rt := &Runtime{Config: cfg, Logger: logger}

	conn, err := db.OpenDatabase(cfg.ManifestDB)
	if err != nil {
		return nil, err
	}
	rt.DB = conn
	rt.closers = append(rt.closers, conn.Close)

	bucket, closeBucket, err := OpenBucket(cfg, cfg.ResolvedBucket())
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Bucket = bucket
	if closeBucket != nil {
		rt.closers = append(rt.closers, closeBucket)
	}

	normalizer, err := tags.LoadTable(cfg.TagsFile)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Tags = normalizer

	backend, err := OpenBackend(ctx, cfg, cfg.ResolvedBackend(), bucket)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	rt.Docs = artifact.NewSyncer(bucket, artifact.DefaultPrefix, db.Manifest{DB: conn}, logger)

	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = -1
	}
	rt.Store = New(backend, Options{
		CacheTTL:  ttl,
		Tags:      normalizer,
		Artifacts: rt.Docs,
		MergeLog:  conn,
		Logger:    logger,
	})

	logger.Debug("runtime ready",
		zap.String("backend", backend.Name()),
		zap.String("bucket", cfg.ResolvedBucket()),
		zap.String("manifest", cfg.ManifestDB))
	return rt, nil
}

// OpenBucket opens the named bucket kind. The returned closer may be nil.
func OpenBucket(cfg *config.Config, kind string) (blob.Bucket, func() error, error) {
	switch kind {
	case config.BucketR2:
		b, err := blob.NewS3(blob.S3Options{
			Endpoint:        cfg.R2.Endpoint,
			AccountID:       cfg.R2.AccountID,
			AccessKeyID:     cfg.R2.AccessKeyID,
			SecretAccessKey: cfg.R2.SecretAccessKey,
			Bucket:          cfg.R2.BucketName,
		})
		if err != nil {
			return nil, nil, err
		}
		return b, nil, nil
	case config.BucketCharm:
		b, err := blob.OpenCharm(blob.CharmOptions{
			Host:     cfg.Charm.Host,
			AppName:  config.AppName,
			AutoSync: cfg.Charm.AutoSync,
		})
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	case config.BucketBadger:
		b, err := blob.OpenBadger(cfg.BadgerDir())
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	case config.BucketDir:
		b, err := blob.NewDir(cfg.BucketDir())
		if err != nil {
			return nil, nil, err
		}
		return b, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown bucket %q", kind)
}

// OpenBackend builds the named backend. The snapshot backend lives in bucket.
func OpenBackend(ctx context.Context, cfg *config.Config, kind string, bucket blob.Bucket) (Backend, error) {
	switch kind {
	case config.BackendSheets:
		if !cfg.Google.Complete() {
			return Unavailable{Reason: "Google Sheets credentials are not set"}, nil
		}
		client, err := NewGoogleSheets(ctx, cfg.Google)
		if err != nil {
			return nil, err
		}
		return NewSheetsBackend(client, cfg.Google.SheetName), nil
	case config.BackendSnapshot:
		return NewSnapshotBackend(bucket, SnapshotKey), nil
	}
	return nil, fmt.Errorf("unknown backend %q", kind)
}
