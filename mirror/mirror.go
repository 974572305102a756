// ABOUTME: Pulls the remote bucket contents into a local bucket
// ABOUTME: Copies the snapshot and document prefixes and removes local files gone upstream
package mirror

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/harperreed/cardsync/artifact"
	"github.com/harperreed/cardsync/blob"
	"github.com/harperreed/cardsync/db"
	"github.com/harperreed/cardsync/record"
	"github.com/harperreed/cardsync/store"
	"go.uber.org/zap"
)

// ImagesPrefix holds card scans; pulled only on request since it is large.
const ImagesPrefix = "Images/"

// keepLocal names files that are never deleted from the local copy.
var keepLocal = map[string]bool{".DS_Store": true}

type Options struct {
	// Images also pulls the card scans.
	Images bool
	DryRun bool
}

// PrefixReport describes one synced prefix.
type PrefixReport struct {
	Prefix     string
	Downloaded int
	Deleted    []string
	Failed     []string
}

type Report struct {
	SnapshotPulled bool
	Prefixes       []PrefixReport
}

type Mirror struct {
	Remote blob.Bucket
	Local  blob.Bucket
	// DocPrefix defaults to artifact.DefaultPrefix.
	DocPrefix string
	Tracker   *db.Tracker
	Logger    *zap.Logger
}

func New(remote, local blob.Bucket, logger *zap.Logger) *Mirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror{Remote: remote, Local: local, DocPrefix: artifact.DefaultPrefix, Logger: logger.Named("mirror")}
}

// Pull copies the snapshot and documents down. A missing snapshot is logged,
// not fatal, so a bucket that only holds documents still mirrors.
func (m *Mirror) Pull(ctx context.Context, opts Options) (Report, error) {
	var report Report
	err := m.Tracker.Run(ctx, db.JobMirror, func() (string, error) {
		var err error
		report, err = m.pull(ctx, opts)
		if err != nil {
			return "", err
		}
		total := 0
		for _, p := range report.Prefixes {
			total += p.Downloaded
		}
		return fmt.Sprintf("downloaded %d objects", total), nil
	})
	return report, err
}

func (m *Mirror) pull(ctx context.Context, opts Options) (Report, error) {
	var report Report

	data, err := m.Remote.Get(ctx, store.SnapshotKey)
	switch {
	case errors.Is(err, blob.ErrNotFound):
		m.Logger.Warn("remote snapshot missing", zap.String("key", store.SnapshotKey))
	case err != nil:
		return report, fmt.Errorf("failed to pull snapshot: %w", err)
	default:
		if !opts.DryRun {
			if err := m.Local.Put(ctx, store.SnapshotKey, data, "application/json"); err != nil {
				return report, fmt.Errorf("failed to write snapshot: %w", err)
			}
		}
		report.SnapshotPulled = true
	}

	prefixes := []string{m.docPrefix()}
	if opts.Images {
		prefixes = append(prefixes, ImagesPrefix)
	}
	for _, prefix := range prefixes {
		pr, err := m.syncPrefix(ctx, prefix, opts.DryRun)
		if err != nil {
			return report, err
		}
		report.Prefixes = append(report.Prefixes, pr)
	}
	return report, nil
}

// syncPrefix overwrites every local object under prefix with the remote copy,
// then deletes local objects the remote no longer has.
func (m *Mirror) syncPrefix(ctx context.Context, prefix string, dryRun bool) (PrefixReport, error) {
	pr := PrefixReport{Prefix: prefix, Deleted: []string{}, Failed: []string{}}

	remoteKeys, err := m.Remote.List(ctx, prefix)
	if err != nil {
		return pr, fmt.Errorf("failed to list remote %s: %w", prefix, err)
	}
	remote := make(map[string]bool, len(remoteKeys))
	for _, key := range remoteKeys {
		// folder placeholder objects
		if strings.HasSuffix(key, "/") {
			continue
		}
		remote[key] = true
		if dryRun {
			pr.Downloaded++
			continue
		}
		data, err := m.Remote.Get(ctx, key)
		if err != nil {
			m.Logger.Warn("failed to download object", zap.String("key", key), zap.Error(err))
			pr.Failed = append(pr.Failed, key)
			continue
		}
		if err := m.Local.Put(ctx, key, data, blob.ContentType(key)); err != nil {
			m.Logger.Warn("failed to write local object", zap.String("key", key), zap.Error(err))
			pr.Failed = append(pr.Failed, key)
			continue
		}
		pr.Downloaded++
	}

	localKeys, err := m.Local.List(ctx, prefix)
	if err != nil {
		return pr, fmt.Errorf("failed to list local %s: %w", prefix, err)
	}
	for _, key := range localKeys {
		if remote[key] || keepLocal[path.Base(key)] {
			continue
		}
		pr.Deleted = append(pr.Deleted, key)
		if dryRun {
			continue
		}
		if err := m.Local.Delete(ctx, key); err != nil {
			m.Logger.Warn("failed to delete stale file", zap.String("key", key), zap.Error(err))
		}
	}

	m.Logger.Info("prefix synced",
		zap.String("prefix", prefix),
		zap.Int("downloaded", pr.Downloaded),
		zap.Int("deleted", len(pr.Deleted)))
	return pr, nil
}

func (m *Mirror) docPrefix() string {
	if m.DocPrefix == "" {
		return artifact.DefaultPrefix
	}
	return m.DocPrefix
}

// Backup writes the store's current contents as a JSON snapshot to local.
// It is how a tabular backend is mirrored, since it has no objects to copy.
func Backup(ctx context.Context, st *store.Store, local blob.Bucket) (int, error) {
	st.Invalidate()
	contacts, err := st.List(ctx)
	if err != nil {
		return 0, err
	}
	data, err := record.MarshalSnapshot(contacts)
	if err != nil {
		return 0, err
	}
	if err := local.Put(ctx, store.SnapshotKey, data, "application/json"); err != nil {
		return 0, fmt.Errorf("failed to write snapshot backup: %w", err)
	}
	return len(contacts), nil
}
