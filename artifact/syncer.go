// ABOUTME: Keeps per-contact documents in a bucket in step with the canonical store
// ABOUTME: Best-effort writes, rename cleanup across naming schemes, and orphan sweeps
package artifact

import (
	"context"
	"fmt"

	"github.com/harperreed/cardsync/blob"
	"github.com/harperreed/cardsync/models"
	"go.uber.org/zap"
)

// Manifest remembers which contact owns which document key.
type Manifest interface {
	Owners(ctx context.Context, key string) ([]string, error)
	KeyFor(ctx context.Context, contactID string) (string, error)
	Record(ctx context.Context, contactID, key, name string) error
	Forget(ctx context.Context, contactID string) error
	Prune(ctx context.Context, keep map[string]bool) (int, error)
}

// Syncer projects contacts into documents. Document failures are logged and
// never returned to the caller of Written or Removed.
type Syncer struct {
	bucket   blob.Bucket
	prefix   string
	manifest Manifest
	logger   *zap.Logger
}

// NewSyncer writes documents under prefix (DefaultPrefix when empty).
// manifest and logger may be nil.
func NewSyncer(bucket blob.Bucket, prefix string, manifest Manifest, logger *zap.Logger) *Syncer {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{bucket: bucket, prefix: prefix, manifest: manifest, logger: logger.Named("artifact")}
}

// Key returns the bucket key for a contact name, or "".
func (s *Syncer) Key(name string) string {
	return keyFor(s.prefix, Filename(name))
}

// Written regenerates the document for c. previousName is the name before
// this write ("" for a new contact); when it sanitizes differently the old
// document is removed under both naming schemes first.
func (s *Syncer) Written(ctx context.Context, previousName string, c models.Contact) {
	newKey := s.Key(c.Name)
	if newKey == "" {
		s.logger.Warn("contact has no usable document name", zap.String("contact_id", c.ID))
		return
	}

	stale := []string{}
	if previousName != "" && s.Key(previousName) != newKey {
		stale = append(stale, s.Key(previousName), keyFor(s.prefix, LegacyFilename(previousName)))
	}
	if s.manifest != nil {
		if recorded, err := s.manifest.KeyFor(ctx, c.ID); err != nil {
			s.logger.Warn("manifest lookup failed", zap.String("contact_id", c.ID), zap.Error(err))
		} else {
			stale = append(stale, recorded)
		}
	}
	s.deleteKeys(ctx, c.ID, newKey, stale)

	s.warnCollision(ctx, c, newKey)

	if err := s.bucket.Put(ctx, newKey, Render(c), blob.ContentType(newKey)); err != nil {
		s.logger.Error("failed to write document", zap.String("key", newKey), zap.String("contact_id", c.ID), zap.Error(err))
		return
	}
	if s.manifest != nil {
		if err := s.manifest.Record(ctx, c.ID, newKey, c.Name); err != nil {
			s.logger.Warn("failed to record document", zap.String("key", newKey), zap.Error(err))
		}
	}
	s.logger.Debug("document written", zap.String("key", newKey), zap.String("contact_id", c.ID))
}

// Removed deletes every document c may own.
func (s *Syncer) Removed(ctx context.Context, c models.Contact) {
	keys := []string{s.Key(c.Name), keyFor(s.prefix, LegacyFilename(c.Name))}
	if s.manifest != nil {
		if recorded, err := s.manifest.KeyFor(ctx, c.ID); err == nil {
			keys = append(keys, recorded)
		}
	}
	s.deleteKeys(ctx, c.ID, "", keys)

	if s.manifest != nil {
		if err := s.manifest.Forget(ctx, c.ID); err != nil {
			s.logger.Warn("failed to forget document", zap.String("contact_id", c.ID), zap.Error(err))
		}
	}
}

// Forget drops the manifest entry for contactID without touching documents.
func (s *Syncer) Forget(ctx context.Context, contactID string) {
	if s.manifest == nil {
		return
	}
	if err := s.manifest.Forget(ctx, contactID); err != nil {
		s.logger.Warn("failed to forget document", zap.String("contact_id", contactID), zap.Error(err))
	}
}

// RegenerateAll rewrites the document of every contact.
func (s *Syncer) RegenerateAll(ctx context.Context, contacts []models.Contact) {
	for _, c := range contacts {
		s.Written(ctx, "", c)
	}
}

// deleteKeys removes each distinct non-empty key except keep. A key that the
// manifest attributes to a different contact is left alone.
func (s *Syncer) deleteKeys(ctx context.Context, contactID, keep string, keys []string) {
	seen := map[string]bool{keep: true, "": true}
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true
		if s.ownedByOther(ctx, contactID, key) {
			s.logger.Debug("skipping delete of document owned by another contact", zap.String("key", key))
			continue
		}
		if err := s.bucket.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to delete document", zap.String("key", key), zap.Error(err))
		}
	}
}

func (s *Syncer) ownedByOther(ctx context.Context, contactID, key string) bool {
	if s.manifest == nil {
		return false
	}
	owners, err := s.manifest.Owners(ctx, key)
	if err != nil {
		return false
	}
	for _, id := range owners {
		if id != contactID {
			return true
		}
	}
	return false
}

func (s *Syncer) warnCollision(ctx context.Context, c models.Contact, key string) {
	if s.manifest == nil {
		return
	}
	owners, err := s.manifest.Owners(ctx, key)
	if err != nil {
		return
	}
	for _, id := range owners {
		if id != c.ID {
			s.logger.Warn("NameCollision: document already owned by another contact",
				zap.String("key", key),
				zap.String("contact_id", c.ID),
				zap.String("owner_id", id))
		}
	}
}

// SweepOptions controls SweepOrphans.
type SweepOptions struct {
	DryRun bool
}

// SweepReport summarizes an orphan sweep.
type SweepReport struct {
	Valid   int
	Scanned int
	Orphans []string
	Deleted int
	Failed  int
}

// SweepOrphans deletes every document under the prefix whose filename is not
// implied by contacts. Listing failures abort; delete failures are counted.
func (s *Syncer) SweepOrphans(ctx context.Context, contacts []models.Contact, opts SweepOptions) (SweepReport, error) {
	valid := make(map[string]bool, len(contacts))
	ids := make(map[string]bool, len(contacts))
	for _, c := range contacts {
		if f := Filename(c.Name); f != "" {
			valid[f] = true
		}
		ids[c.ID] = true
	}

	report := SweepReport{Valid: len(valid), Orphans: []string{}}
	keys, err := s.bucket.List(ctx, s.prefix)
	if err != nil {
		return report, fmt.Errorf("failed to list documents: %w", err)
	}

	for _, key := range keys {
		name := baseName(key)
		if name == "" {
			continue
		}
		report.Scanned++
		if valid[name] {
			continue
		}
		report.Orphans = append(report.Orphans, key)
		if opts.DryRun {
			continue
		}
		if err := s.bucket.Delete(ctx, key); err != nil {
			report.Failed++
			s.logger.Warn("failed to delete orphan", zap.String("key", key), zap.Error(err))
			continue
		}
		report.Deleted++
	}

	if !opts.DryRun && s.manifest != nil {
		if _, err := s.manifest.Prune(ctx, ids); err != nil {
			s.logger.Warn("failed to prune manifest", zap.Error(err))
		}
	}

	s.logger.Info("orphan sweep finished",
		zap.Int("valid", report.Valid),
		zap.Int("scanned", report.Scanned),
		zap.Int("orphans", len(report.Orphans)),
		zap.Int("deleted", report.Deleted),
		zap.Int("failed", report.Failed),
		zap.Bool("dry_run", opts.DryRun))
	return report, nil
}
