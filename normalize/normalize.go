// ABOUTME: Batch tag normalization and company standardization over the whole store
// ABOUTME: Rewrites changed contacts in one ReplaceAll and records the job outcome
package normalize

import (
	"context"
	"fmt"

	"github.com/harperreed/cardsync/artifact"
	"github.com/harperreed/cardsync/db"
	"github.com/harperreed/cardsync/models"
	"github.com/harperreed/cardsync/store"
	"github.com/harperreed/cardsync/tags"
	"go.uber.org/zap"
)

type Options struct {
	// Tags rewrites every tag through the normalization table.
	Tags bool
	// Companies applies the company rules (tags and name expansion).
	Companies bool
	DryRun    bool
}

// Change describes one contact the pass would rewrite.
type Change struct {
	ID          string
	Name        string
	TagsBefore  []string
	TagsAfter   []string
	CompanyFrom string
	CompanyTo   string
}

type Report struct {
	Scanned int
	Changes []Change
	DryRun  bool
}

// Runner applies the passes. Docs and Tracker are optional.
type Runner struct {
	Store   *store.Store
	Docs    *artifact.Syncer
	Tracker *db.Tracker
	Logger  *zap.Logger
}

func New(st *store.Store, docs *artifact.Syncer, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{Store: st, Docs: docs, Logger: logger.Named("normalize")}
}

// Run applies the selected passes and writes every changed record back.
func (r *Runner) Run(ctx context.Context, opts Options) (Report, error) {
	var report Report
	err := r.Tracker.Run(ctx, db.JobNormalize, func() (string, error) {
		var err error
		report, err = r.run(ctx, opts)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("scanned %d, changed %d", report.Scanned, len(report.Changes)), nil
	})
	return report, err
}

func (r *Runner) run(ctx context.Context, opts Options) (Report, error) {
	if !opts.Tags && !opts.Companies {
		return Report{}, fmt.Errorf("nothing to do: enable tags or companies")
	}
	r.Store.Invalidate()
	snapshot, err := r.Store.List(ctx)
	if err != nil {
		return Report{}, err
	}
	report := Report{Scanned: len(snapshot), DryRun: opts.DryRun}
	normalizer := r.Store.Tags()

	updated := make([]models.Contact, 0, len(snapshot))
	changed := []int{}
	for i, c := range snapshot {
		next, change, ok := apply(normalizer, c, opts)
		if ok {
			next.Revision++
			report.Changes = append(report.Changes, change)
			changed = append(changed, i)
		}
		updated = append(updated, next)
	}

	if len(report.Changes) == 0 || opts.DryRun {
		return report, nil
	}
	if err := r.Store.ReplaceAll(ctx, updated, snapshot); err != nil {
		return report, err
	}
	if r.Docs != nil {
		for _, i := range changed {
			r.Docs.Written(ctx, snapshot[i].Name, updated[i])
		}
	}
	r.Logger.Info("normalization written", zap.Int("changed", len(report.Changes)))
	return report, nil
}

func apply(n *tags.Normalizer, c models.Contact, opts Options) (models.Contact, Change, bool) {
	next := c.Clone()
	change := Change{ID: c.ID, Name: c.Name, TagsBefore: c.Tags}
	changed := false

	if opts.Companies && n.Standardize(&next) {
		changed = true
	}
	if opts.Tags {
		normalized := n.NormalizeAll(next.Tags)
		if tags.Changed(next.Tags, normalized) {
			next.Tags = normalized
			changed = true
		}
	}
	if !changed {
		return c, Change{}, false
	}
	change.TagsAfter = next.Tags
	if next.Company != c.Company {
		change.CompanyFrom = c.Company
		change.CompanyTo = next.Company
	}
	return next, change, true
}
