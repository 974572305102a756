// ABOUTME: Offline deduplication pass over the whole contact set
// ABOUTME: Groups by identity key, folds each group into its newest record and cleans up documents
package dedupe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/harperreed/cardsync/artifact"
	"github.com/harperreed/cardsync/db"
	"github.com/harperreed/cardsync/match"
	"github.com/harperreed/cardsync/models"
	"github.com/harperreed/cardsync/store"
	"go.uber.org/zap"
)

type Options struct {
	// DryRun computes the report without writing anything.
	DryRun bool
}

// Group is one identity key with more than one record.
type Group struct {
	Key        string
	Survivor   models.Contact
	Superseded []models.Contact
}

type Report struct {
	Scanned int
	Kept    int
	Groups  []Group
	// DocumentsDeleted lists superseded records whose documents were removed.
	DocumentsDeleted []string
	Sweep            artifact.SweepReport
	DryRun           bool
}

// Removed is the number of records folded into a survivor.
func (r Report) Removed() int {
	return r.Scanned - r.Kept
}

// Deduplicator runs the batch pass. Docs, MergeLog and Tracker are optional.
type Deduplicator struct {
	Store    *store.Store
	Docs     *artifact.Syncer
	MergeLog *sql.DB
	Tracker  *db.Tracker
	Logger   *zap.Logger
}

// New builds a deduplicator over st that maintains documents through docs.
func New(st *store.Store, docs *artifact.Syncer, logger *zap.Logger) *Deduplicator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduplicator{Store: st, Docs: docs, Logger: logger.Named("dedupe")}
}

// Plan groups contacts by match.Key in first-appearance order and folds each
// group into its most recently touched record. It does not write.
func (d *Deduplicator) Plan(contacts []models.Contact) ([]models.Contact, []Group) {
	order := []string{}
	byKey := map[string][]models.Contact{}
	for _, c := range contacts {
		key := match.Key(c)
		if _, ok := byKey[key]; !ok {
			order = append(order, key)
		}
		byKey[key] = append(byKey[key], c)
	}

	engine := d.Store.Engine()
	reduced := make([]models.Contact, 0, len(order))
	groups := []Group{}
	for _, key := range order {
		members := byKey[key]
		if len(members) == 1 {
			reduced = append(reduced, members[0])
			continue
		}

		sort.SliceStable(members, func(i, j int) bool {
			return members[i].LastTouched().After(members[j].LastTouched())
		})
		survivor := members[0]
		for _, other := range members[1:] {
			survivor = engine.Absorb(survivor, other)
		}
		survivor.Revision++

		reduced = append(reduced, survivor)
		groups = append(groups, Group{Key: key, Survivor: survivor, Superseded: members[1:]})
	}
	return reduced, groups
}

// Run executes the pass. A second run over its own output finds no groups
// and writes nothing.
func (d *Deduplicator) Run(ctx context.Context, opts Options) (Report, error) {
	var report Report
	err := d.Tracker.Run(ctx, db.JobDedupe, func() (string, error) {
		var err error
		report, err = d.run(ctx, opts)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("scanned %d, removed %d, orphans %d", report.Scanned, report.Removed(), len(report.Sweep.Orphans)), nil
	})
	return report, err
}

func (d *Deduplicator) run(ctx context.Context, opts Options) (Report, error) {
	d.Store.Invalidate()
	snapshot, err := d.Store.List(ctx)
	if err != nil {
		return Report{}, err
	}
	reduced, groups := d.Plan(snapshot)

	report := Report{Scanned: len(snapshot), Kept: len(reduced), Groups: groups, DryRun: opts.DryRun}
	for _, g := range groups {
		d.Logger.Info("merging duplicate group",
			zap.String("key", g.Key),
			zap.String("survivor_id", g.Survivor.ID),
			zap.Int("superseded", len(g.Superseded)))
	}

	live := reduced
	if !opts.DryRun && len(groups) > 0 {
		if err := d.Store.ReplaceAll(ctx, reduced, snapshot); err != nil {
			return report, err
		}
		d.logMerges(ctx, groups)
		report.DocumentsDeleted = d.cleanDocuments(ctx, groups, snapshot)

		// ReplaceAll keeps records created after the snapshot; sweep against
		// what was actually written.
		d.Store.Invalidate()
		if live, err = d.Store.List(ctx); err != nil {
			return report, err
		}
	}

	if len(live) == 0 {
		d.Logger.Warn("no contacts loaded, skipping orphan sweep")
		return report, nil
	}
	if d.Docs != nil {
		sweep, err := d.Docs.SweepOrphans(ctx, live, artifact.SweepOptions{DryRun: opts.DryRun})
		if err != nil {
			return report, err
		}
		report.Sweep = sweep
	}
	return report, nil
}

// cleanDocuments removes a superseded record's document only when it is not
// the file the survivor still uses, then regenerates the survivor's document.
func (d *Deduplicator) cleanDocuments(ctx context.Context, groups []Group, snapshot []models.Contact) []string {
	deleted := []string{}
	if d.Docs == nil {
		return deleted
	}
	before := make(map[string]string, len(snapshot))
	for _, c := range snapshot {
		before[c.ID] = c.Name
	}

	for _, g := range groups {
		survivorFile := artifact.Filename(g.Survivor.Name)
		for _, other := range g.Superseded {
			if artifact.Filename(other.Name) == survivorFile {
				// The survivor takes this file over.
				d.Docs.Forget(ctx, other.ID)
				continue
			}
			d.Docs.Removed(ctx, other)
			deleted = append(deleted, other.ID)
		}
		d.Docs.Written(ctx, before[g.Survivor.ID], g.Survivor)
	}
	return deleted
}

func (d *Deduplicator) logMerges(ctx context.Context, groups []Group) {
	if d.MergeLog == nil {
		return
	}
	for _, g := range groups {
		for _, other := range g.Superseded {
			err := db.LogMerge(ctx, d.MergeLog, db.MergeLogEntry{
				SurvivorID: g.Survivor.ID,
				AbsorbedID: other.ID,
				Source:     db.MergeSourceBatch,
				Rule:       keyRule(g.Key),
			})
			if err != nil {
				d.Logger.Warn("failed to record merge", zap.Error(err))
			}
		}
	}
}

// keyRule names the grouping rule behind a key: "email_key" or "nc_key".
func keyRule(key string) string {
	prefix, _, _ := strings.Cut(key, ":")
	return prefix + "_key"
}

// ErrEmptyStore stops a sweep that would treat every document as an orphan.
var ErrEmptyStore = errors.New("no contacts loaded")

// Sweep removes documents no contact implies, without merging anything.
func (d *Deduplicator) Sweep(ctx context.Context, opts Options) (artifact.SweepReport, error) {
	var report artifact.SweepReport
	if d.Docs == nil {
		return report, fmt.Errorf("document sync is not configured")
	}
	err := d.Tracker.Run(ctx, db.JobSweep, func() (string, error) {
		d.Store.Invalidate()
		contacts, err := d.Store.List(ctx)
		if err != nil {
			return "", err
		}
		if len(contacts) == 0 {
			return "", fmt.Errorf("refusing to sweep documents: %w", ErrEmptyStore)
		}
		report, err = d.Docs.SweepOrphans(ctx, contacts, artifact.SweepOptions{DryRun: opts.DryRun})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("scanned %d, orphans %d, deleted %d", report.Scanned, len(report.Orphans), report.Deleted), nil
	})
	return report, err
}
