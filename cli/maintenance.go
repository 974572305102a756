// ABOUTME: Batch maintenance CLI commands
// ABOUTME: Dedupe, document sweep and regeneration, verification, tag normalization and job status
package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/cardsync/db"
	"github.com/harperreed/cardsync/dedupe"
	"github.com/harperreed/cardsync/normalize"
	"github.com/harperreed/cardsync/store"
	"github.com/harperreed/cardsync/verify"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	dryRunStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// NewDeduplicator wires the batch deduplicator to the runtime's documents,
// merge log and job tracker.
func NewDeduplicator(rt *store.Runtime) *dedupe.Deduplicator {
	d := dedupe.New(rt.Store, rt.Docs, rt.Logger)
	d.MergeLog = rt.DB
	d.Tracker = &db.Tracker{DB: rt.DB}
	return d
}

// NewVerifier wires the verification pass to the runtime's documents and job tracker.
func NewVerifier(rt *store.Runtime) *verify.Verifier {
	v := verify.New(rt.Store, rt.Docs, rt.Logger)
	v.Tracker = &db.Tracker{DB: rt.DB}
	return v
}

func heading(title string, dryRun bool) {
	_, _ = fmt.Fprintln(out, headingStyle.Render(title))
	if dryRun {
		_, _ = fmt.Fprintln(out, dryRunStyle.Render("dry run: nothing was written"))
	}
}

// DedupeCommand folds duplicate contacts together.
func DedupeCommand(ctx context.Context, rt *store.Runtime, args []string) error {
	fs := flag.NewFlagSet("dedupe", flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "Report without writing")
	if err := fs.Parse(args); err != nil {
		return err
	}

	report, err := NewDeduplicator(rt).Run(ctx, dedupe.Options{DryRun: *dryRun})
	if err != nil {
		return fmt.Errorf("failed to deduplicate: %w", err)
	}

	heading("DEDUPLICATION", report.DryRun)
	for _, g := range report.Groups {
		_, _ = fmt.Fprintf(out, "  %s → %s (folds %d)\n", g.Key, g.Survivor.Name, len(g.Superseded))
	}
	_, _ = fmt.Fprintf(out, "✓ Scanned %d, kept %d, removed %d\n", report.Scanned, report.Kept, report.Removed())
	if len(report.DocumentsDeleted) > 0 {
		_, _ = fmt.Fprintf(out, "  Documents removed: %d\n", len(report.DocumentsDeleted))
	}
	if len(report.Sweep.Orphans) > 0 {
		_, _ = fmt.Fprintf(out, "  Orphan documents: %s\n", strings.Join(report.Sweep.Orphans, ", "))
	}
	return nil
}

// SweepCommand deletes documents that no contact owns.
func SweepCommand(ctx context.Context, rt *store.Runtime, args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "Report without deleting")
	if err := fs.Parse(args); err != nil {
		return err
	}

	report, err := NewDeduplicator(rt).Sweep(ctx, dedupe.Options{DryRun: *dryRun})
	if err != nil {
		return err
	}

	heading("DOCUMENT SWEEP", *dryRun)
	for _, key := range report.Orphans {
		_, _ = fmt.Fprintf(out, "  orphan: %s\n", key)
	}
	_, _ = fmt.Fprintf(out, "✓ %d documents scanned, %d expected, %d orphans, %d deleted, %d failed\n",
		report.Scanned, report.Valid, len(report.Orphans), report.Deleted, report.Failed)
	return nil
}

// RegenerateCommand rewrites every contact's card document.
func RegenerateCommand(ctx context.Context, rt *store.Runtime, args []string) error {
	rt.Store.Invalidate()
	contacts, err := rt.Store.List(ctx)
	if err != nil {
		return err
	}
	rt.Docs.RegenerateAll(ctx, contacts)
	_, _ = fmt.Fprintf(out, "✓ Regenerated %d documents\n", len(contacts))
	return nil
}

// VerifyCommand checks email domains and stamps verification dates.
func VerifyCommand(ctx context.Context, rt *store.Runtime, args []string) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "Report without writing")
	if err := fs.Parse(args); err != nil {
		return err
	}

	report, err := NewVerifier(rt).Run(ctx, verify.Options{DryRun: *dryRun})
	if err != nil {
		return fmt.Errorf("failed to verify contacts: %w", err)
	}

	heading("VERIFICATION", report.DryRun)
	_, _ = fmt.Fprintf(out, "✓ Checked %d: %d valid, %d invalid, %d without email, %d marked fresh\n",
		report.Checked, report.Valid, report.Invalid, report.NoEmail, report.Freshened)
	return nil
}

// NormalizeTagsCommand rewrites tags through the normalization table.
func NormalizeTagsCommand(ctx context.Context, rt *store.Runtime, args []string) error {
	return runNormalize(ctx, rt, "normalize-tags", "TAG NORMALIZATION", normalize.Options{Tags: true}, args)
}

// StandardizeCommand applies the company rules.
func StandardizeCommand(ctx context.Context, rt *store.Runtime, args []string) error {
	return runNormalize(ctx, rt, "standardize", "COMPANY STANDARDIZATION", normalize.Options{Companies: true}, args)
}

func runNormalize(ctx context.Context, rt *store.Runtime, name, title string, opts normalize.Options, args []string) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "Report without writing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	opts.DryRun = *dryRun

	runner := normalize.New(rt.Store, rt.Docs, rt.Logger)
	runner.Tracker = &db.Tracker{DB: rt.DB}
	report, err := runner.Run(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", name, err)
	}

	heading(title, report.DryRun)
	for _, c := range report.Changes {
		line := fmt.Sprintf("  %s: [%s] → [%s]", c.Name, strings.Join(c.TagsBefore, ", "), strings.Join(c.TagsAfter, ", "))
		if c.CompanyTo != "" {
			line += fmt.Sprintf(", company %q → %q", c.CompanyFrom, c.CompanyTo)
		}
		_, _ = fmt.Fprintln(out, line)
	}
	_, _ = fmt.Fprintf(out, "✓ Scanned %d, changed %d\n", report.Scanned, len(report.Changes))
	return nil
}

// StatusCommand shows the last run of each batch job and recent merges.
func StatusCommand(ctx context.Context, rt *store.Runtime, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	merges := fs.Int("merges", 10, "Recent merge log entries to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "Backend: %s\n", rt.Store.Backend().Name())
	_, _ = fmt.Fprintf(out, "Bucket:  %s\n\n", rt.Config.ResolvedBucket())

	states, err := db.GetAllSyncStates(ctx, rt.DB)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "JOB\tSTATUS\tLAST RUN\tDETAIL")
	_, _ = fmt.Fprintln(w, "---\t------\t--------\t------")
	for _, s := range states {
		lastRun := "never"
		if s.LastRunTime != nil {
			lastRun = s.LastRunTime.Format("2006-01-02 15:04:05")
		}
		detail := s.Detail
		if s.ErrorMessage != nil {
			detail = "error: " + *s.ErrorMessage
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Job, s.Status, lastRun, dash(detail))
	}
	_ = w.Flush()

	if *merges <= 0 {
		return nil
	}
	entries, err := db.ListMerges(ctx, rt.DB, "", *merges)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	_, _ = fmt.Fprintln(out, "\nRecent merges:")
	for _, e := range entries {
		_, _ = fmt.Fprintf(out, "  %s %s ← %s (%s, %s %s)\n",
			e.MergedAt.Format("2006-01-02 15:04"), e.SurvivorID, dash(e.AbsorbedID), e.Source, e.Rule, e.Confidence)
	}
	return nil
}
