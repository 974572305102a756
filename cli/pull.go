// ABOUTME: Pull and backup CLI commands
// ABOUTME: Mirrors the bucket snapshot and documents into a local directory
package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/harperreed/cardsync/blob"
	"github.com/harperreed/cardsync/db"
	"github.com/harperreed/cardsync/mirror"
	"github.com/harperreed/cardsync/store"
)

// PullCommand mirrors the bucket into --dir, deleting stale local files.
func PullCommand(ctx context.Context, rt *store.Runtime, args []string) error {
	fs := flag.NewFlagSet("pull", flag.ContinueOnError)
	dir := fs.String("dir", ".", "Local directory to mirror into")
	images := fs.Bool("images", false, "Also pull card images")
	dryRun := fs.Bool("dry-run", false, "Report without writing or deleting")
	if err := fs.Parse(args); err != nil {
		return err
	}

	local, err := blob.NewDir(*dir)
	if err != nil {
		return err
	}

	m := mirror.New(rt.Bucket, local, rt.Logger)
	m.Tracker = &db.Tracker{DB: rt.DB}
	report, err := m.Pull(ctx, mirror.Options{Images: *images, DryRun: *dryRun})
	if err != nil {
		return fmt.Errorf("failed to pull: %w", err)
	}

	heading("PULL", *dryRun)
	if report.SnapshotPulled {
		_, _ = fmt.Fprintf(out, "✓ %s\n", store.SnapshotKey)
	} else {
		_, _ = fmt.Fprintf(out, "  %s not found in bucket\n", store.SnapshotKey)
	}
	for _, p := range report.Prefixes {
		_, _ = fmt.Fprintf(out, "✓ %s %d downloaded, %d stale removed, %d failed\n",
			p.Prefix, p.Downloaded, len(p.Deleted), len(p.Failed))
		for _, key := range p.Deleted {
			_, _ = fmt.Fprintf(out, "  removed %s\n", key)
		}
	}

	// A tabular backend keeps nothing in the bucket, so snapshot it directly.
	if rt.Store.Backend().Name() != "snapshot" && !*dryRun {
		n, err := mirror.Backup(ctx, rt.Store, local)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "✓ Backed up %d contacts from %s\n", n, rt.Store.Backend().Name())
	}
	return nil
}
