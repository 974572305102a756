// ABOUTME: Card scan CLI command
// ABOUTME: Uploads card images, extracts contacts and asks about probable duplicates on a terminal
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/harperreed/cardsync/intake"
	"github.com/harperreed/cardsync/match"
	"github.com/harperreed/cardsync/models"
	"github.com/harperreed/cardsync/record"
	"github.com/harperreed/cardsync/store"
	"github.com/harperreed/cardsync/tui"
)

// NewIntake builds the card intake pipeline, or nil when no extractor is configured.
func NewIntake(rt *store.Runtime) *intake.Intake {
	cfg := rt.Config
	if cfg.ExtractorURL == "" {
		return nil
	}
	extractor := intake.NewHTTPExtractor(cfg.ExtractorURL, cfg.ExtractorToken, cfg.HTTPTimeout, rt.Logger)
	return intake.New(rt.Store, rt.Bucket, extractor, rt.Logger)
}

// ScanCommand scans one or more card images.
func ScanCommand(ctx context.Context, rt *store.Runtime, args []string) error {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	metAt := fs.String("met-at", "", "Where the cards were collected")
	tagList := fs.String("tags", "", "Comma-separated tags for every scanned contact")
	notes := fs.String("notes", "", "Notes for every scanned contact")
	noMerge := fs.Bool("no-merge", false, "Never merge into existing contacts")
	yes := fs.Bool("yes", false, "Merge duplicates without asking")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("at least one image path required")
	}

	in := NewIntake(rt)
	if in == nil {
		return fmt.Errorf("card scanning requires CARDSYNC_EXTRACTOR_URL")
	}
	switch {
	case *noMerge:
		in.Decide = func(context.Context, models.Contact, *match.Match) (intake.Decision, error) {
			return intake.Decision{}, nil
		}
	case *yes || !tui.Interactive():
		in.Decide = intake.MergeAlways
	default:
		in.Decide = tui.Decider(os.Stdin, os.Stdout)
	}

	tags := record.SplitTags(*tagList)
	var failed int
	for _, path := range fs.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		res, err := in.Scan(ctx, intake.Card{
			Image:    data,
			Filename: filepath.Base(path),
			MetAt:    *metAt,
			Tags:     tags,
			Notes:    *notes,
		})
		if errors.Is(err, tui.ErrAborted) {
			return err
		}
		if err != nil {
			failed++
			_, _ = fmt.Fprintf(out, "✗ %s: %v\n", path, err)
			continue
		}

		if res.Created {
			_, _ = fmt.Fprintf(out, "✓ %s → new contact %s (ID: %s)\n", path, res.Contact.Name, res.Contact.ID)
		} else {
			_, _ = fmt.Fprintf(out, "✓ %s → merged into %s (%s match)\n", path, res.Contact.Name, res.Match.Rule)
		}
		printContactSummary(res.Contact)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d cards failed", failed, fs.NArg())
	}
	return nil
}
