// ABOUTME: Migration utility for moving the contact list between backends.
// ABOUTME: Provides dry-run and backup capabilities and can seed from an xlsx workbook.

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/harperreed/cardsync/blob"
	"github.com/harperreed/cardsync/config"
	"github.com/harperreed/cardsync/export"
	"github.com/harperreed/cardsync/models"
	"github.com/harperreed/cardsync/record"
	"github.com/harperreed/cardsync/store"
)

type options struct {
	from   string
	to     string
	input  string
	dryRun bool
	backup bool
	force  bool
}

func main() {
	var opts options
	flag.StringVar(&opts.from, "from", "", "Source backend: sheets or snapshot")
	flag.StringVar(&opts.to, "to", "", "Destination backend: sheets or snapshot (required)")
	flag.StringVar(&opts.input, "input", "", "Read contacts from an xlsx workbook instead of -from")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "Show what would happen without making changes")
	flag.BoolVar(&opts.backup, "backup", true, "Back up the destination before overwriting it")
	flag.BoolVar(&opts.force, "force", false, "Overwrite a destination that already holds contacts")
	flag.Parse()

	if opts.to == "" {
		log.Fatal("Error: -to flag is required")
	}
	if (opts.from == "") == (opts.input == "") {
		log.Fatal("Error: exactly one of -from or -input is required")
	}

	if err := migrate(context.Background(), opts); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migration completed successfully")
}

func migrate(ctx context.Context, opts options) error {
	if opts.from != "" && opts.from == opts.to {
		return fmt.Errorf("source and destination are both %s", opts.to)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	bucket, closeBucket, err := store.OpenBucket(cfg, cfg.ResolvedBucket())
	if err != nil {
		return fmt.Errorf("failed to open bucket: %w", err)
	}
	if closeBucket != nil {
		defer func() { _ = closeBucket() }()
	}

	contacts, err := loadSource(ctx, cfg, bucket, opts)
	if err != nil {
		return err
	}
	log.Printf("Loaded %d contacts", len(contacts))

	dest, err := store.OpenBackend(ctx, cfg, opts.to, bucket)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", opts.to, err)
	}
	existing, err := dest.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", dest.Name(), err)
	}

	if len(existing) > 0 {
		log.Printf("Destination %s already holds %d contacts", dest.Name(), len(existing))
		if !opts.force {
			log.Printf("WARNING: Migration will replace every row in %s", dest.Name())
			log.Printf("Use -force flag to proceed with migration")
			return fmt.Errorf("migration requires -force flag")
		}
	}

	if opts.dryRun {
		log.Printf("[DRY RUN] Would perform the following actions:")
		if opts.backup && len(existing) > 0 {
			log.Printf("[DRY RUN] - Back up %d contacts from %s", len(existing), dest.Name())
		}
		log.Printf("[DRY RUN] - Write %d contacts to %s", len(contacts), dest.Name())
		return nil
	}

	if opts.backup && len(existing) > 0 {
		path, err := writeBackup(cfg.DataDir, dest.Name(), existing)
		if err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
		log.Printf("Backup created: %s", path)
	}

	if sheets, ok := dest.(*store.SheetsBackend); ok {
		if err := sheets.EnsureHeader(ctx); err != nil {
			return err
		}
	}

	if err := dest.ReplaceAll(ctx, contacts); err != nil {
		return fmt.Errorf("failed to write %s: %w", dest.Name(), err)
	}
	log.Printf("Wrote %d contacts to %s", len(contacts), dest.Name())

	return nil
}

func loadSource(ctx context.Context, cfg *config.Config, bucket blob.Bucket, opts options) ([]models.Contact, error) {
	if opts.input != "" {
		f, err := os.Open(opts.input)
		if err != nil {
			return nil, fmt.Errorf("failed to open workbook: %w", err)
		}
		defer func() { _ = f.Close() }()

		contacts, err := export.ReadWorkbook(f)
		if err != nil {
			return nil, err
		}
		return prepare(contacts), nil
	}

	src, err := store.OpenBackend(ctx, cfg, opts.from, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", opts.from, err)
	}
	contacts, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", src.Name(), err)
	}
	return prepare(contacts), nil
}

// prepare gives imported rows the identity and defaults the store expects.
func prepare(contacts []models.Contact) []models.Contact {
	now := time.Now().UTC()
	out := make([]models.Contact, 0, len(contacts))
	for _, c := range contacts {
		if c.Name == "" {
			continue
		}
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if c.AddedAt.IsZero() {
			c.AddedAt = now
		}
		if c.UpdatedAt.IsZero() {
			c.UpdatedAt = c.AddedAt
		}
		if c.Revision == 0 {
			c.Revision = 1
		}
		c.ApplyCompanyCard()
		c.ApplyDefaults()
		out = append(out, c)
	}
	return out
}

func writeBackup(dir, name string, contacts []models.Contact) (string, error) {
	data, err := record.MarshalSnapshot(contacts)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	timestamp := time.Now().Format("20060102-150405")
	path := filepath.Join(dir, fmt.Sprintf("%s.backup.%s.json", name, timestamp))
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", err
	}
	return path, nil
}
