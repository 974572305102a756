// ABOUTME: Export CLI commands
// ABOUTME: Writes the contact list as a Mailchimp CSV, an xlsx workbook or a JSON snapshot
package cli

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/harperreed/cardsync/export"
	"github.com/harperreed/cardsync/record"
	"github.com/harperreed/cardsync/store"
)

// Export formats.
const (
	FormatMailchimp = "mailchimp"
	FormatXLSX      = "xlsx"
	FormatJSON      = "json"
)

// ExportCommand writes every contact in the chosen format.
func ExportCommand(ctx context.Context, rt *store.Runtime, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	format := fs.String("format", FormatMailchimp, "Output format: mailchimp, xlsx or json")
	output := fs.String("output", "", "Output file (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *format == FormatXLSX && *output == "" {
		return fmt.Errorf("--output is required for xlsx")
	}

	rt.Store.Invalidate()
	contacts, err := rt.Store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load contacts: %w", err)
	}

	var buf bytes.Buffer
	summary := ""
	switch *format {
	case FormatMailchimp:
		s, err := export.WriteMailchimp(&buf, contacts)
		if err != nil {
			return err
		}
		summary = fmt.Sprintf("%d exported, %d skipped without email", s.Exported, s.Skipped)
	case FormatXLSX:
		if err := export.WriteWorkbook(&buf, contacts); err != nil {
			return err
		}
		summary = fmt.Sprintf("%d exported", len(contacts))
	case FormatJSON:
		data, err := record.MarshalSnapshot(contacts)
		if err != nil {
			return err
		}
		buf.Write(data)
		summary = fmt.Sprintf("%d exported", len(contacts))
	default:
		return fmt.Errorf("unknown format %q", *format)
	}

	if *output == "" {
		_, err := io.Copy(out, &buf)
		return err
	}
	if err := os.WriteFile(*output, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", *output, err)
	}
	_, _ = fmt.Fprintf(out, "✓ Wrote %s: %s\n", *output, summary)
	return nil
}
