// ABOUTME: Visualization CLI commands
// ABOUTME: Handles the career graph, the dashboard and the interactive browser
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/harperreed/cardsync/store"
	"github.com/harperreed/cardsync/tui"
	"github.com/harperreed/cardsync/viz"
)

// VizGraphCommand generates a career graph, optionally centered on a contact.
func VizGraphCommand(ctx context.Context, rt *store.Runtime, args []string) error {
	fs := flag.NewFlagSet("viz graph", flag.ContinueOnError)
	output := fs.String("output", "", "Output file (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	contacts, err := rt.Store.List(ctx)
	if err != nil {
		return err
	}

	focusID := ""
	if fs.NArg() > 0 {
		focusID = fs.Arg(0)
	}

	dot, stats, err := viz.NewGraphGenerator(contacts).CareerGraph(focusID)
	if err != nil {
		return err
	}

	if *output != "" {
		if err := os.WriteFile(*output, []byte(dot), 0644); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "✓ Wrote %s: %d contacts, %d companies, %d edges\n", *output, stats.Contacts, stats.Companies, stats.Edges)
		return nil
	}

	_, _ = fmt.Fprintln(out, dot)
	return nil
}

// VizDashboardCommand prints the text dashboard.
func VizDashboardCommand(ctx context.Context, rt *store.Runtime, args []string) error {
	contacts, err := rt.Store.List(ctx)
	if err != nil {
		return err
	}
	stats := viz.GenerateDashboardStats(contacts, time.Now())
	_, _ = fmt.Fprint(out, viz.RenderDashboard(stats))
	return nil
}

// BrowseCommand opens the full-screen contact browser.
func BrowseCommand(ctx context.Context, rt *store.Runtime, args []string) error {
	if !tui.Interactive() {
		return fmt.Errorf("browse needs an interactive terminal")
	}
	return tui.Run(ctx, rt.Store)
}
