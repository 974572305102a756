// ABOUTME: Entry point for the cardsync CLI and MCP server
// ABOUTME: Loads configuration, opens the store runtime and routes to commands
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/harperreed/cardsync/cli"
	"github.com/harperreed/cardsync/config"
	"github.com/harperreed/cardsync/logging"
	"github.com/harperreed/cardsync/store"
)

const version = "0.1.0"

type command func(ctx context.Context, rt *store.Runtime, args []string) error

var commands = map[string]command{
	"add":            cli.AddContactCommand,
	"list":           cli.ListContactsCommand,
	"get":            cli.GetContactCommand,
	"update":         cli.UpdateContactCommand,
	"delete":         cli.DeleteContactCommand,
	"tags":           cli.TagsCommand,
	"scan":           cli.ScanCommand,
	"dedupe":         cli.DedupeCommand,
	"sweep":          cli.SweepCommand,
	"regenerate":     cli.RegenerateCommand,
	"verify":         cli.VerifyCommand,
	"normalize-tags": cli.NormalizeTagsCommand,
	"standardize":    cli.StandardizeCommand,
	"export":         cli.ExportCommand,
	"pull":           cli.PullCommand,
	"status":         cli.StatusCommand,
	"browse":         cli.BrowseCommand,
	"serve":          cli.ServeCommand,
	"google-auth":    cli.GoogleAuthCommand,
	"import-google":  cli.ImportGoogleCommand,
}

func main() {
	// Global flags
	showVersion := flag.Bool("version", false, "Show version and exit")
	backend := flag.String("backend", "", "Override CARDSYNC_BACKEND (auto, sheets, snapshot)")
	bucket := flag.String("bucket", "", "Override CARDSYNC_BUCKET (auto, r2, charm, badger, dir)")
	logLevel := flag.String("log-level", "", "Override CARDSYNC_LOG_LEVEL")
	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		fmt.Printf("cardsync version %s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *backend != "" {
		cfg.Backend = *backend
	}
	if *bucket != "" {
		cfg.Bucket = *bucket
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to build logger: %v\n", err)
		os.Exit(1)
	}

	code := run(cfg, logger, args)
	_ = logger.Sync()
	os.Exit(code)
}

func run(cfg *config.Config, logger *zap.Logger, args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	name, commandArgs := args[0], args[1:]

	var cmd command
	switch name {
	case "mcp":
		cmd = func(ctx context.Context, rt *store.Runtime, _ []string) error {
			return cli.MCPCommand(ctx, rt, version)
		}
	case "viz":
		if len(commandArgs) == 0 {
			fmt.Println("Error: viz requires a subcommand (graph or dashboard)")
			printUsage()
			return 1
		}
		switch commandArgs[0] {
		case "graph":
			cmd = cli.VizGraphCommand
		case "dashboard":
			cmd = cli.VizDashboardCommand
		default:
			fmt.Printf("Unknown viz command: %s\n\n", commandArgs[0])
			printUsage()
			return 1
		}
		commandArgs = commandArgs[1:]
	case "help":
		printUsage()
		return 0
	default:
		var ok bool
		if cmd, ok = commands[name]; !ok {
			fmt.Printf("Unknown command: %s\n\n", name)
			printUsage()
			return 1
		}
	}

	rt, err := store.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", zap.Error(err))
		return 1
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("failed to close runtime", zap.Error(err))
		}
	}()

	if err := cmd(ctx, rt, commandArgs); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func printUsage() {
	fmt.Printf(`cardsync v%s - contact reconciliation and sync

USAGE:
  cardsync [global flags] <command> [flags] [args]

GLOBAL FLAGS:
  --version              Show version and exit
  --backend <name>       auto, sheets or snapshot (default: CARDSYNC_BACKEND or auto)
  --bucket <name>        auto, r2, charm, badger or dir (default: CARDSYNC_BUCKET or auto)
  --log-level <level>    debug, info, warn or error

CONTACTS:
  cardsync add              Save a contact, merging into a duplicate
    --name, --title, --company, --email, --phone, --website, --linkedin
    --met-at, --notes, --tags <a,b>
    --job-status <status>     On a role change: history (default), concurrent, or "" to overwrite
    --new                     Always create a new contact

  cardsync list             List contacts
    --query <text>            Search name, email, company or title
    --tag <tag>               Filter by tag
    --limit <n>               Max results (default: 50)

  cardsync get [--json] <id>           Show one contact
  cardsync update [flags] <id>         Edit fields (flags as for add, plus --score, --revision)
  cardsync delete <id>                 Delete a contact and its card document
  cardsync tags                        List every tag in use
  cardsync scan [flags] <image>...     Scan business cards (needs CARDSYNC_EXTRACTOR_URL)
    --met-at, --tags, --notes
    --yes                     Merge duplicates without asking
    --no-merge                Never merge

MAINTENANCE:
  cardsync dedupe [--dry-run]          Fold duplicate contacts together
  cardsync sweep [--dry-run]           Delete card documents no contact owns
  cardsync regenerate                  Rewrite every card document
  cardsync verify [--dry-run]          Check email domains, stamp verification dates
  cardsync normalize-tags [--dry-run]  Map tags onto the canonical vocabulary
  cardsync standardize [--dry-run]     Apply company tag and name rules
  cardsync status                      Show batch job status and recent merges

DATA:
  cardsync export --format <mailchimp|xlsx|json> [--output <file>]
  cardsync pull [--dir <dir>] [--images] [--dry-run]

GOOGLE CONTACTS:
  cardsync google-auth [--no-browser]  Authorize read-only access (needs GOOGLE_CLIENT_ID/SECRET)
  cardsync import-google [--dry-run]   Import connections, filling gaps in matching contacts

VIEW:
  cardsync viz graph [--output <file>] [id]   Career graph in DOT
  cardsync viz dashboard                      Text dashboard
  cardsync browse                             Interactive browser

WEB:
  cardsync serve [--addr <host:port>]        Password-protected web UI (needs CARDSYNC_ADMIN_PASSWORD)

MCP SERVER:
  cardsync mcp              Start MCP server on stdio

CONFIGURATION:
  Read from the environment, .env.local and .env. See CARDSYNC_* and GOOGLE_* / R2_* variables.

`, version)
}
