// ABOUTME: MCP server subcommand
// ABOUTME: Starts the MCP server on stdio for desktop agent integration
package cli

import (
	"context"

	"github.com/harperreed/cardsync/handlers"
	"github.com/harperreed/cardsync/store"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// MCPCommand starts the MCP server on stdio
func MCPCommand(ctx context.Context, rt *store.Runtime, version string) error {
	rt.Logger.Info("starting MCP server", zap.String("version", version))

	server := handlers.NewServer(handlers.Deps{
		Store:   rt.Store,
		Dedupe:  NewDeduplicator(rt),
		Verify:  NewVerifier(rt),
		Intake:  NewIntake(rt),
		DB:      rt.DB,
		Version: version,
	})

	// Run server on stdio transport
	return server.Run(ctx, &mcp.StdioTransport{})
}
