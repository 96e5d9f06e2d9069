// ABOUTME: CLI command for starting the MCP server.
// ABOUTME: Runs a stdio MCP server over this device's sync engine.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/harperreed/cradle/internal/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server",
	Long: `Start the Model Context Protocol (MCP) server for AI assistant integration.

Writes go through this device's sync engine, so they work offline and are
queued until the server is reachable. The server communicates via stdin/stdout.

CLAUDE DESKTOP CONFIGURATION:

  {
    "mcpServers": {
      "cradle": {
        "command": "cradle",
        "args": ["mcp"]
      }
    }
  }

AVAILABLE TOOLS:

  log_activity      Log a feeding, sleep, diaper, medication, or custom activity
  list_activities   List recent activities
  delete_activity   Delete an activity by ID or prefix
  add_growth        Record weight and height
  update_profile    Change profile fields
  update_settings   Change settings
  sync_now          Send queued writes and pull

AVAILABLE RESOURCES:

  cradle://today     Today's activities with counts per type
  cradle://summary   Latest activity per type, latest growth, profile
  cradle://queue     Writes waiting for the server`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openClient()
		if err != nil {
			return err
		}
		server, err := mcp.NewServer(c.engine, log)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return server.Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
