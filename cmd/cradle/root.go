// ABOUTME: Root Cobra command for the cradle CLI.
// ABOUTME: Sets up logging in PersistentPreRunE; the device store opens lazily per command.
package main

import (
	"fmt"

	"github.com/harperreed/cradle/internal/logger"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	verbose bool
	log     = logger.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "cradle",
	Short: "Offline-first baby log with a sync server",
	Long: `Cradle tracks a baby's day: feedings, sleeps, diapers, medication, growth.

Every write lands on this device first and reaches the server when it can.
Without a connection, writes wait in an offline queue and are sent on the
next sync.

QUICK START:

  $ cradle sync login --server https://cradle.example.com --owner 1 --token <jwt>
  $ cradle add feeding --sub bottle --amount 120 --unit ml
  $ cradle add sleep --at "2025-01-31 13:00" --end "2025-01-31 14:30"
  $ cradle list
  $ cradle growth add 4.2 55

SYNC:

  $ cradle sync now       # Send queued writes, then pull
  $ cradle sync pull      # Pull the server copy
  $ cradle sync status    # Server, owner, and queue length

SERVER:

  $ cradle serve          # Run the HTTP API and notification scheduler
  $ cradle token 1        # Issue a bearer token for owner 1

MCP INTEGRATION:

  Run 'cradle mcp' to start the Model Context Protocol server for use with
  Claude Desktop or other MCP-compatible AI assistants.

  {
    "mcpServers": {
      "cradle": { "command": "cradle", "args": ["mcp"] }
    }
  }`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !verbose {
			return nil
		}
		l, err := logger.New("dev")
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		log = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.Sync()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "cradle", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
	rootCmd.AddCommand(versionCmd)
}
