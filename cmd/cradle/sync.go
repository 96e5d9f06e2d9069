// ABOUTME: CLI commands for linking a device to a server and moving data between them.
// ABOUTME: Supports login, logout, status, pull, now, queue, clear-queue, reset, and wipe.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/harperreed/cradle/internal/remote"
	"github.com/harperreed/cradle/internal/sync"
	"github.com/spf13/cobra"
)

var (
	loginServer string
	loginToken  string
	loginOwner  int64

	syncConfirm bool
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	Aliases: []string{"s"},
	Short:   "Sync this device with a cradle server",
	Long: `Sync this device with a cradle server.

Writes land in this device's store first. When the server is reachable they
are sent right away; otherwise they wait in the offline queue until the
next 'cradle sync now'.

GETTING STARTED:

  1. Get a token from whoever runs the server:
     cradle token <owner>

  2. Link this device:
     cradle sync login --server https://cradle.example.com --owner 1 --token <jwt>

  3. Check sync status:
     cradle sync status

COMMANDS:

  login        Link this device to a server
  logout       Forget the server link (local data is kept)
  status       Show server, owner, device, and queue length
  pull         Merge the server copy into this device
  now          Send queued writes, then pull
  queue        List queued writes
  clear-queue  Drop all queued writes (destructive)
  reset        Replace local data with the server copy (destructive)
  wipe         Delete server and local data (destructive)`,
}

var syncLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Link this device to a server",
	Long: `Link this device to a cradle server.

Example:
  cradle sync login --server https://cradle.example.com --owner 1 --token <jwt>`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := sync.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load sync config: %w", err)
		}
		if loginServer != "" {
			cfg.Server = strings.TrimRight(loginServer, "/")
		}
		if loginToken != "" {
			cfg.Token = loginToken
		}
		if loginOwner > 0 {
			cfg.OwnerID = loginOwner
		}
		if !cfg.IsConfigured() {
			return fmt.Errorf("--server, --token and --owner are required")
		}
		if _, err := cfg.Session(); err != nil {
			return err
		}
		if err := sync.SaveConfig(cfg); err != nil {
			return fmt.Errorf("failed to save sync config: %w", err)
		}
		color.Green("✓ Linked to %s as owner %d", cfg.Server, cfg.OwnerID)

		c, err := openClient()
		if err != nil {
			return err
		}
		report, err := c.engine.Reconnect(cmd.Context())
		c.printNotices()
		if err != nil {
			if remote.IsUnauthorized(err) {
				return fmt.Errorf("the server rejected the token: %w", err)
			}
			color.Yellow("⚠ Initial pull failed: %v", err)
			return nil
		}
		if report.Offline {
			color.Yellow("⚠ Server unreachable; initial pull skipped")
			return nil
		}
		reportQueue(report)
		color.Green("✓ Initial pull complete")
		return nil
	},
}

var syncLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the server link",
	Long: `Forget the server link.

This does not delete your local data. Queued writes stay queued and are sent
after the next 'cradle sync login'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := sync.ClearConfig(); err != nil {
			return fmt.Errorf("failed to clear sync config: %w", err)
		}
		color.Green("✓ Logged out")
		fmt.Println("Your local data is preserved.")
		return nil
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := sync.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load sync config: %w", err)
		}
		if !cfg.IsConfigured() {
			color.Yellow("Not linked to a server")
			fmt.Println("\nRun 'cradle sync login' to connect.")
			return nil
		}

		c, err := openClient()
		if err != nil {
			return err
		}
		fmt.Println("Server:", c.cfg.Server)
		fmt.Println("Owner: ", c.cfg.OwnerID)
		fmt.Println("Device:", c.cfg.DeviceID)
		fmt.Println("Store: ", c.cfg.LocalDir)
		fmt.Println()

		entries, err := c.engine.Queued(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to read queue: %w", err)
		}
		if c.remote.Online(cmd.Context()) {
			color.Green("✓ Server reachable")
		} else {
			color.Yellow("⚠ Server unreachable")
		}
		fmt.Printf("  Queued writes: %d\n", len(entries))

		snap, err := c.engine.State(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to read local state: %w", err)
		}
		fmt.Printf("  Activities: %d\n", len(snap.Activities))
		fmt.Printf("  Growth records: %d\n", len(snap.GrowthRecords))
		fmt.Printf("  Custom activities: %d\n", len(snap.CustomActivities))
		return nil
	},
}

var syncPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Merge the server copy into this device",
	Long: `Merge the server copy into this device.

Queued writes are sent first so the server copy cannot mask them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openClient()
		if err != nil {
			return err
		}
		report, err := c.engine.Reconnect(cmd.Context())
		c.printNotices()
		if err != nil {
			return fmt.Errorf("pull failed: %w", err)
		}
		if report.Offline {
			return fmt.Errorf("pull failed: server unreachable")
		}
		reportQueue(report)
		snap, err := c.engine.State(cmd.Context())
		if err != nil {
			return err
		}
		color.Green("✓ Pulled %d activities, %d growth records", len(snap.Activities), len(snap.GrowthRecords))
		return nil
	},
}

var syncNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Send queued writes, then pull",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openClient()
		if err != nil {
			return err
		}
		report, err := c.engine.Reconnect(cmd.Context())
		c.printNotices()
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		reportQueue(report)
		if !report.Offline && report.Remaining() == 0 {
			color.Green("✓ In sync")
		}
		return nil
	},
}

var syncQueueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List queued writes",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openClient()
		if err != nil {
			return err
		}
		entries, err := c.engine.Queued(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to read queue: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("Queue is empty.")
			return nil
		}
		faint := color.New(color.Faint)
		for _, e := range entries {
			line := fmt.Sprintf("%s %s %s",
				faint.Sprint(e.Timestamp.Local().Format("2006-01-02 15:04:05")),
				padRight(string(e.Action), 22),
				e.RecordKey)
			if e.Attempts > 0 {
				line += faint.Sprintf(" (%d attempts: %s)", e.Attempts, truncate(e.LastError, 40))
			}
			fmt.Println(line)
		}
		return nil
	},
}

var syncClearQueueCmd = &cobra.Command{
	Use:   "clear-queue",
	Short: "Drop all queued writes",
	Long: `Drop every queued write without sending it.

Local records stay as they are; run 'cradle sync reset' to bring them back in
line with the server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !confirm("Drop all queued writes?") {
			fmt.Println("Canceled.")
			return nil
		}
		c, err := openClient()
		if err != nil {
			return err
		}
		n, err := c.engine.ClearQueue(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to clear queue: %w", err)
		}
		color.Yellow("✗ Dropped %d queued writes", n)
		return nil
	},
}

var syncResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Replace local data with the server copy",
	Long: `Discard this device's records and queued writes, then pull the server copy.

Use this after an import on another device, or when local state has drifted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !confirm("Replace local data with the server copy? Queued writes are lost.") {
			fmt.Println("Canceled.")
			return nil
		}
		c, err := openClient()
		if err != nil {
			return err
		}
		if err := c.resetFromServer(cmd); err != nil {
			return err
		}
		color.Green("✓ Local data replaced with the server copy")
		return nil
	},
}

var syncWipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Delete all server and local data",
	Long: `Delete every record this owner has on the server and on this device.

This cannot be undone. Export first with 'cradle export json -o backup.json'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !confirm("Delete ALL data on the server and this device?") {
			fmt.Println("Canceled.")
			return nil
		}
		c, err := openClient()
		if err != nil {
			return err
		}
		if err := c.remote.DeleteAccount(cmd.Context()); err != nil {
			return fmt.Errorf("failed to delete server data: %w", err)
		}
		if err := c.store.Reset(c.cfg.OwnerID); err != nil {
			return fmt.Errorf("failed to delete local data: %w", err)
		}
		color.Yellow("✗ All data deleted")
		return nil
	},
}

// resetFromServer drops local records and queued writes, then pulls.
func (c *client) resetFromServer(cmd *cobra.Command) error {
	if err := c.store.Reset(c.cfg.OwnerID); err != nil {
		return fmt.Errorf("failed to reset local data: %w", err)
	}
	if _, err := c.engine.Pull(cmd.Context()); err != nil {
		return fmt.Errorf("pull failed: %w", err)
	}
	return nil
}

// confirm asks a yes/no question unless --yes was given.
func confirm(question string) bool {
	if syncConfirm {
		return true
	}
	fmt.Printf("%s [y/N] ", question)
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func init() {
	syncLoginCmd.Flags().StringVar(&loginServer, "server", "", "server base URL")
	syncLoginCmd.Flags().StringVar(&loginToken, "token", "", "bearer token")
	syncLoginCmd.Flags().Int64Var(&loginOwner, "owner", 0, "owner id")

	for _, c := range []*cobra.Command{syncClearQueueCmd, syncResetCmd, syncWipeCmd} {
		c.Flags().BoolVarP(&syncConfirm, "yes", "y", false, "skip confirmation prompt")
	}

	syncCmd.AddCommand(syncLoginCmd)
	syncCmd.AddCommand(syncLogoutCmd)
	syncCmd.AddCommand(syncStatusCmd)
	syncCmd.AddCommand(syncPullCmd)
	syncCmd.AddCommand(syncNowCmd)
	syncCmd.AddCommand(syncQueueCmd)
	syncCmd.AddCommand(syncClearQueueCmd)
	syncCmd.AddCommand(syncResetCmd)
	syncCmd.AddCommand(syncWipeCmd)
	rootCmd.AddCommand(syncCmd)
}
