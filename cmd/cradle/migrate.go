// ABOUTME: CLI command for copying an account between two record store files.
// ABOUTME: Used when moving a server to a new database or merging owners.
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/cradle/internal/config"
	"github.com/harperreed/cradle/internal/storage"
	"github.com/spf13/cobra"
)

var (
	migrateFrom    string
	migrateTo      string
	migrateOwner   int64
	migrateToOwner int64
	migrateDryRun  bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy an account between databases",
	Long: `Copy one owner's account from a source database into a destination database.

The destination owner's records are replaced in one transaction. The source
is left untouched. Schedules are copied with a fresh next run.

USAGE:

  cradle migrate --from old.db --owner 1 --dry-run   # Preview
  cradle migrate --from old.db --owner 1             # Into the configured database
  cradle migrate --from old.db --to new.db --owner 1 --to-owner 2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if migrateFrom == "" {
			return fmt.Errorf("--from is required")
		}
		if migrateOwner <= 0 {
			return fmt.Errorf("--owner is required")
		}

		src, err := storage.Open(config.ExpandPath(migrateFrom))
		if err != nil {
			return fmt.Errorf("failed to open source: %w", err)
		}
		defer src.Close()

		if migrateDryRun {
			color.Yellow("Dry run mode - no changes will be made")
			fmt.Println()
			doc, err := src.ExportAccount(cmd.Context(), migrateOwner)
			if err != nil {
				return fmt.Errorf("failed to read source account: %w", err)
			}
			fmt.Printf("Would migrate owner %d:\n", migrateOwner)
			fmt.Printf("  Activities: %d\n", len(doc.Activities))
			fmt.Printf("  Custom activities: %d\n", len(doc.CustomActivities))
			fmt.Printf("  Growth records: %d\n", len(doc.GrowthRecords))
			fmt.Printf("  Schedules: %d\n", len(doc.Schedules))
			fmt.Printf("  Profile: %t\n", doc.Profile != nil)
			fmt.Printf("  Settings: %t\n", doc.Settings != nil)
			return nil
		}

		var dst *storage.DB
		if migrateTo != "" {
			dst, err = storage.Open(config.ExpandPath(migrateTo))
		} else {
			cfg, lerr := config.Load()
			if lerr != nil {
				return fmt.Errorf("failed to load config: %w", lerr)
			}
			dst, err = cfg.OpenStorage()
		}
		if err != nil {
			return fmt.Errorf("failed to open destination: %w", err)
		}
		defer dst.Close()

		summary, err := storage.MigrateAccount(cmd.Context(), src, dst, migrateOwner, migrateToOwner)
		if err != nil {
			return err
		}

		target := migrateToOwner
		if target == 0 {
			target = migrateOwner
		}
		color.Green("✓ Migrated owner %d to owner %d", migrateOwner, target)
		fmt.Printf("  Activities: %d\n", summary.Activities)
		fmt.Printf("  Custom activities: %d\n", summary.CustomActivities)
		fmt.Printf("  Growth records: %d\n", summary.GrowthRecords)
		fmt.Printf("  Schedules: %d\n", summary.Schedules)
		if summary.Skipped > 0 {
			color.Yellow("  Skipped: %d", summary.Skipped)
		}
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateFrom, "from", "", "source database file")
	migrateCmd.Flags().StringVar(&migrateTo, "to", "", "destination database file (default: configured database)")
	migrateCmd.Flags().Int64Var(&migrateOwner, "owner", 0, "owner id to copy")
	migrateCmd.Flags().Int64Var(&migrateToOwner, "to-owner", 0, "owner id in the destination (default: same)")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "preview migration without making changes")
	rootCmd.AddCommand(migrateCmd)
}
