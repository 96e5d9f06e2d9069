// ABOUTME: CLI commands for exporting and importing a whole account.
// ABOUTME: Supports JSON, YAML, and Markdown export; import replaces the server copy.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/cradle/internal/models"
	"github.com/harperreed/cradle/internal/storage"
	"github.com/spf13/cobra"
)

var (
	exportOutput string
	exportLocal  bool
)

var exportCmd = &cobra.Command{
	Use:   "export <format>",
	Short: "Export all data",
	Long: `Export the account in various formats.

FORMATS:

  json       Full JSON export (suitable for backup and 'cradle import')
  yaml       YAML export (human-readable, activities grouped by type)
  markdown   Markdown tables (for sharing with a pediatrician)

OPTIONS:

  --output, -o   Write to file instead of stdout
  --local        Export this device's copy instead of the server's
                 (works offline; schedules are not included)

EXAMPLES:

  cradle export json                  # Export all data as JSON
  cradle export json -o backup.json   # Save to file
  cradle export markdown --local      # Offline Markdown summary`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"json", "yaml", "markdown"},
	RunE: func(cmd *cobra.Command, args []string) error {
		format := args[0]
		if format != "json" && format != "yaml" && format != "markdown" {
			return fmt.Errorf("unknown format: %s (use json, yaml, or markdown)", format)
		}

		c, err := openClient()
		if err != nil {
			return err
		}

		var doc *models.Document
		if exportLocal {
			snap, err := c.engine.State(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read local state: %w", err)
			}
			doc = documentFromSnapshot(snap, time.Now())
		} else {
			doc, err = c.remote.Export(cmd.Context())
			if err != nil {
				return fmt.Errorf("export failed: %w (use --local to export this device's copy)", err)
			}
		}

		var data []byte
		switch format {
		case "json":
			data, err = storage.EncodeJSON(doc)
		case "yaml":
			data, err = storage.EncodeYAML(doc)
		case "markdown":
			data = []byte(storage.RenderMarkdown(doc))
		}
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		if exportOutput != "" {
			if err := os.WriteFile(exportOutput, data, 0600); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}
			color.Green("✓ Exported to %s", exportOutput)
		} else {
			fmt.Println(string(data))
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the account with a JSON backup",
	Long: `Replace the account on the server with a JSON export.

Everything the owner has on the server is deleted first; schedules in the
file get a fresh next run. This device is then reset to the imported data.

EXAMPLES:

  cradle import backup.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := args[0]

		data, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		doc, err := models.DecodeDocument(data)
		if err != nil {
			return err
		}
		if err := doc.Validate(); err != nil {
			return err
		}

		c, err := openClient()
		if err != nil {
			return err
		}
		res, err := c.remote.Import(cmd.Context(), doc)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		if err := c.resetFromServer(cmd); err != nil {
			color.Yellow("⚠ Imported, but refreshing this device failed: %v", err)
			fmt.Println("Run 'cradle sync reset' when the server is reachable.")
		}

		color.Green("✓ Imported from %s", filename)
		fmt.Printf("  Activities: %d\n", res.Activities)
		fmt.Printf("  Custom activities: %d\n", res.CustomActivities)
		fmt.Printf("  Growth records: %d\n", res.GrowthRecords)
		fmt.Printf("  Schedules: %d\n", res.Schedules)
		if res.Skipped > 0 {
			color.Yellow("  Skipped: %d", res.Skipped)
		}
		return nil
	},
}

// documentFromSnapshot wraps a device snapshot in the interchange envelope.
func documentFromSnapshot(snap *models.Snapshot, now time.Time) *models.Document {
	return &models.Document{
		Version:          models.DocumentVersion,
		Timestamp:        now.UTC().Format(time.RFC3339),
		Profile:          snap.Profile,
		Settings:         snap.Settings,
		Activities:       snap.Activities,
		CustomActivities: snap.CustomActivities,
		GrowthRecords:    snap.GrowthRecords,
	}
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
	exportCmd.Flags().BoolVar(&exportLocal, "local", false, "export this device's copy")
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
