// ABOUTME: CLI command for listing activities from the device's synced state.
// ABOUTME: Works offline; supports filtering by type and date and limiting results.
package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/cradle/internal/models"
	"github.com/spf13/cobra"
)

var (
	listType  string
	listLimit int
	listSince string
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls", "l"},
	Short:   "List activities",
	Long: `List recent activities from this device's copy of the log.

OUTPUT FORMAT:

  Each line shows: ID  TIMESTAMP  TYPE  DETAILS  (NOTES)

  The ID is an 8-character prefix you can use with delete commands.

EXAMPLES:

  cradle list                     # Last 20 activities
  cradle list --type feeding      # Only feedings
  cradle list --since 2025-01-31  # Everything since a date
  cradle list -n 50               # Last 50 activities

Run 'cradle sync pull' first to see entries logged on other devices.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var since time.Time
		if listSince != "" {
			t, err := parseTime(listSince)
			if err != nil {
				return fmt.Errorf("invalid date: %s", listSince)
			}
			since = t
		}

		c, err := openClient()
		if err != nil {
			return err
		}
		snap, err := c.engine.State(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to read local state: %w", err)
		}

		activities := filterActivities(snap.Activities, listType, since, listLimit)
		if len(activities) == 0 {
			fmt.Println("No activities found.")
			return nil
		}

		faint := color.New(color.Faint)
		for _, a := range activities {
			notes := ""
			if a.Notes != nil && *a.Notes != "" {
				notes = faint.Sprintf(" (%s)", truncate(*a.Notes, 30))
			}
			fmt.Printf("%s %s %s%s%s\n",
				faint.Sprint(a.ID[:min(8, len(a.ID))]),
				faint.Sprint(a.Timestamp.Local().Format("2006-01-02 15:04")),
				padRight(a.Type, 12),
				activitySummary(a),
				notes)
		}
		return nil
	},
}

// filterActivities keeps the newest-first order of list.
func filterActivities(list []models.Activity, typ string, since time.Time, limit int) []models.Activity {
	var out []models.Activity
	for _, a := range list {
		if typ != "" && a.Type != typ {
			continue
		}
		if !since.IsZero() && a.Timestamp.Before(since) {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// activitySummary renders the optional details of an activity.
func activitySummary(a models.Activity) string {
	var parts []string
	if a.SubType != nil && *a.SubType != "" {
		parts = append(parts, *a.SubType)
	}
	if a.MedicationName != nil && *a.MedicationName != "" {
		parts = append(parts, *a.MedicationName)
	}
	if a.Amount != nil {
		unit := ""
		if a.Unit != nil {
			unit = " " + *a.Unit
		}
		parts = append(parts, fmt.Sprintf("%g%s", *a.Amount, unit))
	}
	if a.EndTimestamp != nil {
		parts = append(parts, a.EndTimestamp.Sub(a.Timestamp).Round(time.Minute).String())
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, ", ")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func padRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}

func init() {
	listCmd.Flags().StringVarP(&listType, "type", "t", "", "filter by activity type")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "max number of results")
	listCmd.Flags().StringVar(&listSince, "since", "", "only activities since this date (YYYY-MM-DD)")
	rootCmd.AddCommand(listCmd)
}
