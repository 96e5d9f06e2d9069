// ABOUTME: CLI command for logging activities.
// ABOUTME: Builds the activity from flags and writes it through the sync engine.
package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/cradle/internal/models"
	"github.com/spf13/cobra"
)

var (
	addAt     string
	addEnd    string
	addSub    string
	addAmount float64
	addUnit   string
	addMed    string
	addNotes  string
)

var addCmd = &cobra.Command{
	Use:     "add <type>",
	Aliases: []string{"a", "log"},
	Short:   "Log an activity",
	Long: `Log an activity. Built-in types are feeding, sleep, diaper, medication,
pumping, bath, and tummy_time; custom activity names work too.

Examples:
  cradle add feeding --sub bottle --amount 120 --unit ml
  cradle add feeding --sub breast_left --at "2025-01-31 07:00"
  cradle add sleep --at "2025-01-31 13:00" --end "2025-01-31 14:30"
  cradle add diaper --sub wet
  cradle add medication --med "vitamin D" --amount 1 --unit drop`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := models.NewActivity(args[0])

		if addAt != "" {
			t, err := parseTime(addAt)
			if err != nil {
				return fmt.Errorf("invalid timestamp: %s", addAt)
			}
			a.WithTimestamp(t)
		}
		if addEnd != "" {
			t, err := parseTime(addEnd)
			if err != nil {
				return fmt.Errorf("invalid end timestamp: %s", addEnd)
			}
			a.WithEnd(t)
		}
		if addSub != "" {
			a.SubType = &addSub
		}
		if addAmount != 0 {
			a.WithAmount(addAmount, addUnit)
		}
		if addMed != "" {
			a.MedicationName = &addMed
		}
		if addNotes != "" {
			a.WithNotes(addNotes)
		}

		m, err := models.NewMutation(models.ActionSaveActivity, a)
		if err != nil {
			return err
		}
		c, err := openClient()
		if err != nil {
			return err
		}
		if _, err := c.write(cmd.Context(), m); err != nil {
			return fmt.Errorf("failed to log activity: %w", err)
		}

		color.Green("✓ Logged %s", a.Type)
		fmt.Printf("  %s %s%s\n",
			color.New(color.Faint).Sprint(a.ID[:8]),
			a.Timestamp.Local().Format("2006-01-02 15:04"),
			activitySummary(*a))
		return nil
	},
}

// parseTime accepts the CLI's timestamp formats in local time.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	formats := []string{
		"2006-01-02 15:04",
		"2006-01-02T15:04",
		"2006-01-02",
	}
	for _, f := range formats {
		if t, err := time.ParseInLocation(f, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format")
}

func init() {
	addCmd.Flags().StringVar(&addAt, "at", "", "start time (YYYY-MM-DD HH:MM), defaults to now")
	addCmd.Flags().StringVar(&addEnd, "end", "", "end time for duration activities")
	addCmd.Flags().StringVar(&addSub, "sub", "", "subtype (bottle, breast_left, wet, dirty, ...)")
	addCmd.Flags().Float64Var(&addAmount, "amount", 0, "amount, e.g. volume fed")
	addCmd.Flags().StringVar(&addUnit, "unit", "", "unit for --amount")
	addCmd.Flags().StringVar(&addMed, "med", "", "medication name")
	addCmd.Flags().StringVar(&addNotes, "notes", "", "notes for the activity")
	rootCmd.AddCommand(addCmd)
}
