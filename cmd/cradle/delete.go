// ABOUTME: CLI command for deleting activities.
// ABOUTME: Supports deletion by full ID or a unique ID prefix.
package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/harperreed/cradle/internal/errs"
	"github.com/harperreed/cradle/internal/models"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"del", "rm"},
	Short:   "Delete an activity",
	Long: `Delete an activity by its ID or ID prefix.

The ID prefix is shown in the first column of 'cradle list' output.

EXAMPLES:

  cradle delete abc12345     # Delete by 8-char prefix
  cradle rm abc1             # Short prefix (if unique)

If the prefix matches multiple activities, an error is returned.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openClient()
		if err != nil {
			return err
		}
		snap, err := c.engine.State(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to read local state: %w", err)
		}

		a, err := findByPrefix(args[0], snap.Activities, func(a models.Activity) string { return a.ID })
		if err != nil {
			return err
		}

		m, err := models.NewMutation(models.ActionDeleteActivity, models.DeletePayload{ID: a.ID})
		if err != nil {
			return err
		}
		if _, err := c.write(cmd.Context(), m); err != nil {
			return fmt.Errorf("failed to delete activity: %w", err)
		}

		color.Yellow("✗ Deleted %s", a.Type)
		fmt.Printf("  %s %s\n",
			color.New(color.Faint).Sprint(a.ID[:min(8, len(a.ID))]),
			a.Timestamp.Local().Format("2006-01-02 15:04"))
		return nil
	},
}

// findByPrefix returns the single record whose id equals or starts with prefix.
func findByPrefix[T any](prefix string, list []T, id func(T) string) (T, error) {
	var zero T
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return zero, errs.Validation("id is required")
	}
	var matches []T
	for _, rec := range list {
		if id(rec) == prefix {
			return rec, nil
		}
		if strings.HasPrefix(id(rec), prefix) {
			matches = append(matches, rec)
		}
	}
	switch len(matches) {
	case 0:
		return zero, fmt.Errorf("not found: %s", prefix)
	case 1:
		return matches[0], nil
	default:
		return zero, fmt.Errorf("prefix %q matches %d records; use more characters", prefix, len(matches))
	}
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
