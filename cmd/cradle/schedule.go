// ABOUTME: CLI commands for notification schedules.
// ABOUTME: Schedules live only on the server, so these commands need a connection.
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/cradle/internal/models"
	"github.com/spf13/cobra"
)

var (
	scheduleTZ       string
	scheduleMessage  string
	scheduleDisabled bool
)

var scheduleCmd = &cobra.Command{
	Use:     "schedule",
	Aliases: []string{"remind"},
	Short:   "Manage notification schedules",
	Long: `Manage reminders the server fires on a cron schedule.

TYPES:

  feeding_reminder   Remind about the next feeding
  medication         Remind to give medication
  custom             Anything else

Examples:
  cradle schedule add feeding_reminder "0 */3 * * *"
  cradle schedule add medication "0 9 * * *" --tz Europe/Berlin --message "Vitamin D"
  cradle schedule list
  cradle schedule delete abc123`,
}

var scheduleAddCmd = &cobra.Command{
	Use:   "add <type> <cron>",
	Short: "Create a schedule",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openClient()
		if err != nil {
			return err
		}
		s := models.NewSchedule(c.cfg.OwnerID, args[0], args[1])
		s.ScheduleData.Timezone = scheduleTZ
		s.ScheduleData.Message = scheduleMessage
		s.Enabled = !scheduleDisabled
		if err := s.Validate(); err != nil {
			return err
		}

		saved, err := c.remote.SaveSchedule(cmd.Context(), s)
		if err != nil {
			return fmt.Errorf("failed to save schedule: %w", err)
		}
		color.Green("✓ Scheduled %s", saved.Type)
		fmt.Printf("  ID: %s\n", saved.ID[:8])
		if saved.NextRun != nil {
			fmt.Printf("  Next: %s\n", saved.NextRun.Local().Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var scheduleListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List schedules",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openClient()
		if err != nil {
			return err
		}
		list, err := c.remote.ListSchedules(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list schedules: %w", err)
		}
		if len(list) == 0 {
			fmt.Println("No schedules found.")
			return nil
		}
		faint := color.New(color.Faint)
		for _, s := range list {
			next := "-"
			if s.NextRun != nil && s.Enabled {
				next = s.NextRun.Local().Format("2006-01-02 15:04")
			}
			fmt.Printf("%s %s %s next %s %s\n",
				faint.Sprint(s.ID[:min(8, len(s.ID))]),
				padRight(s.Type, 18),
				padRight(s.ScheduleData.Cron, 14),
				next,
				faint.Sprint(s.ScheduleData.Message))
		}
		return nil
	},
}

var scheduleDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a schedule",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openClient()
		if err != nil {
			return err
		}
		list, err := c.remote.ListSchedules(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list schedules: %w", err)
		}
		s, err := findByPrefix(args[0], list, func(s models.NotificationSchedule) string { return s.ID })
		if err != nil {
			return err
		}
		if err := c.remote.DeleteSchedule(cmd.Context(), s.ID); err != nil {
			return fmt.Errorf("failed to delete schedule: %w", err)
		}
		color.Yellow("✗ Deleted %s schedule", s.Type)
		return nil
	},
}

func init() {
	scheduleAddCmd.Flags().StringVar(&scheduleTZ, "tz", "", "IANA timezone for the cron expression (default UTC)")
	scheduleAddCmd.Flags().StringVar(&scheduleMessage, "message", "", "reminder text")
	scheduleAddCmd.Flags().BoolVar(&scheduleDisabled, "disabled", false, "create the schedule disabled")

	scheduleCmd.AddCommand(scheduleAddCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleDeleteCmd)
	rootCmd.AddCommand(scheduleCmd)
}
