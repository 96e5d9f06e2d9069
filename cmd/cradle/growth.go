// ABOUTME: CLI commands for growth records and custom activity types.
// ABOUTME: Supports add, list, and delete for each, written through the sync engine.
package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/harperreed/cradle/internal/models"
	"github.com/spf13/cobra"
)

var (
	growthDate       string
	growthAge        int
	growthWeightUnit string
	growthHeightUnit string

	customIcon  string
	customColor string
)

var growthCmd = &cobra.Command{
	Use:     "growth",
	Aliases: []string{"g"},
	Short:   "Manage growth records",
	Long: `Track weight and height measurements.

COMMANDS:

  add      Record a measurement
  list     List measurements, newest first
  delete   Delete a measurement

Examples:
  cradle growth add 4.2 55
  cradle growth add 4.6 --date 2025-02-14
  cradle growth list`,
}

var growthAddCmd = &cobra.Command{
	Use:   "add <weight> [height]",
	Short: "Record a measurement",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		weight, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid weight: %s", args[0])
		}
		var height float64
		if len(args) > 1 {
			height, err = strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid height: %s", args[1])
			}
		}

		g := models.NewGrowthRecord(weight, height)
		if growthDate != "" {
			g.Date = growthDate
		}
		if growthWeightUnit != "" {
			g.WeightUnit = growthWeightUnit
		}
		if growthHeightUnit != "" {
			g.HeightUnit = growthHeightUnit
		}
		g.AgeInDays = growthAge

		m, err := models.NewMutation(models.ActionSaveGrowthRecord, g)
		if err != nil {
			return err
		}
		c, err := openClient()
		if err != nil {
			return err
		}
		if _, err := c.write(cmd.Context(), m); err != nil {
			return fmt.Errorf("failed to add growth record: %w", err)
		}

		color.Green("✓ Recorded growth")
		fmt.Printf("  %s %s %.2f %s / %.1f %s\n",
			color.New(color.Faint).Sprint(g.ID[:8]), g.Date, g.Weight, g.WeightUnit, g.Height, g.HeightUnit)
		return nil
	},
}

var growthListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List growth records",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openClient()
		if err != nil {
			return err
		}
		snap, err := c.engine.State(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to read local state: %w", err)
		}

		if len(snap.GrowthRecords) == 0 {
			fmt.Println("No growth records found.")
			return nil
		}

		faint := color.New(color.Faint)
		for _, g := range snap.GrowthRecords {
			fmt.Printf("%s %s %8.2f %-3s %6.1f %s\n",
				faint.Sprint(g.ID[:min(8, len(g.ID))]),
				padRight(g.Date, 10),
				g.Weight, g.WeightUnit,
				g.Height, g.HeightUnit)
		}
		return nil
	},
}

var growthDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a growth record",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openClient()
		if err != nil {
			return err
		}
		snap, err := c.engine.State(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to read local state: %w", err)
		}
		g, err := findByPrefix(args[0], snap.GrowthRecords, func(g models.GrowthRecord) string { return g.ID })
		if err != nil {
			return err
		}

		m, err := models.NewMutation(models.ActionDeleteGrowthRecord, models.DeletePayload{ID: g.ID})
		if err != nil {
			return err
		}
		if _, err := c.write(cmd.Context(), m); err != nil {
			return fmt.Errorf("failed to delete growth record: %w", err)
		}
		color.Yellow("✗ Deleted growth record from %s", g.Date)
		return nil
	},
}

var customCmd = &cobra.Command{
	Use:   "custom",
	Short: "Manage custom activity types",
	Long: `Define your own activity types to log alongside the built-in ones.

Examples:
  cradle custom add "Vitamin D" --icon pill --color "#ffaa00"
  cradle custom list
  cradle add "Vitamin D"`,
}

var customAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Define a custom activity type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ca := models.NewCustomActivity(args[0])
		ca.Icon = customIcon
		ca.Color = customColor

		m, err := models.NewMutation(models.ActionSaveCustomActivity, ca)
		if err != nil {
			return err
		}
		c, err := openClient()
		if err != nil {
			return err
		}
		if _, err := c.write(cmd.Context(), m); err != nil {
			return fmt.Errorf("failed to add custom activity: %w", err)
		}
		color.Green("✓ Added custom activity %s", ca.Name)
		fmt.Printf("  ID: %s\n", ca.ID[:8])
		return nil
	},
}

var customListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List custom activity types",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openClient()
		if err != nil {
			return err
		}
		snap, err := c.engine.State(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to read local state: %w", err)
		}
		if len(snap.CustomActivities) == 0 {
			fmt.Println("No custom activities defined.")
			return nil
		}
		faint := color.New(color.Faint)
		for _, ca := range snap.CustomActivities {
			fmt.Printf("%s %s %s\n", faint.Sprint(ca.ID[:min(8, len(ca.ID))]), padRight(ca.Name, 20), faint.Sprint(ca.Icon))
		}
		return nil
	},
}

var customDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a custom activity type",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openClient()
		if err != nil {
			return err
		}
		snap, err := c.engine.State(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to read local state: %w", err)
		}
		ca, err := findByPrefix(args[0], snap.CustomActivities, func(ca models.CustomActivity) string { return ca.ID })
		if err != nil {
			return err
		}
		m, err := models.NewMutation(models.ActionDeleteCustomActivity, models.DeletePayload{ID: ca.ID})
		if err != nil {
			return err
		}
		if _, err := c.write(cmd.Context(), m); err != nil {
			return fmt.Errorf("failed to delete custom activity: %w", err)
		}
		color.Yellow("✗ Deleted custom activity %s", ca.Name)
		return nil
	},
}

func init() {
	growthAddCmd.Flags().StringVar(&growthDate, "date", "", "measurement date (YYYY-MM-DD), defaults to today")
	growthAddCmd.Flags().IntVar(&growthAge, "age-days", 0, "age in days at measurement")
	growthAddCmd.Flags().StringVar(&growthWeightUnit, "weight-unit", "", "weight unit (default kg)")
	growthAddCmd.Flags().StringVar(&growthHeightUnit, "height-unit", "", "height unit (default cm)")

	growthCmd.AddCommand(growthAddCmd)
	growthCmd.AddCommand(growthListCmd)
	growthCmd.AddCommand(growthDeleteCmd)
	rootCmd.AddCommand(growthCmd)

	customAddCmd.Flags().StringVar(&customIcon, "icon", "", "icon name")
	customAddCmd.Flags().StringVar(&customColor, "color", "", "display color")

	customCmd.AddCommand(customAddCmd)
	customCmd.AddCommand(customListCmd)
	customCmd.AddCommand(customDeleteCmd)
	rootCmd.AddCommand(customCmd)
}
