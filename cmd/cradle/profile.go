// ABOUTME: CLI commands for the profile and settings singletons.
// ABOUTME: "set" sends only the flags given, so other fields keep their stored values.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/cradle/internal/models"
	"github.com/spf13/cobra"
)

var (
	profileName      string
	profileBirthDate string
	profileGender    string

	settingsInterval      int
	settingsNotifications bool
	settingsTheme         string
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or update the profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openClient()
		if err != nil {
			return err
		}
		snap, err := c.engine.State(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to read local state: %w", err)
		}
		if snap.Profile == nil {
			fmt.Println("No profile yet. Set one with 'cradle profile set --name <name>'.")
			return nil
		}
		p := snap.Profile
		fmt.Printf("Name:       %s\n", p.Name)
		if p.BirthDate != "" {
			fmt.Printf("Birth date: %s\n", p.BirthDate)
		}
		if p.Gender != "" {
			fmt.Printf("Gender:     %s\n", p.Gender)
		}
		return nil
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update profile fields",
	Long: `Update profile fields. Only the flags you pass are changed.

Examples:
  cradle profile set --name Ada --birth-date 2024-12-01
  cradle profile set --gender female`,
	RunE: func(cmd *cobra.Command, args []string) error {
		patch := map[string]any{}
		if cmd.Flags().Changed("name") {
			patch["name"] = profileName
		}
		if cmd.Flags().Changed("birth-date") {
			patch["birthDate"] = profileBirthDate
		}
		if cmd.Flags().Changed("gender") {
			patch["gender"] = profileGender
		}
		if err := writePatch(cmd, models.ActionSaveProfile, patch); err != nil {
			return fmt.Errorf("failed to update profile: %w", err)
		}
		color.Green("✓ Profile updated")
		return nil
	},
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or update settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openClient()
		if err != nil {
			return err
		}
		snap, err := c.engine.State(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to read local state: %w", err)
		}
		s := models.DefaultSettings()
		if snap.Settings != nil {
			s = *snap.Settings
		}
		fmt.Printf("Feeding interval: %d min\n", s.FeedingIntervalMinutes)
		fmt.Printf("Notifications:    %t\n", s.NotificationsEnabled)
		fmt.Printf("Theme:            %s\n", s.ThemePreference)
		if s.ActiveSleepStart != nil {
			fmt.Printf("Sleeping since:   %s\n", s.ActiveSleepStart.Local().Format("2006-01-02 15:04"))
		}
		for name, on := range s.Features {
			fmt.Printf("Feature %-9s %t\n", name+":", on)
		}
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update settings",
	Long: `Update settings. Only the flags you pass are changed.

Examples:
  cradle settings set --feeding-interval 150
  cradle settings set --notifications=false --theme dark`,
	RunE: func(cmd *cobra.Command, args []string) error {
		patch := map[string]any{}
		if cmd.Flags().Changed("feeding-interval") {
			patch["feedingIntervalMinutes"] = settingsInterval
		}
		if cmd.Flags().Changed("notifications") {
			patch["notificationsEnabled"] = settingsNotifications
		}
		if cmd.Flags().Changed("theme") {
			patch["themePreference"] = settingsTheme
		}
		if err := writePatch(cmd, models.ActionSaveSettings, patch); err != nil {
			return fmt.Errorf("failed to update settings: %w", err)
		}
		color.Green("✓ Settings updated")
		return nil
	},
}

func writePatch(cmd *cobra.Command, action models.Action, patch map[string]any) error {
	if len(patch) == 0 {
		return fmt.Errorf("nothing to update; pass at least one flag")
	}
	raw, err := json.Marshal(patch)
	if err != nil {
		return err
	}
	c, err := openClient()
	if err != nil {
		return err
	}
	_, err = c.write(cmd.Context(), models.Mutation{Action: action, Payload: raw})
	return err
}

func init() {
	profileSetCmd.Flags().StringVar(&profileName, "name", "", "name")
	profileSetCmd.Flags().StringVar(&profileBirthDate, "birth-date", "", "birth date (YYYY-MM-DD)")
	profileSetCmd.Flags().StringVar(&profileGender, "gender", "", "gender")
	profileCmd.AddCommand(profileSetCmd)
	rootCmd.AddCommand(profileCmd)

	settingsSetCmd.Flags().IntVar(&settingsInterval, "feeding-interval", 0, "minutes between feedings (0-1440)")
	settingsSetCmd.Flags().BoolVar(&settingsNotifications, "notifications", true, "enable notifications")
	settingsSetCmd.Flags().StringVar(&settingsTheme, "theme", "", "light, dark, or system")
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}
