// ABOUTME: Install Claude Code skill for cradle
// ABOUTME: Embeds and installs the skill definition to ~/.claude/skills/

package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

//go:embed skill/SKILL.md
var skillFS embed.FS

var installSkillCmd = &cobra.Command{
	Use:   "install-skill",
	Short: "Install Claude Code skill",
	Long: `Install the cradle skill for Claude Code.

This copies the skill definition to ~/.claude/skills/cradle/
so Claude Code can use cradle commands contextually.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		return installSkill(filepath.Join(home, ".claude", "skills", "cradle"))
	},
}

func init() {
	installSkillCmd.Flags().BoolVarP(&syncConfirm, "yes", "y", false, "Skip confirmation prompt")
	rootCmd.AddCommand(installSkillCmd)
}

func installSkill(skillDir string) error {
	skillPath := filepath.Join(skillDir, "SKILL.md")

	fmt.Println("┌─────────────────────────────────────────────────────────────┐")
	fmt.Println("│             Cradle Skill for Claude Code                    │")
	fmt.Println("└─────────────────────────────────────────────────────────────┘")
	fmt.Println()
	fmt.Println("This will install the cradle skill, enabling Claude Code to:")
	fmt.Println()
	fmt.Println("  • Log feedings, sleeps, diapers, and medication")
	fmt.Println("  • Record growth measurements")
	fmt.Println("  • Answer \"when did the baby last eat?\"")
	fmt.Println()
	fmt.Println("Destination:")
	fmt.Printf("  %s\n", skillPath)
	fmt.Println()

	if _, err := os.Stat(skillPath); err == nil {
		fmt.Println("Note: A skill file already exists and will be overwritten.")
		fmt.Println()
	}

	if !confirm("Install the cradle skill?") {
		fmt.Println("Installation canceled.")
		return nil
	}

	content, err := skillFS.ReadFile("skill/SKILL.md")
	if err != nil {
		return fmt.Errorf("failed to read embedded skill: %w", err)
	}
	if err := os.MkdirAll(skillDir, 0750); err != nil {
		return fmt.Errorf("failed to create skill directory: %w", err)
	}
	if err := os.WriteFile(skillPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write skill file: %w", err)
	}

	fmt.Println("✓ Installed cradle skill successfully!")
	fmt.Println()
	fmt.Println("Try asking Claude: \"Log a 120ml bottle\" or \"When did she last sleep?\"")
	return nil
}
