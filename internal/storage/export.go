// ABOUTME: Whole-account export and atomic import of the versioned snapshot document.
// ABOUTME: Supports JSON (interchange), YAML, and Markdown export formats.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/harperreed/cradle/internal/errs"
	"github.com/harperreed/cradle/internal/models"
	"gopkg.in/yaml.v3"
)

// ImportSummary counts what an import wrote and what it skipped.
type ImportSummary struct {
	Activities       int  `json:"activities"`
	CustomActivities int  `json:"customActivities"`
	GrowthRecords    int  `json:"growthRecords"`
	Schedules        int  `json:"schedules"`
	Skipped          int  `json:"skipped"`
	Profile          bool `json:"profile"`
	Settings         bool `json:"settings"`
}

// ExportAccount reads all five record families for owner into a document.
func (d *DB) ExportAccount(ctx context.Context, owner int64) (*models.Document, error) {
	snap, err := snapshot(ctx, d.db, owner)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	schedules, err := listSchedules(ctx, d.db, owner)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return &models.Document{
		Version:          models.DocumentVersion,
		Timestamp:        d.now().UTC().Format(time.RFC3339),
		Profile:          snap.Profile,
		Settings:         snap.Settings,
		Activities:       snap.Activities,
		CustomActivities: snap.CustomActivities,
		GrowthRecords:    snap.GrowthRecords,
		Schedules:        schedules,
	}, nil
}

// ImportAccount replaces the owner's collections with the document contents
// in one atomic unit. Profile and settings are upserted, never deleted, so
// the stored profile keeps its creation time. Entries missing identity
// fields are skipped; any other failure rolls back the whole import.
func (d *DB) ImportAccount(ctx context.Context, owner int64, doc *models.Document) (*ImportSummary, error) {
	if doc == nil {
		return nil, errs.Validation("import document is required")
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	var summary ImportSummary
	err := d.withAccountTx(ctx, "import", func(tx *sql.Tx) error {
		summary = ImportSummary{}
		now := d.now()

		if err := deleteCollections(ctx, tx, owner); err != nil {
			return err
		}
		if err := d.checkpoint("deleted"); err != nil {
			return err
		}

		if doc.Profile != nil {
			p := *doc.Profile
			existing, err := getProfile(ctx, tx, owner)
			if err != nil && !errors.Is(err, errs.ErrNotFound) {
				return err
			}
			if existing != nil && !existing.CreatedAt.IsZero() {
				p.CreatedAt = existing.CreatedAt
			}
			if p.CreatedAt.IsZero() {
				p.CreatedAt = now
			}
			if p.UpdatedAt.IsZero() {
				p.UpdatedAt = now
			}
			p.CreatedAt, p.UpdatedAt = p.CreatedAt.UTC(), p.UpdatedAt.UTC()
			if err := putProfile(ctx, tx, owner, &p); err != nil {
				return fmt.Errorf("import profile: %w", err)
			}
			summary.Profile = true
		}
		if doc.Settings != nil {
			s := *doc.Settings
			if err := putSettings(ctx, tx, owner, &s, now); err != nil {
				return fmt.Errorf("import settings: %w", err)
			}
			summary.Settings = true
		}

		for i := range doc.Activities {
			a := doc.Activities[i]
			if !a.HasIdentity() {
				summary.Skipped++
				continue
			}
			if err := saveActivity(ctx, tx, owner, &a, now); err != nil {
				return fmt.Errorf("import activity %s: %w", a.ID, err)
			}
			summary.Activities++
		}
		if err := d.checkpoint("activities"); err != nil {
			return err
		}

		for i := range doc.CustomActivities {
			c := doc.CustomActivities[i]
			if !c.HasIdentity() {
				summary.Skipped++
				continue
			}
			if err := saveCustomActivity(ctx, tx, owner, &c, now); err != nil {
				return fmt.Errorf("import custom activity %s: %w", c.ID, err)
			}
			summary.CustomActivities++
		}

		for i := range doc.GrowthRecords {
			g := doc.GrowthRecords[i]
			if !g.HasIdentity() {
				summary.Skipped++
				continue
			}
			if err := saveGrowthRecord(ctx, tx, owner, &g, now); err != nil {
				return fmt.Errorf("import growth record %s: %w", g.ID, err)
			}
			summary.GrowthRecords++
		}

		for i := range doc.Schedules {
			s := doc.Schedules[i]
			if !s.HasIdentity() {
				summary.Skipped++
				continue
			}
			// Re-imported schedules are eligible immediately.
			if s.NextRun == nil {
				due := now.UTC()
				s.NextRun = &due
			}
			if err := saveSchedule(ctx, tx, owner, &s, now); err != nil {
				return fmt.Errorf("import schedule %s: %w", s.ID, err)
			}
			summary.Schedules++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// ImportJSON decodes a JSON document and imports it for owner.
func (d *DB) ImportJSON(ctx context.Context, owner int64, data []byte) (*ImportSummary, error) {
	doc, err := models.DecodeDocument(data)
	if err != nil {
		return nil, err
	}
	return d.ImportAccount(ctx, owner, doc)
}

// ExportJSON exports the owner's account as an indented JSON document.
func (d *DB) ExportJSON(ctx context.Context, owner int64) ([]byte, error) {
	doc, err := d.ExportAccount(ctx, owner)
	if err != nil {
		return nil, err
	}
	return EncodeJSON(doc)
}

// ExportYAML exports the owner's account as YAML.
func (d *DB) ExportYAML(ctx context.Context, owner int64) ([]byte, error) {
	doc, err := d.ExportAccount(ctx, owner)
	if err != nil {
		return nil, err
	}
	return EncodeYAML(doc)
}

// ExportMarkdown exports the owner's account as a Markdown report.
func (d *DB) ExportMarkdown(ctx context.Context, owner int64) (string, error) {
	doc, err := d.ExportAccount(ctx, owner)
	if err != nil {
		return "", err
	}
	return RenderMarkdown(doc), nil
}

// EncodeJSON renders the interchange format.
func EncodeJSON(doc *models.Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// EncodeYAML renders a human-oriented YAML view with activities grouped by type.
func EncodeYAML(doc *models.Document) ([]byte, error) {
	out := yamlExport{
		Version:          string(doc.Version),
		Timestamp:        doc.Timestamp,
		Activities:       make(map[string][]yamlActivity),
		CustomActivities: make([]yamlCustomActivity, 0, len(doc.CustomActivities)),
		GrowthRecords:    make([]yamlGrowth, 0, len(doc.GrowthRecords)),
		Schedules:        make([]yamlSchedule, 0, len(doc.Schedules)),
	}

	if p := doc.Profile; p != nil {
		out.Profile = &yamlProfile{Name: p.Name, Gender: p.Gender, BirthDate: p.BirthDate}
	}
	if s := doc.Settings; s != nil {
		out.Settings = &yamlSettings{
			FeedingIntervalMinutes: s.FeedingIntervalMinutes,
			NotificationsEnabled:   s.NotificationsEnabled,
			ThemePreference:        s.ThemePreference,
			Features:               s.Features,
		}
	}

	for _, a := range doc.Activities {
		ya := yamlActivity{
			ID:        a.ID,
			Timestamp: a.Timestamp.Format(time.RFC3339),
			SubType:   deref(a.SubType),
			Notes:     deref(a.Notes),
			Unit:      deref(a.Unit),
		}
		if a.EndTimestamp != nil {
			ya.End = a.EndTimestamp.Format(time.RFC3339)
		}
		if a.Amount != nil {
			ya.Amount = *a.Amount
		}
		if a.MedicationName != nil {
			ya.Medication = *a.MedicationName
		}
		out.Activities[a.Type] = append(out.Activities[a.Type], ya)
	}

	for _, c := range doc.CustomActivities {
		out.CustomActivities = append(out.CustomActivities, yamlCustomActivity{
			ID: c.ID, Name: c.Name, Icon: c.Icon, Color: c.Color,
		})
	}
	for _, g := range doc.GrowthRecords {
		out.GrowthRecords = append(out.GrowthRecords, yamlGrowth{
			ID:     g.ID,
			Date:   g.Date,
			Weight: fmt.Sprintf("%.2f %s", g.Weight, g.WeightUnit),
			Height: fmt.Sprintf("%.1f %s", g.Height, g.HeightUnit),
		})
	}
	for _, s := range doc.Schedules {
		ys := yamlSchedule{ID: s.ID, Type: s.Type, Cron: s.ScheduleData.Cron, Enabled: s.Enabled}
		if s.NextRun != nil {
			ys.NextRun = s.NextRun.Format(time.RFC3339)
		}
		out.Schedules = append(out.Schedules, ys)
	}

	return yaml.Marshal(out)
}

type yamlExport struct {
	Version          string                    `yaml:"version"`
	Timestamp        string                    `yaml:"timestamp"`
	Profile          *yamlProfile              `yaml:"profile,omitempty"`
	Settings         *yamlSettings             `yaml:"settings,omitempty"`
	Activities       map[string][]yamlActivity `yaml:"activities"`
	CustomActivities []yamlCustomActivity      `yaml:"custom_activities"`
	GrowthRecords    []yamlGrowth              `yaml:"growth_records"`
	Schedules        []yamlSchedule            `yaml:"schedules"`
}

type yamlProfile struct {
	Name      string `yaml:"name"`
	Gender    string `yaml:"gender,omitempty"`
	BirthDate string `yaml:"birth_date,omitempty"`
}

type yamlSettings struct {
	FeedingIntervalMinutes int             `yaml:"feeding_interval_minutes"`
	NotificationsEnabled   bool            `yaml:"notifications_enabled"`
	ThemePreference        string          `yaml:"theme_preference"`
	Features               map[string]bool `yaml:"features,omitempty"`
}

type yamlActivity struct {
	ID         string  `yaml:"id"`
	Timestamp  string  `yaml:"timestamp"`
	End        string  `yaml:"end,omitempty"`
	SubType    string  `yaml:"sub_type,omitempty"`
	Amount     float64 `yaml:"amount,omitempty"`
	Unit       string  `yaml:"unit,omitempty"`
	Medication string  `yaml:"medication,omitempty"`
	Notes      string  `yaml:"notes,omitempty"`
}

type yamlCustomActivity struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Icon  string `yaml:"icon,omitempty"`
	Color string `yaml:"color,omitempty"`
}

type yamlGrowth struct {
	ID     string `yaml:"id"`
	Date   string `yaml:"date"`
	Weight string `yaml:"weight"`
	Height string `yaml:"height"`
}

type yamlSchedule struct {
	ID      string `yaml:"id"`
	Type    string `yaml:"type"`
	Cron    string `yaml:"cron"`
	NextRun string `yaml:"next_run,omitempty"`
	Enabled bool   `yaml:"enabled"`
}

// RenderMarkdown renders a readable report of the document.
func RenderMarkdown(doc *models.Document) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Cradle Export - %s\n\n", dateOf(doc.Timestamp)))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", doc.Timestamp))

	if p := doc.Profile; p != nil {
		sb.WriteString("## Profile\n\n")
		sb.WriteString(fmt.Sprintf("- Name: %s\n", p.Name))
		if p.BirthDate != "" {
			sb.WriteString(fmt.Sprintf("- Born: %s\n", p.BirthDate))
		}
		if p.Gender != "" {
			sb.WriteString(fmt.Sprintf("- Gender: %s\n", p.Gender))
		}
		sb.WriteString("\n")
	}

	grouped := make(map[string][]models.Activity)
	for _, a := range doc.Activities {
		grouped[a.Type] = append(grouped[a.Type], a)
	}
	types := make([]string, 0, len(grouped))
	for t := range grouped {
		types = append(types, t)
	}
	sort.Strings(types)

	for _, t := range types {
		sb.WriteString(fmt.Sprintf("## %s\n\n", t))
		sb.WriteString("| Time | Detail | Notes |\n")
		sb.WriteString("|------|--------|-------|\n")
		for _, a := range grouped[t] {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n",
				a.Timestamp.Format("2006-01-02 15:04"), activityDetail(a), deref(a.Notes)))
		}
		sb.WriteString("\n")
	}

	if len(doc.GrowthRecords) > 0 {
		sb.WriteString("## Growth\n\n")
		sb.WriteString("| Date | Weight | Height |\n")
		sb.WriteString("|------|--------|--------|\n")
		for _, g := range doc.GrowthRecords {
			sb.WriteString(fmt.Sprintf("| %s | %.2f %s | %.1f %s |\n",
				dateOf(g.Date), g.Weight, g.WeightUnit, g.Height, g.HeightUnit))
		}
		sb.WriteString("\n")
	}

	if len(doc.CustomActivities) > 0 {
		sb.WriteString("## Custom Activities\n\n")
		for _, c := range doc.CustomActivities {
			sb.WriteString(fmt.Sprintf("- %s %s\n", c.Icon, c.Name))
		}
		sb.WriteString("\n")
	}

	if len(doc.Schedules) > 0 {
		sb.WriteString("## Schedules\n\n")
		sb.WriteString("| Type | Cron | Next Run | Enabled |\n")
		sb.WriteString("|------|------|----------|---------|\n")
		for _, s := range doc.Schedules {
			next := ""
			if s.NextRun != nil {
				next = s.NextRun.Format("2006-01-02 15:04")
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %t |\n", s.Type, s.ScheduleData.Cron, next, s.Enabled))
		}
	}

	return sb.String()
}

func activityDetail(a models.Activity) string {
	var parts []string
	if a.SubType != nil {
		parts = append(parts, *a.SubType)
	}
	if a.MedicationName != nil {
		parts = append(parts, *a.MedicationName)
	}
	if a.Amount != nil {
		parts = append(parts, strings.TrimSpace(fmt.Sprintf("%g %s", *a.Amount, deref(a.Unit))))
	}
	if a.EndTimestamp != nil {
		parts = append(parts, a.EndTimestamp.Sub(a.Timestamp).Round(time.Minute).String())
	}
	return strings.Join(parts, ", ")
}

func dateOf(ts string) string {
	if len(ts) >= len(models.DateLayout) {
		return ts[:len(models.DateLayout)]
	}
	return ts
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
