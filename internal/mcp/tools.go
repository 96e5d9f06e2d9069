// ABOUTME: MCP tool implementations for activities, growth, profile, settings, and sync.
// ABOUTME: Each write applies locally first, then persists or lands in the offline queue.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/cradle/internal/errs"
	"github.com/harperreed/cradle/internal/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) registerTools() {
	// log_activity
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "log_activity",
		Description: "Log an activity (feeding, sleep, diaper, medication, etc.)",
	}, s.handleLogActivity)

	// list_activities
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_activities",
		Description: "List recent activities, optionally filtered by type",
	}, s.handleListActivities)

	// delete_activity
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "delete_activity",
		Description: "Delete an activity by ID or ID prefix",
	}, s.handleDeleteActivity)

	// add_growth
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "add_growth",
		Description: "Record a weight/height measurement",
	}, s.handleAddGrowth)

	// update_profile
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "update_profile",
		Description: "Update the profile (name, birth date, gender); omitted fields are kept",
	}, s.handleUpdateProfile)

	// update_settings
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "update_settings",
		Description: "Update settings; omitted fields are kept",
	}, s.handleUpdateSettings)

	// sync_now
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "sync_now",
		Description: "Send queued writes to the server and pull the latest state",
	}, s.handleSyncNow)
}

// Tool input/output types

type logActivityInput struct {
	Type           string  `json:"type" jsonschema:"Activity type (feeding, sleep, diaper, medication, pumping, bath, tummy_time or a custom name)"`
	Timestamp      string  `json:"timestamp,omitempty" jsonschema:"Start time (ISO 8601), defaults to now"`
	End            string  `json:"end,omitempty" jsonschema:"End time (ISO 8601) for duration activities"`
	SubType        string  `json:"sub_type,omitempty" jsonschema:"Subtype such as bottle, breast_left, wet, dirty"`
	Amount         float64 `json:"amount,omitempty" jsonschema:"Amount, e.g. volume fed"`
	Unit           string  `json:"unit,omitempty" jsonschema:"Unit for amount"`
	MedicationName string  `json:"medication_name,omitempty" jsonschema:"Medication name"`
	Notes          string  `json:"notes,omitempty" jsonschema:"Optional notes"`
}

type writeOutput struct {
	ID      string `json:"id,omitempty"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type listActivitiesInput struct {
	Type  string `json:"type,omitempty" jsonschema:"Filter by activity type"`
	Limit int    `json:"limit,omitempty" jsonschema:"Max results (default 20)"`
}

type deleteActivityInput struct {
	ID string `json:"id" jsonschema:"Activity ID or prefix"`
}

type addGrowthInput struct {
	Weight float64 `json:"weight" jsonschema:"Weight in kg"`
	Height float64 `json:"height,omitempty" jsonschema:"Height in cm"`
	Date   string  `json:"date,omitempty" jsonschema:"Measurement date (YYYY-MM-DD), defaults to today"`
}

type updateProfileInput struct {
	Name      *string `json:"name,omitempty" jsonschema:"Name"`
	BirthDate *string `json:"birth_date,omitempty" jsonschema:"Birth date (YYYY-MM-DD)"`
	Gender    *string `json:"gender,omitempty" jsonschema:"Gender"`
}

type updateSettingsInput struct {
	FeedingIntervalMinutes *int    `json:"feeding_interval_minutes,omitempty" jsonschema:"Minutes between feeding reminders (0-1440)"`
	NotificationsEnabled   *bool   `json:"notifications_enabled,omitempty" jsonschema:"Enable notifications"`
	ThemePreference        *string `json:"theme,omitempty" jsonschema:"light, dark, or system"`
}

type syncOutput struct {
	Applied   int    `json:"applied"`
	Discarded int    `json:"discarded"`
	Remaining int    `json:"remaining"`
	Offline   bool   `json:"offline"`
	Message   string `json:"message"`
}

// parseTime accepts RFC3339 or "2006-01-02 15:04" in local time.
func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", raw, time.Local)
	if err != nil {
		return time.Time{}, errs.Validation("time %q is not ISO 8601", raw)
	}
	return t, nil
}

// write applies m locally and persists it, queueing on transient failure.
func (s *Server) write(ctx context.Context, m models.Mutation) (string, error) {
	pending, err := s.engine.Apply(ctx, m)
	if err != nil {
		return "", err
	}
	deferred, err := pending.PersistOrDefer(ctx)
	if err != nil {
		return "", err
	}
	if deferred {
		return "queued", nil
	}
	return "synced", nil
}

func writeMessage(verb, what, status string) string {
	if status == "queued" {
		return fmt.Sprintf("%s %s locally; server unreachable, queued for sync", verb, what)
	}
	return fmt.Sprintf("%s %s", verb, what)
}

// Tool handlers

func (s *Server) handleLogActivity(ctx context.Context, req *mcp.CallToolRequest, input logActivityInput) (*mcp.CallToolResult, writeOutput, error) {
	if strings.TrimSpace(input.Type) == "" {
		return nil, writeOutput{}, fmt.Errorf("activity type is required")
	}
	a := models.NewActivity(input.Type)
	if input.Timestamp != "" {
		t, err := parseTime(input.Timestamp)
		if err != nil {
			return nil, writeOutput{}, err
		}
		a.WithTimestamp(t)
	}
	if input.End != "" {
		t, err := parseTime(input.End)
		if err != nil {
			return nil, writeOutput{}, err
		}
		a.WithEnd(t)
	}
	if input.SubType != "" {
		a.SubType = &input.SubType
	}
	if input.Amount > 0 {
		a.WithAmount(input.Amount, input.Unit)
	}
	if input.MedicationName != "" {
		a.MedicationName = &input.MedicationName
	}
	if input.Notes != "" {
		a.WithNotes(input.Notes)
	}

	m, err := models.NewMutation(models.ActionSaveActivity, a)
	if err != nil {
		return nil, writeOutput{}, err
	}
	status, err := s.write(ctx, m)
	if err != nil {
		return nil, writeOutput{}, fmt.Errorf("failed to log activity: %w", err)
	}

	return nil, writeOutput{
		ID:      a.ID[:8],
		Status:  status,
		Message: writeMessage("Logged", fmt.Sprintf("%s (ID: %s)", a.Type, a.ID[:8]), status),
	}, nil
}

func (s *Server) handleListActivities(ctx context.Context, req *mcp.CallToolRequest, input listActivitiesInput) (*mcp.CallToolResult, any, error) {
	if input.Limit <= 0 {
		input.Limit = 20
	}

	snap, err := s.engine.State(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read local state: %w", err)
	}

	var out []models.Activity
	for _, a := range snap.Activities {
		if input.Type != "" && a.Type != input.Type {
			continue
		}
		out = append(out, a)
		if len(out) == input.Limit {
			break
		}
	}

	if len(out) == 0 {
		return nil, map[string]any{"message": "No activities found."}, nil
	}
	return nil, out, nil
}

func (s *Server) handleDeleteActivity(ctx context.Context, req *mcp.CallToolRequest, input deleteActivityInput) (*mcp.CallToolResult, writeOutput, error) {
	snap, err := s.engine.State(ctx)
	if err != nil {
		return nil, writeOutput{}, fmt.Errorf("failed to read local state: %w", err)
	}
	id, err := resolvePrefix(input.ID, snap.Activities)
	if err != nil {
		return nil, writeOutput{}, err
	}

	m, err := models.NewMutation(models.ActionDeleteActivity, models.DeletePayload{ID: id})
	if err != nil {
		return nil, writeOutput{}, err
	}
	status, err := s.write(ctx, m)
	if err != nil {
		return nil, writeOutput{}, fmt.Errorf("failed to delete activity: %w", err)
	}
	return nil, writeOutput{ID: id, Status: status, Message: writeMessage("Deleted", "activity "+id, status)}, nil
}

// resolvePrefix finds the single activity whose id starts with prefix.
func resolvePrefix(prefix string, list []models.Activity) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", errs.Validation("activity id is required")
	}
	var found []string
	for _, a := range list {
		if a.ID == prefix {
			return a.ID, nil
		}
		if strings.HasPrefix(a.ID, prefix) {
			found = append(found, a.ID)
		}
	}
	switch len(found) {
	case 0:
		return "", errs.NotFound("activity", prefix)
	case 1:
		return found[0], nil
	default:
		return "", errs.Validation("activity prefix %q is ambiguous (%d matches)", prefix, len(found))
	}
}

func (s *Server) handleAddGrowth(ctx context.Context, req *mcp.CallToolRequest, input addGrowthInput) (*mcp.CallToolResult, writeOutput, error) {
	g := models.NewGrowthRecord(input.Weight, input.Height)
	if input.Date != "" {
		g.Date = input.Date
	}

	m, err := models.NewMutation(models.ActionSaveGrowthRecord, g)
	if err != nil {
		return nil, writeOutput{}, err
	}
	status, err := s.write(ctx, m)
	if err != nil {
		return nil, writeOutput{}, fmt.Errorf("failed to add growth record: %w", err)
	}
	what := fmt.Sprintf("%.2f kg / %.1f cm on %s", g.Weight, g.Height, g.Date)
	return nil, writeOutput{ID: g.ID[:8], Status: status, Message: writeMessage("Recorded", what, status)}, nil
}

func (s *Server) handleUpdateProfile(ctx context.Context, req *mcp.CallToolRequest, input updateProfileInput) (*mcp.CallToolResult, writeOutput, error) {
	patch := map[string]any{}
	if input.Name != nil {
		patch["name"] = *input.Name
	}
	if input.BirthDate != nil {
		patch["birthDate"] = *input.BirthDate
	}
	if input.Gender != nil {
		patch["gender"] = *input.Gender
	}
	return s.patchSingleton(ctx, models.ActionSaveProfile, "profile", patch)
}

func (s *Server) handleUpdateSettings(ctx context.Context, req *mcp.CallToolRequest, input updateSettingsInput) (*mcp.CallToolResult, writeOutput, error) {
	patch := map[string]any{}
	if input.FeedingIntervalMinutes != nil {
		patch["feedingIntervalMinutes"] = *input.FeedingIntervalMinutes
	}
	if input.NotificationsEnabled != nil {
		patch["notificationsEnabled"] = *input.NotificationsEnabled
	}
	if input.ThemePreference != nil {
		patch["themePreference"] = *input.ThemePreference
	}
	return s.patchSingleton(ctx, models.ActionSaveSettings, "settings", patch)
}

func (s *Server) patchSingleton(ctx context.Context, action models.Action, what string, patch map[string]any) (*mcp.CallToolResult, writeOutput, error) {
	if len(patch) == 0 {
		return nil, writeOutput{}, fmt.Errorf("no %s fields to update", what)
	}
	raw, err := json.Marshal(patch)
	if err != nil {
		return nil, writeOutput{}, err
	}
	status, err := s.write(ctx, models.Mutation{Action: action, Payload: raw})
	if err != nil {
		return nil, writeOutput{}, fmt.Errorf("failed to update %s: %w", what, err)
	}
	return nil, writeOutput{Status: status, Message: writeMessage("Updated", what, status)}, nil
}

func (s *Server) handleSyncNow(ctx context.Context, req *mcp.CallToolRequest, input struct{}) (*mcp.CallToolResult, syncOutput, error) {
	report, err := s.engine.Reconnect(ctx)
	out := syncOutput{
		Applied:   report.Applied,
		Discarded: report.Discarded,
		Remaining: report.Remaining(),
		Offline:   report.Offline,
	}
	if err != nil {
		return nil, syncOutput{}, fmt.Errorf("sync failed: %w", err)
	}
	switch {
	case report.Offline:
		out.Message = "Server unreachable; queued writes kept for later"
	default:
		out.Message = fmt.Sprintf("Sent %d queued writes, %d rejected, %d still pending", report.Applied, report.Discarded, report.Remaining())
	}
	return nil, out, nil
}
