// ABOUTME: Tests for CLI helper functions and command execution.
// ABOUTME: Runs commands end to end against an in-process server and a temp device store.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harperreed/cradle/internal/models"
	"github.com/harperreed/cradle/internal/server"
	"github.com/harperreed/cradle/internal/storage"
	cradlesync "github.com/harperreed/cradle/internal/sync"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const testOwner int64 = 1

var testSecret = []byte("cli-test-secret")

func TestParseTime(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "date and time with space", input: "2025-01-31 08:30"},
		{name: "date and time with T", input: "2025-01-31T08:30"},
		{name: "date only", input: "2025-01-31"},
		{name: "RFC3339", input: "2025-01-31T08:30:00Z"},
		{name: "RFC3339 with offset", input: "2025-01-31T08:30:00+05:00"},
		{name: "invalid format", input: "31-01-2025", wantErr: true},
		{name: "invalid random string", input: "not a date", wantErr: true},
		{name: "empty string", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseTime(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseTime(%q) expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Errorf("parseTime(%q) unexpected error: %v", tt.input, err)
				return
			}
			if result.IsZero() {
				t.Errorf("parseTime(%q) returned zero time", tt.input)
			}
		})
	}
}

func TestParseTimeValues(t *testing.T) {
	result, err := parseTime("2025-06-15 07:45")
	if err != nil {
		t.Fatalf("parseTime failed: %v", err)
	}
	if result.Year() != 2025 || result.Month() != time.June || result.Day() != 15 {
		t.Errorf("parseTime returned wrong date: got %v", result)
	}
	if result.Hour() != 7 || result.Minute() != 45 {
		t.Errorf("parseTime returned wrong time: got %v", result)
	}
	if result.Location() != time.Local {
		t.Errorf("expected local time, got %v", result.Location())
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{name: "short string no truncation", input: "hello", maxLen: 10, want: "hello"},
		{name: "exact length", input: "hello", maxLen: 5, want: "hello"},
		{name: "needs truncation", input: "hello world this is long", maxLen: 10, want: "hello w..."},
		{name: "empty string", input: "", maxLen: 5, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestPadRight(t *testing.T) {
	tests := []struct {
		input  string
		length int
		want   string
	}{
		{"abc", 6, "abc   "},
		{"abcdef", 3, "abcdef"},
		{"", 2, "  "},
	}
	for _, tt := range tests {
		if got := padRight(tt.input, tt.length); got != tt.want {
			t.Errorf("padRight(%q, %d) = %q, want %q", tt.input, tt.length, got, tt.want)
		}
	}
}

func TestFindByPrefix(t *testing.T) {
	list := []models.Activity{{ID: "abc123"}, {ID: "abd456"}, {ID: "abc"}}
	id := func(a models.Activity) string { return a.ID }

	tests := []struct {
		name    string
		prefix  string
		want    string
		wantErr string
	}{
		{name: "exact match wins over prefix", prefix: "abc", want: "abc"},
		{name: "unique prefix", prefix: "abd", want: "abd456"},
		{name: "full id", prefix: "abc123", want: "abc123"},
		{name: "ambiguous", prefix: "ab", wantErr: "matches 3 records"},
		{name: "missing", prefix: "zzz", wantErr: "not found"},
		{name: "empty", prefix: "  ", wantErr: "id is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := findByPrefix(tt.prefix, list, id)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.ID != tt.want {
				t.Errorf("got %q, want %q", got.ID, tt.want)
			}
		})
	}
}

func TestFilterActivities(t *testing.T) {
	base := time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)
	list := []models.Activity{
		{ID: "a4", Type: models.ActivityFeeding, Timestamp: base.Add(3 * time.Hour)},
		{ID: "a3", Type: models.ActivitySleep, Timestamp: base.Add(2 * time.Hour)},
		{ID: "a2", Type: models.ActivityFeeding, Timestamp: base.Add(time.Hour)},
		{ID: "a1", Type: models.ActivityFeeding, Timestamp: base.Add(-24 * time.Hour)},
	}

	got := filterActivities(list, models.ActivityFeeding, base, 0)
	if len(got) != 2 || got[0].ID != "a4" || got[1].ID != "a2" {
		t.Errorf("type+since filter = %v", got)
	}

	got = filterActivities(list, "", time.Time{}, 2)
	if len(got) != 2 || got[0].ID != "a4" {
		t.Errorf("limit filter = %v", got)
	}
}

func TestActivitySummary(t *testing.T) {
	start := time.Date(2025, 1, 31, 13, 0, 0, 0, time.UTC)
	a := models.NewActivity(models.ActivitySleep).WithTimestamp(start).WithEnd(start.Add(90 * time.Minute))
	if got := activitySummary(*a); got != " 1h30m0s" {
		t.Errorf("sleep summary = %q", got)
	}

	sub := "bottle"
	f := models.NewActivity(models.ActivityFeeding).WithAmount(120, "ml")
	f.SubType = &sub
	if got := activitySummary(*f); got != " bottle, 120 ml" {
		t.Errorf("feeding summary = %q", got)
	}

	if got := activitySummary(*models.NewActivity(models.ActivityBath)); got != "" {
		t.Errorf("bare summary = %q", got)
	}
}

func TestDocumentFromSnapshot(t *testing.T) {
	now := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	snap := &models.Snapshot{Activities: []models.Activity{{ID: "a1"}}}
	doc := documentFromSnapshot(snap, now)
	if doc.Version != models.DocumentVersion {
		t.Errorf("version = %q", doc.Version)
	}
	if doc.Timestamp != "2025-02-01T09:00:00Z" {
		t.Errorf("timestamp = %q", doc.Timestamp)
	}
	if err := doc.Validate(); err != nil {
		t.Errorf("document should validate: %v", err)
	}
	if len(doc.Activities) != 1 {
		t.Errorf("activities = %d", len(doc.Activities))
	}
}

func TestCommandAliases(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"log"}, "add"},
		{[]string{"ls"}, "list"},
		{[]string{"rm"}, "delete"},
		{[]string{"g"}, "growth"},
		{[]string{"s"}, "sync"},
		{[]string{"remind"}, "schedule"},
	}
	for _, tt := range tests {
		cmd, _, err := rootCmd.Find(tt.args)
		if err != nil {
			t.Errorf("Find(%v): %v", tt.args, err)
			continue
		}
		if cmd.Name() != tt.want {
			t.Errorf("Find(%v) = %q, want %q", tt.args, cmd.Name(), tt.want)
		}
	}
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		cmd       *cobra.Command
		flag      string
		shorthand string
		def       string
	}{
		{addCmd, "at", "", ""},
		{addCmd, "amount", "", "0"},
		{listCmd, "type", "t", ""},
		{listCmd, "limit", "n", "20"},
		{exportCmd, "output", "o", ""},
		{syncResetCmd, "yes", "y", "false"},
		{installSkillCmd, "yes", "y", "false"},
		{migrateCmd, "dry-run", "", "false"},
		{serveCmd, "addr", "", ""},
		{scheduleAddCmd, "tz", "", ""},
	}
	for _, tt := range tests {
		f := tt.cmd.Flags().Lookup(tt.flag)
		if f == nil {
			t.Errorf("%s: expected --%s flag", tt.cmd.Name(), tt.flag)
			continue
		}
		if f.Shorthand != tt.shorthand {
			t.Errorf("%s --%s: shorthand %q, want %q", tt.cmd.Name(), tt.flag, f.Shorthand, tt.shorthand)
		}
		if f.DefValue != tt.def {
			t.Errorf("%s --%s: default %q, want %q", tt.cmd.Name(), tt.flag, f.DefValue, tt.def)
		}
	}
}

func TestSkillEmbeddedContent(t *testing.T) {
	content, err := skillFS.ReadFile("skill/SKILL.md")
	if err != nil {
		t.Fatalf("Failed to read embedded skill: %v", err)
	}
	s := string(content)
	if !strings.HasPrefix(s, "---") {
		t.Error("Expected SKILL.md to start with YAML frontmatter (---)")
	}
	for _, marker := range []string{
		"name: cradle",
		"description:",
		"mcp__cradle__log_activity",
		"mcp__cradle__sync_now",
		"## When to use cradle",
	} {
		if !strings.Contains(s, marker) {
			t.Errorf("Expected SKILL.md to contain %q", marker)
		}
	}
}

func TestInstallSkillWritesFile(t *testing.T) {
	resetFlags()
	syncConfirm = true
	t.Cleanup(func() { syncConfirm = false })

	dir := filepath.Join(t.TempDir(), ".claude", "skills", "cradle")
	if err := installSkill(dir); err != nil {
		t.Fatalf("installSkill: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "SKILL.md"))
	if err != nil {
		t.Fatalf("skill file not written: %v", err)
	}
	if !strings.Contains(string(data), "name: cradle") {
		t.Error("installed skill has wrong content")
	}
}

// testEnv is an in-process server plus isolated XDG directories.
type testEnv struct {
	db      *storage.DB
	url     string
	offline *atomic.Bool
}

// setupTestCLI starts a server backed by a temp database and links the
// device to it.
func setupTestCLI(t *testing.T) *testEnv {
	t.Helper()
	env := setupUnlinkedCLI(t)

	token, err := server.IssueToken(testSecret, testOwner, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if err := cradlesync.SaveConfig(&cradlesync.Config{Server: env.url, OwnerID: testOwner, Token: token}); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	return env
}

func setupUnlinkedCLI(t *testing.T) *testEnv {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmp, "data"))
	t.Setenv("CRADLE_SERVER_URL", "")
	t.Setenv("CRADLE_TOKEN", "")
	t.Setenv("CRADLE_OWNER_ID", "")

	db, err := storage.Open(filepath.Join(tmp, "server.db"))
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	srv, err := server.New(db, nil, server.Config{JWTSecret: testSecret})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}

	offline := &atomic.Bool{}
	handler := srv.Handler()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if offline.Load() {
			http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
			return
		}
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)

	return &testEnv{db: db, url: ts.URL, offline: offline}
}

// resetFlags restores every flag to its default so runs do not leak state.
func resetFlags() {
	var walk func(c *cobra.Command)
	walk = func(c *cobra.Command) {
		c.Flags().VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
		for _, sub := range c.Commands() {
			walk(sub)
		}
	}
	walk(rootCmd)
}

func runCLI(t *testing.T, args ...string) error {
	t.Helper()
	resetFlags()
	rootCmd.SetArgs(args)
	return Execute()
}

func mustRun(t *testing.T, args ...string) {
	t.Helper()
	if err := runCLI(t, args...); err != nil {
		t.Fatalf("cradle %s: %v", strings.Join(args, " "), err)
	}
}

func serverActivities(t *testing.T, env *testEnv) []models.Activity {
	t.Helper()
	list, err := env.db.ListActivities(context.Background(), testOwner, storage.ActivityFilter{})
	if err != nil {
		t.Fatalf("ListActivities: %v", err)
	}
	return list
}

func TestCommandsRequireLogin(t *testing.T) {
	setupUnlinkedCLI(t)
	err := runCLI(t, "list")
	if err == nil || !strings.Contains(err.Error(), "cradle sync login") {
		t.Fatalf("expected login hint, got %v", err)
	}
}

func TestSyncLoginSavesConfig(t *testing.T) {
	env := setupUnlinkedCLI(t)
	token, err := server.IssueToken(testSecret, testOwner, time.Hour, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	mustRun(t, "sync", "login", "--server", env.url+"/", "--token", token, "--owner", "1")

	cfg, err := cradlesync.LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.IsConfigured() {
		t.Fatal("expected config to be saved")
	}
	if cfg.Server != env.url {
		t.Errorf("server = %q, want trailing slash trimmed", cfg.Server)
	}
	if cfg.DeviceID == "" {
		t.Error("expected a device id")
	}

	mustRun(t, "sync", "logout")
	if _, err := os.Stat(cradlesync.ConfigPath()); !os.IsNotExist(err) {
		t.Errorf("expected sync config removed, got %v", err)
	}
}

func TestSyncLoginRequiresAllFields(t *testing.T) {
	setupUnlinkedCLI(t)
	if err := runCLI(t, "sync", "login", "--server", "http://localhost:1"); err == nil {
		t.Fatal("expected error without token and owner")
	}
}

func TestAddListDeleteFlow(t *testing.T) {
	env := setupTestCLI(t)

	mustRun(t, "add", "feeding", "--sub", "bottle", "--amount", "120", "--unit", "ml", "--at", "2025-01-31 07:00")

	list := serverActivities(t, env)
	if len(list) != 1 {
		t.Fatalf("expected 1 activity on the server, got %d", len(list))
	}
	a := list[0]
	if a.Type != models.ActivityFeeding || a.SubType == nil || *a.SubType != "bottle" {
		t.Errorf("unexpected activity %+v", a)
	}
	if a.Amount == nil || *a.Amount != 120 || a.Unit == nil || *a.Unit != "ml" {
		t.Errorf("unexpected amount %+v", a)
	}

	mustRun(t, "list", "--type", "feeding")

	mustRun(t, "delete", a.ID[:8])
	if n := len(serverActivities(t, env)); n != 0 {
		t.Errorf("expected activity deleted on the server, %d left", n)
	}
}

func TestAddRejectsInvalidActivity(t *testing.T) {
	env := setupTestCLI(t)

	err := runCLI(t, "add", "sleep", "--at", "2025-01-31 14:00", "--end", "2025-01-31 13:00")
	if err == nil {
		t.Fatal("expected end-before-start to be rejected")
	}
	if n := len(serverActivities(t, env)); n != 0 {
		t.Errorf("nothing should reach the server, got %d", n)
	}
}

func TestOfflineAddQueuesUntilSyncNow(t *testing.T) {
	env := setupTestCLI(t)
	env.offline.Store(true)

	mustRun(t, "add", "diaper", "--sub", "wet")
	if n := len(serverActivities(t, env)); n != 0 {
		t.Fatalf("server should not see the write while offline, got %d", n)
	}

	c, err := openClient()
	if err != nil {
		t.Fatal(err)
	}
	entries, err := c.engine.Queued(context.Background())
	closeClient()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Action != models.ActionSaveActivity {
		t.Fatalf("expected one queued save, got %+v", entries)
	}

	// Still offline: the queue is kept.
	mustRun(t, "sync", "now")
	if n := len(serverActivities(t, env)); n != 0 {
		t.Fatalf("server should still be empty, got %d", n)
	}

	env.offline.Store(false)
	mustRun(t, "sync", "now")
	if n := len(serverActivities(t, env)); n != 1 {
		t.Fatalf("expected queued write applied, got %d", n)
	}

	mustRun(t, "sync", "queue")
	mustRun(t, "sync", "status")
}

func TestClearQueueDropsWrites(t *testing.T) {
	env := setupTestCLI(t)
	env.offline.Store(true)
	mustRun(t, "add", "bath")

	mustRun(t, "sync", "clear-queue", "--yes")

	env.offline.Store(false)
	mustRun(t, "sync", "now")
	if n := len(serverActivities(t, env)); n != 0 {
		t.Errorf("cleared write should never reach the server, got %d", n)
	}
}

func TestSyncPullSendsQueuedWritesFirst(t *testing.T) {
	env := setupTestCLI(t)
	ctx := context.Background()
	if _, err := env.db.SaveSettings(ctx, testOwner, json.RawMessage(`{"themePreference":"light"}`)); err != nil {
		t.Fatal(err)
	}

	env.offline.Store(true)
	mustRun(t, "settings", "set", "--theme", "dark")

	env.offline.Store(false)
	mustRun(t, "sync", "pull")

	settings, err := env.db.GetSettings(ctx, testOwner)
	if err != nil {
		t.Fatal(err)
	}
	if settings.ThemePreference != models.ThemeDark {
		t.Errorf("server theme = %q, want the queued patch applied", settings.ThemePreference)
	}

	c, err := openClient()
	if err != nil {
		t.Fatal(err)
	}
	defer closeClient()
	state, err := c.engine.State(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if state.Settings == nil || state.Settings.ThemePreference != models.ThemeDark {
		t.Errorf("local settings = %+v, want dark theme kept", state.Settings)
	}
	entries, err := c.engine.Queued(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty queue after pull, got %d entries", len(entries))
	}
}

func TestProfileAndSettingsSet(t *testing.T) {
	env := setupTestCLI(t)
	ctx := context.Background()

	mustRun(t, "profile", "set", "--name", "Ada", "--birth-date", "2024-12-01")
	mustRun(t, "profile", "set", "--gender", "female")

	p, err := env.db.GetProfile(ctx, testOwner)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Ada" || p.BirthDate != "2024-12-01" || p.Gender != "female" {
		t.Errorf("profile patches should merge, got %+v", p)
	}

	mustRun(t, "settings", "set", "--feeding-interval", "150", "--theme", "dark")
	s, err := env.db.GetSettings(ctx, testOwner)
	if err != nil {
		t.Fatal(err)
	}
	if s.FeedingIntervalMinutes != 150 || s.ThemePreference != "dark" {
		t.Errorf("unexpected settings %+v", s)
	}

	if err := runCLI(t, "settings", "set", "--theme", "neon"); err == nil {
		t.Error("expected invalid theme to be rejected")
	}
	if err := runCLI(t, "profile", "set"); err == nil {
		t.Error("expected an error when no flags are given")
	}

	mustRun(t, "profile")
	mustRun(t, "settings")
}

func TestGrowthAndCustomActivities(t *testing.T) {
	env := setupTestCLI(t)
	ctx := context.Background()

	mustRun(t, "growth", "add", "4.2", "55", "--date", "2025-02-14")
	growth, err := env.db.ListGrowthRecords(ctx, testOwner)
	if err != nil {
		t.Fatal(err)
	}
	if len(growth) != 1 || growth[0].Weight != 4.2 || growth[0].Date != "2025-02-14" {
		t.Fatalf("unexpected growth records %+v", growth)
	}

	if err := runCLI(t, "growth", "add", "heavy"); err == nil {
		t.Error("expected invalid weight to fail")
	}

	mustRun(t, "growth", "delete", growth[0].ID[:8])
	growth, err = env.db.ListGrowthRecords(ctx, testOwner)
	if err != nil {
		t.Fatal(err)
	}
	if len(growth) != 0 {
		t.Errorf("expected growth record deleted, got %d", len(growth))
	}

	mustRun(t, "custom", "add", "Vitamin D", "--icon", "pill")
	custom, err := env.db.ListCustomActivities(ctx, testOwner)
	if err != nil {
		t.Fatal(err)
	}
	if len(custom) != 1 || custom[0].Name != "Vitamin D" {
		t.Fatalf("unexpected custom activities %+v", custom)
	}
	mustRun(t, "custom", "list")
}

func TestScheduleCommands(t *testing.T) {
	env := setupTestCLI(t)
	ctx := context.Background()

	mustRun(t, "schedule", "add", models.ScheduleMedication, "0 9 * * *", "--tz", "Europe/Berlin", "--message", "Vitamin D")

	list, err := env.db.ListSchedules(ctx, testOwner)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 schedule, got %d", len(list))
	}
	s := list[0]
	if s.ScheduleData.Timezone != "Europe/Berlin" || s.ScheduleData.Message != "Vitamin D" {
		t.Errorf("unexpected schedule data %+v", s.ScheduleData)
	}
	if s.NextRun == nil {
		t.Error("expected next run to be computed")
	}

	if err := runCLI(t, "schedule", "add", models.ScheduleCustom, "not a cron"); err == nil {
		t.Error("expected invalid cron to be rejected")
	}

	mustRun(t, "schedule", "list")
	mustRun(t, "schedule", "delete", s.ID[:8])
	list, err = env.db.ListSchedules(ctx, testOwner)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("expected schedule deleted, got %d", len(list))
	}
}

func TestExportAndImport(t *testing.T) {
	env := setupTestCLI(t)
	dir := t.TempDir()

	mustRun(t, "add", "feeding", "--at", "2025-01-31 07:00")
	mustRun(t, "add", "sleep", "--at", "2025-01-31 08:00", "--end", "2025-01-31 09:00")

	out := filepath.Join(dir, "backup.json")
	mustRun(t, "export", "json", "-o", out)
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := models.DecodeDocument(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Activities) != 2 {
		t.Fatalf("expected 2 exported activities, got %d", len(doc.Activities))
	}

	localOut := filepath.Join(dir, "local.md")
	mustRun(t, "export", "markdown", "--local", "-o", localOut)
	md, err := os.ReadFile(localOut)
	if err != nil {
		t.Fatal(err)
	}
	if len(md) == 0 {
		t.Error("expected markdown output")
	}

	if err := runCLI(t, "export", "csv"); err == nil {
		t.Error("expected unknown format to fail")
	}

	// Importing a one-activity document replaces the account.
	doc.Activities = doc.Activities[:1]
	trimmed, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	in := filepath.Join(dir, "trimmed.json")
	if err := os.WriteFile(in, trimmed, 0600); err != nil {
		t.Fatal(err)
	}
	mustRun(t, "import", in)

	if n := len(serverActivities(t, env)); n != 1 {
		t.Errorf("expected import to replace the account, got %d activities", n)
	}

	c, err := openClient()
	if err != nil {
		t.Fatal(err)
	}
	snap, err := c.engine.State(context.Background())
	closeClient()
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Activities) != 1 {
		t.Errorf("expected device reset to the imported data, got %d activities", len(snap.Activities))
	}
}

func TestImportRejectsMissingVersion(t *testing.T) {
	setupTestCLI(t)
	in := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(in, []byte(`{"timestamp":"2025-01-31T00:00:00Z"}`), 0600); err != nil {
		t.Fatal(err)
	}
	if err := runCLI(t, "import", in); err == nil {
		t.Fatal("expected missing version to be rejected")
	}
}

func TestWipeDeletesEverything(t *testing.T) {
	env := setupTestCLI(t)
	mustRun(t, "add", "feeding")
	mustRun(t, "sync", "wipe", "--yes")

	if n := len(serverActivities(t, env)); n != 0 {
		t.Errorf("expected server data deleted, got %d", n)
	}
	c, err := openClient()
	if err != nil {
		t.Fatal(err)
	}
	snap, err := c.engine.State(context.Background())
	closeClient()
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Activities) != 0 {
		t.Errorf("expected local data deleted, got %d", len(snap.Activities))
	}
}

func TestTokenCommand(t *testing.T) {
	setupUnlinkedCLI(t)
	t.Setenv("CRADLE_JWT_SECRET", string(testSecret))

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	t.Cleanup(func() { rootCmd.SetOut(nil) })

	mustRun(t, "token", "42")
	owner, err := server.ParseToken(testSecret, strings.TrimSpace(buf.String()))
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if owner != 42 {
		t.Errorf("owner = %d, want 42", owner)
	}

	if err := runCLI(t, "token", "zero"); err == nil {
		t.Error("expected invalid owner to fail")
	}
}

func TestMigrateCommand(t *testing.T) {
	setupUnlinkedCLI(t)
	ctx := context.Background()
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.db")
	dstPath := filepath.Join(dir, "dst.db")

	src, err := storage.Open(srcPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := src.SaveActivity(ctx, 1, models.NewActivity(models.ActivityFeeding)); err != nil {
		t.Fatal(err)
	}
	src.Close()

	mustRun(t, "migrate", "--from", srcPath, "--to", dstPath, "--owner", "1", "--dry-run")
	if _, err := os.Stat(dstPath); !os.IsNotExist(err) {
		t.Errorf("dry run should not create the destination, got %v", err)
	}

	mustRun(t, "migrate", "--from", srcPath, "--to", dstPath, "--owner", "1", "--to-owner", "2")

	dst, err := storage.Open(dstPath)
	if err != nil {
		t.Fatal(err)
	}
	defer dst.Close()
	list, err := dst.ListActivities(ctx, 2, storage.ActivityFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 migrated activity for owner 2, got %d", len(list))
	}

	if err := runCLI(t, "migrate", "--owner", "1"); err == nil {
		t.Error("expected --from to be required")
	}
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	t.Cleanup(func() { rootCmd.SetOut(nil) })

	if err := runCLI(t, "version"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "cradle "+version) {
		t.Errorf("unexpected version output %q", buf.String())
	}
}
