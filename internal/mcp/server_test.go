// ABOUTME: Tests for MCP server, tools, and resources.
// ABOUTME: Drives tool handlers against a real engine with an in-process remote that can go offline.
package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	stdsync "sync"
	"testing"
	"time"

	"github.com/harperreed/cradle/internal/errs"
	"github.com/harperreed/cradle/internal/local"
	"github.com/harperreed/cradle/internal/models"
	"github.com/harperreed/cradle/internal/queue"
	"github.com/harperreed/cradle/internal/session"
	"github.com/harperreed/cradle/internal/storage"
	"github.com/harperreed/cradle/internal/sync"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const testOwner = 7

// fakeRemote forwards to a server-side store unless offline.
type fakeRemote struct {
	db      *storage.DB
	mu      stdsync.Mutex
	offline bool
}

func (r *fakeRemote) setOffline(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offline = v
}

func (r *fakeRemote) Online(context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.offline
}

func (r *fakeRemote) Snapshot(ctx context.Context, owner int64) (*models.Snapshot, error) {
	if !r.Online(ctx) {
		return nil, errs.Transient("snapshot", context.DeadlineExceeded)
	}
	return r.db.GetSnapshot(ctx, owner)
}

func (r *fakeRemote) Execute(ctx context.Context, owner int64, m models.Mutation) error {
	if !r.Online(ctx) {
		return errs.Transient(string(m.Action), context.DeadlineExceeded)
	}
	return storage.Execute(ctx, r.db, owner, m)
}

// setupTestServer builds an MCP server over a fresh engine and server store.
func setupTestServer(t *testing.T) (*Server, *fakeRemote) {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "server.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := local.OpenInMemory()
	if err != nil {
		t.Fatalf("Failed to open local store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	sess, err := session.New(testOwner, "mcp-test")
	if err != nil {
		t.Fatalf("session.New failed: %v", err)
	}

	remote := &fakeRemote{db: db}
	engine := sync.NewEngine(sess, store, queue.New(store, remote, nil), remote)
	server, err := NewServer(engine, nil)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return server, remote
}

func TestNewServer(t *testing.T) {
	server, _ := setupTestServer(t)
	if server.mcpServer == nil {
		t.Error("Expected non-nil mcpServer")
	}
	if server.engine == nil {
		t.Error("Expected non-nil engine")
	}

	if _, err := NewServer(nil, nil); err == nil {
		t.Error("Expected error for nil engine")
	}
}

func TestHandleLogActivity(t *testing.T) {
	server, remote := setupTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		input     logActivityInput
		wantErr   bool
		errSubstr string
	}{
		{
			name:  "bottle feeding",
			input: logActivityInput{Type: "feeding", SubType: "bottle", Amount: 120, Unit: "ml"},
		},
		{
			name:  "sleep with end",
			input: logActivityInput{Type: "sleep", Timestamp: "2025-01-31T01:00:00Z", End: "2025-01-31T03:30:00Z"},
		},
		{
			name:  "simple timestamp",
			input: logActivityInput{Type: "diaper", Timestamp: "2025-01-31 08:00", Notes: "wet"},
		},
		{
			name:      "missing type",
			input:     logActivityInput{},
			wantErr:   true,
			errSubstr: "type is required",
		},
		{
			name:      "bad timestamp",
			input:     logActivityInput{Type: "feeding", Timestamp: "yesterday"},
			wantErr:   true,
			errSubstr: "not ISO 8601",
		},
		{
			name:      "end before start",
			input:     logActivityInput{Type: "sleep", Timestamp: "2025-01-31T03:00:00Z", End: "2025-01-31T01:00:00Z"},
			wantErr:   true,
			errSubstr: "ends before it starts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, output, err := server.handleLogActivity(ctx, &mcp.CallToolRequest{}, tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errSubstr) {
					t.Errorf("Error %q should contain %q", err.Error(), tt.errSubstr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if output.Status != "synced" {
				t.Errorf("Status = %q, want synced", output.Status)
			}
			if len(output.ID) != 8 {
				t.Errorf("ID = %q, want 8-char prefix", output.ID)
			}
		})
	}

	list, err := remote.db.ListActivities(ctx, testOwner, storage.ActivityFilter{})
	if err != nil {
		t.Fatalf("ListActivities failed: %v", err)
	}
	if len(list) != 3 {
		t.Errorf("server has %d activities, want 3", len(list))
	}
}

func TestHandleLogActivityOfflineQueues(t *testing.T) {
	server, remote := setupTestServer(t)
	ctx := context.Background()
	remote.setOffline(true)

	_, output, err := server.handleLogActivity(ctx, &mcp.CallToolRequest{}, logActivityInput{Type: "feeding"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if output.Status != "queued" {
		t.Errorf("Status = %q, want queued", output.Status)
	}
	if !strings.Contains(output.Message, "queued") {
		t.Errorf("Message %q should mention the queue", output.Message)
	}

	// Visible locally while offline.
	_, listed, err := server.handleListActivities(ctx, &mcp.CallToolRequest{}, listActivitiesInput{})
	if err != nil {
		t.Fatalf("handleListActivities failed: %v", err)
	}
	if acts, ok := listed.([]models.Activity); !ok || len(acts) != 1 {
		t.Errorf("local list = %#v, want one activity", listed)
	}

	// Sync while still offline keeps the entry.
	_, out, err := server.handleSyncNow(ctx, &mcp.CallToolRequest{}, struct{}{})
	if err != nil {
		t.Fatalf("handleSyncNow failed: %v", err)
	}
	if !out.Offline || out.Applied != 0 {
		t.Errorf("offline sync = %+v", out)
	}

	remote.setOffline(false)
	_, out, err = server.handleSyncNow(ctx, &mcp.CallToolRequest{}, struct{}{})
	if err != nil {
		t.Fatalf("handleSyncNow failed: %v", err)
	}
	if out.Applied != 1 || out.Remaining != 0 {
		t.Errorf("online sync = %+v, want 1 applied", out)
	}

	list, _ := remote.db.ListActivities(ctx, testOwner, storage.ActivityFilter{})
	if len(list) != 1 {
		t.Errorf("server has %d activities, want 1", len(list))
	}
}

func TestHandleListActivities(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	_, empty, err := server.handleListActivities(ctx, &mcp.CallToolRequest{}, listActivitiesInput{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, ok := empty.(map[string]any); !ok {
		t.Errorf("empty list should return a message map, got %T", empty)
	}

	base := time.Date(2025, 1, 31, 8, 0, 0, 0, time.UTC)
	for i, typ := range []string{"feeding", "diaper", "feeding"} {
		ts := base.Add(time.Duration(i) * time.Hour).Format(time.RFC3339)
		if _, _, err := server.handleLogActivity(ctx, &mcp.CallToolRequest{}, logActivityInput{Type: typ, Timestamp: ts}); err != nil {
			t.Fatalf("log %s: %v", typ, err)
		}
	}

	tests := []struct {
		name  string
		input listActivitiesInput
		want  int
	}{
		{"all", listActivitiesInput{}, 3},
		{"limit", listActivitiesInput{Limit: 2}, 2},
		{"by type", listActivitiesInput{Type: "feeding"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, out, err := server.handleListActivities(ctx, &mcp.CallToolRequest{}, tt.input)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			acts, ok := out.([]models.Activity)
			if !ok || len(acts) != tt.want {
				t.Fatalf("got %#v, want %d activities", out, tt.want)
			}
			if !acts[0].Timestamp.After(acts[len(acts)-1].Timestamp) && len(acts) > 1 {
				t.Error("Expected newest first")
			}
		})
	}
}

func TestHandleDeleteActivity(t *testing.T) {
	server, remote := setupTestServer(t)
	ctx := context.Background()

	_, logged, err := server.handleLogActivity(ctx, &mcp.CallToolRequest{}, logActivityInput{Type: "bath"})
	if err != nil {
		t.Fatalf("log failed: %v", err)
	}

	if _, _, err := server.handleDeleteActivity(ctx, &mcp.CallToolRequest{}, deleteActivityInput{ID: "zzzz"}); err == nil {
		t.Error("Expected not-found error for unknown prefix")
	}

	_, out, err := server.handleDeleteActivity(ctx, &mcp.CallToolRequest{}, deleteActivityInput{ID: logged.ID})
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if out.Status != "synced" {
		t.Errorf("Status = %q", out.Status)
	}

	list, _ := remote.db.ListActivities(ctx, testOwner, storage.ActivityFilter{})
	if len(list) != 0 {
		t.Errorf("server still has %d activities", len(list))
	}
}

func TestResolvePrefixAmbiguous(t *testing.T) {
	list := []models.Activity{{ID: "abc-1"}, {ID: "abc-2"}, {ID: "def"}}
	if _, err := resolvePrefix("abc", list); err == nil {
		t.Error("Expected ambiguous prefix error")
	}
	if id, err := resolvePrefix("abc-2", list); err != nil || id != "abc-2" {
		t.Errorf("resolvePrefix exact = %q, %v", id, err)
	}
	if id, err := resolvePrefix("de", list); err != nil || id != "def" {
		t.Errorf("resolvePrefix unique = %q, %v", id, err)
	}
}

func TestHandleAddGrowth(t *testing.T) {
	server, remote := setupTestServer(t)
	ctx := context.Background()

	_, out, err := server.handleAddGrowth(ctx, &mcp.CallToolRequest{}, addGrowthInput{Weight: 4.2, Height: 55, Date: "2025-01-15"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(out.Message, "2025-01-15") {
		t.Errorf("Message = %q", out.Message)
	}

	if _, _, err := server.handleAddGrowth(ctx, &mcp.CallToolRequest{}, addGrowthInput{Weight: 4.2, Date: "15/01/2025"}); err == nil {
		t.Error("Expected validation error for bad date")
	}

	list, _ := remote.db.ListGrowthRecords(ctx, testOwner)
	if len(list) != 1 {
		t.Errorf("server has %d growth records, want 1", len(list))
	}
}

func TestHandleUpdateProfileAndSettings(t *testing.T) {
	server, remote := setupTestServer(t)
	ctx := context.Background()

	name := "Ada"
	if _, _, err := server.handleUpdateProfile(ctx, &mcp.CallToolRequest{}, updateProfileInput{Name: &name}); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	born := "2024-12-01"
	if _, _, err := server.handleUpdateProfile(ctx, &mcp.CallToolRequest{}, updateProfileInput{BirthDate: &born}); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	p, err := remote.db.GetProfile(ctx, testOwner)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if p.Name != "Ada" || p.BirthDate != born {
		t.Errorf("profile = %+v, want both fields kept", p)
	}

	if _, _, err := server.handleUpdateProfile(ctx, &mcp.CallToolRequest{}, updateProfileInput{}); err == nil {
		t.Error("Expected error for empty profile update")
	}

	interval := 150
	if _, _, err := server.handleUpdateSettings(ctx, &mcp.CallToolRequest{}, updateSettingsInput{FeedingIntervalMinutes: &interval}); err != nil {
		t.Fatalf("update settings: %v", err)
	}
	st, err := remote.db.GetSettings(ctx, testOwner)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if st.FeedingIntervalMinutes != 150 {
		t.Errorf("FeedingIntervalMinutes = %d", st.FeedingIntervalMinutes)
	}

	theme := "neon"
	if _, _, err := server.handleUpdateSettings(ctx, &mcp.CallToolRequest{}, updateSettingsInput{ThemePreference: &theme}); err == nil {
		t.Error("Expected validation error for unknown theme")
	}
}

func readJSON(t *testing.T, res *mcp.ReadResourceResult) map[string]any {
	t.Helper()
	if res == nil || len(res.Contents) != 1 {
		t.Fatalf("unexpected resource result %#v", res)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(res.Contents[0].Text), &out); err != nil {
		t.Fatalf("resource is not JSON: %v", err)
	}
	return out
}

func TestTodayResourceFiltersOldData(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()
	now := time.Now()

	for _, ts := range []time.Time{now, now.Add(-48 * time.Hour)} {
		if _, _, err := server.handleLogActivity(ctx, &mcp.CallToolRequest{}, logActivityInput{Type: "feeding", Timestamp: ts.Format(time.RFC3339)}); err != nil {
			t.Fatalf("log failed: %v", err)
		}
	}

	res, err := server.today(ctx, now)
	if err != nil {
		t.Fatalf("today failed: %v", err)
	}
	out := readJSON(t, res)
	if acts := out["activities"].([]any); len(acts) != 1 {
		t.Errorf("today has %d activities, want 1", len(acts))
	}
	if counts := out["counts"].(map[string]any); counts["feeding"] != float64(1) {
		t.Errorf("counts = %v", counts)
	}
}

func TestSummaryResource(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	res, err := server.handleSummaryResource(ctx, &mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	out := readJSON(t, res)
	if out["latest_growth"] != nil {
		t.Errorf("empty summary latest_growth = %v", out["latest_growth"])
	}

	base := time.Date(2025, 1, 31, 8, 0, 0, 0, time.UTC)
	for i, note := range []string{"first", "second"} {
		in := logActivityInput{Type: "feeding", Notes: note, Timestamp: base.Add(time.Duration(i) * time.Hour).Format(time.RFC3339)}
		if _, _, err := server.handleLogActivity(ctx, &mcp.CallToolRequest{}, in); err != nil {
			t.Fatalf("log failed: %v", err)
		}
	}

	res, err = server.handleSummaryResource(ctx, &mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	out = readJSON(t, res)
	latest := out["latest_activities"].(map[string]any)["feeding"].(map[string]any)
	if latest["notes"] != "second" {
		t.Errorf("latest feeding notes = %v, want second", latest["notes"])
	}
}

func TestQueueResource(t *testing.T) {
	server, remote := setupTestServer(t)
	ctx := context.Background()
	remote.setOffline(true)

	if _, _, err := server.handleLogActivity(ctx, &mcp.CallToolRequest{}, logActivityInput{Type: "pumping"}); err != nil {
		t.Fatalf("log failed: %v", err)
	}

	res, err := server.handleQueueResource(ctx, &mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatalf("queue failed: %v", err)
	}
	out := readJSON(t, res)
	if out["pending"] != float64(1) {
		t.Errorf("pending = %v, want 1", out["pending"])
	}
	entry := out["entries"].([]any)[0].(map[string]any)
	if entry["action"] != string(models.ActionSaveActivity) {
		t.Errorf("queued action = %v", entry["action"])
	}
}
