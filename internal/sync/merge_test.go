// ABOUTME: Tests for the snapshot merge policy.
// ABOUTME: Unsynced local records survive, synced ones take the server copy, singletons follow the server.
package sync

import (
	"testing"
	"time"

	"github.com/harperreed/cradle/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

func ids(list []models.Activity) []string {
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.ID
	}
	return out
}

func TestMergeKeepsUnsyncedLocalRecords(t *testing.T) {
	local := &models.Snapshot{
		Activities:    []models.Activity{*activityAt("Y", models.ActivityFeeding, t0)},
		GrowthRecords: []models.GrowthRecord{{ID: "g-local", Date: "2024-01-02"}},
	}
	server := &models.Snapshot{
		Activities:    []models.Activity{*activityAt("X", models.ActivitySleep, t0.Add(-time.Hour))},
		GrowthRecords: []models.GrowthRecord{{ID: "g-server", Date: "2024-01-01"}},
	}

	merged := MergeSnapshot(local, server, Policy{})
	assert.Equal(t, []string{"Y", "X"}, ids(merged.Activities))
	require.Len(t, merged.GrowthRecords, 2)
	assert.Equal(t, "g-local", merged.GrowthRecords[0].ID)
}

func TestMergeReplacesSyncedRecordsWithServerVersion(t *testing.T) {
	local := &models.Snapshot{
		Activities:       []models.Activity{*activityAt("Z", models.ActivityFeeding, t0).WithNotes("local edit")},
		CustomActivities: []models.CustomActivity{{ID: "c1", Name: "Local name"}},
	}
	serverZ := *activityAt("Z", models.ActivityDiaper, t0.Add(time.Minute)).WithNotes("server copy")
	server := &models.Snapshot{
		Activities:       []models.Activity{serverZ},
		CustomActivities: []models.CustomActivity{{ID: "c1", Name: "Server name", Icon: "tub"}},
	}

	merged := MergeSnapshot(local, server, Policy{})
	require.Len(t, merged.Activities, 1)
	assert.Equal(t, serverZ, merged.Activities[0])
	assert.Equal(t, []models.CustomActivity{{ID: "c1", Name: "Server name", Icon: "tub"}}, merged.CustomActivities)
}

func TestMergeNeverInfersDeletion(t *testing.T) {
	local := &models.Snapshot{Activities: []models.Activity{*activityAt("gone-on-server", models.ActivityBath, t0)}}

	merged := MergeSnapshot(local, &models.Snapshot{}, Policy{})
	assert.Equal(t, []string{"gone-on-server"}, ids(merged.Activities))
}

func TestMergeSingletonsPreferServer(t *testing.T) {
	localSettings := models.DefaultSettings()
	localSettings.ThemePreference = models.ThemeLight
	serverSettings := models.DefaultSettings()
	serverSettings.ThemePreference = models.ThemeDark

	local := &models.Snapshot{Profile: &models.Profile{Name: "local"}, Settings: &localSettings}
	server := &models.Snapshot{Profile: &models.Profile{Name: "server"}, Settings: &serverSettings}

	merged := MergeSnapshot(local, server, Policy{})
	assert.Equal(t, "server", merged.Profile.Name)
	assert.Equal(t, models.ThemeDark, merged.Settings.ThemePreference)

	// Without server singletons the local copies stay.
	merged = MergeSnapshot(local, &models.Snapshot{}, Policy{})
	assert.Equal(t, "local", merged.Profile.Name)
	assert.Equal(t, models.ThemeLight, merged.Settings.ThemePreference)
}

func TestPolicyOverlaysForcedOffFeatures(t *testing.T) {
	serverSettings := models.DefaultSettings()
	serverSettings.Features = map[string]bool{"sleep_predictions": true, "beta_charts": true}
	server := &models.Snapshot{Settings: &serverSettings}

	merged := MergeSnapshot(nil, server, Policy{ForcedOffFeatures: []string{"beta_charts", "voice_log"}})
	assert.Equal(t, map[string]bool{
		"sleep_predictions": true,
		"beta_charts":       false,
		"voice_log":         false,
	}, merged.Settings.Features)

	// The server value is not mutated.
	assert.True(t, serverSettings.Features["beta_charts"])
	assert.Nil(t, Policy{ForcedOffFeatures: []string{"x"}}.ApplySettings(nil))
}

func TestMergeSortsCollections(t *testing.T) {
	server := &models.Snapshot{
		Activities: []models.Activity{
			*activityAt("b", models.ActivityFeeding, t0),
			*activityAt("old", models.ActivityFeeding, t0.Add(-time.Hour)),
			*activityAt("a", models.ActivityFeeding, t0),
			*activityAt("new", models.ActivityFeeding, t0.Add(time.Hour)),
		},
		CustomActivities: []models.CustomActivity{{ID: "2", Name: "bath"}, {ID: "1", Name: "Bath"}, {ID: "3", Name: "Attic"}},
		GrowthRecords:    []models.GrowthRecord{{ID: "g1", Date: "2024-01-01"}, {ID: "g2", Date: "2024-03-01"}},
	}

	merged := MergeSnapshot(nil, server, Policy{})
	assert.Equal(t, []string{"new", "a", "b", "old"}, ids(merged.Activities))
	assert.Equal(t, "3", merged.CustomActivities[0].ID)
	assert.Equal(t, "1", merged.CustomActivities[1].ID)
	assert.Equal(t, "2", merged.CustomActivities[2].ID)
	assert.Equal(t, "g2", merged.GrowthRecords[0].ID)
}
