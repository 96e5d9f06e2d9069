// ABOUTME: Snapshot merge policy between local state and a server snapshot.
// ABOUTME: Singletons take the server value; collections keep unsynced local records.
package sync

import (
	"sort"
	"strings"

	"github.com/harperreed/cradle/internal/models"
)

// Policy is client-side state overlaid after every merge.
type Policy struct {
	// ForcedOffFeatures are feature flags this client always disables.
	ForcedOffFeatures []string
}

// ApplySettings returns a copy of s with the policy overlaid. Nil stays nil.
func (p Policy) ApplySettings(s *models.Settings) *models.Settings {
	if s == nil {
		return nil
	}
	out := *s
	if len(p.ForcedOffFeatures) == 0 {
		return &out
	}
	features := make(map[string]bool, len(s.Features)+len(p.ForcedOffFeatures))
	for k, v := range s.Features {
		features[k] = v
	}
	for _, f := range p.ForcedOffFeatures {
		features[f] = false
	}
	out.Features = features
	return &out
}

// MergeSnapshot combines local state with a server snapshot.
//
// Profile and settings come from the server whenever it has them. For each
// collection the result is every server record plus every local record whose
// id the server did not return; absence on the server never means deletion.
func MergeSnapshot(local, server *models.Snapshot, policy Policy) *models.Snapshot {
	if local == nil {
		local = &models.Snapshot{}
	}
	if server == nil {
		server = &models.Snapshot{}
	}

	merged := &models.Snapshot{
		Profile:  local.Profile,
		Settings: local.Settings,
	}
	if server.Profile != nil {
		p := *server.Profile
		merged.Profile = &p
	}
	if server.Settings != nil {
		merged.Settings = server.Settings
	}
	merged.Settings = policy.ApplySettings(merged.Settings)

	merged.Activities = mergeCollection(local.Activities, server.Activities,
		func(a models.Activity) string { return a.ID })
	merged.CustomActivities = mergeCollection(local.CustomActivities, server.CustomActivities,
		func(c models.CustomActivity) string { return c.ID })
	merged.GrowthRecords = mergeCollection(local.GrowthRecords, server.GrowthRecords,
		func(g models.GrowthRecord) string { return g.ID })

	sortSnapshot(merged)
	return merged
}

// mergeCollection returns server ∪ (local ∖ server ids).
func mergeCollection[T any](local, server []T, id func(T) string) []T {
	seen := make(map[string]bool, len(server))
	out := make([]T, 0, len(server)+len(local))
	for _, rec := range server {
		seen[id(rec)] = true
		out = append(out, rec)
	}
	for _, rec := range local {
		if !seen[id(rec)] {
			out = append(out, rec)
		}
	}
	return out
}

// sortSnapshot orders activities by timestamp and growth records by date,
// newest first, and custom activities by name.
func sortSnapshot(s *models.Snapshot) {
	sort.SliceStable(s.Activities, func(i, j int) bool {
		a, b := s.Activities[i], s.Activities[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.ID < b.ID
	})
	sort.SliceStable(s.GrowthRecords, func(i, j int) bool {
		a, b := s.GrowthRecords[i], s.GrowthRecords[j]
		if a.Date != b.Date {
			return a.Date > b.Date
		}
		return a.ID < b.ID
	})
	sort.SliceStable(s.CustomActivities, func(i, j int) bool {
		a, b := s.CustomActivities[i], s.CustomActivities[j]
		an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if an != bn {
			return an < bn
		}
		return a.ID < b.ID
	})
}
