// ABOUTME: Local synced state, stored per record family under owner/<id>/state/<family>.
// ABOUTME: A snapshot is written in one badger transaction so families never drift apart.
package local

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"github.com/harperreed/cradle/internal/errs"
	"github.com/harperreed/cradle/internal/models"
)

// Record families kept in local state.
const (
	FamilyProfile          = "profile"
	FamilySettings         = "settings"
	FamilyActivities       = "activities"
	FamilyCustomActivities = "custom_activities"
	FamilyGrowthRecords    = "growth_records"
)

func stateKey(owner int64, family string) string {
	return scope(owner, StatePrefix+family)
}

// LoadSnapshot returns the owner's local state. A fresh device has an empty
// snapshot with nil singletons.
func (s *Store) LoadSnapshot(owner int64) (*models.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &models.Snapshot{
		Activities:       []models.Activity{},
		CustomActivities: []models.CustomActivity{},
		GrowthRecords:    []models.GrowthRecord{},
	}
	targets := map[string]any{
		FamilyProfile:          &snap.Profile,
		FamilySettings:         &snap.Settings,
		FamilyActivities:       &snap.Activities,
		FamilyCustomActivities: &snap.CustomActivities,
		FamilyGrowthRecords:    &snap.GrowthRecords,
	}

	err := s.db.View(func(txn *badger.Txn) error {
		for family, dst := range targets {
			item, err := txn.Get([]byte(stateKey(owner, family)))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(data, dst); err != nil {
				return fmt.Errorf("decode local %s: %w", family, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errs.Storage("load local snapshot", err)
	}

	// A stored JSON null decodes to a nil slice.
	if snap.Activities == nil {
		snap.Activities = []models.Activity{}
	}
	if snap.CustomActivities == nil {
		snap.CustomActivities = []models.CustomActivity{}
	}
	if snap.GrowthRecords == nil {
		snap.GrowthRecords = []models.GrowthRecord{}
	}
	return snap, nil
}

// SaveSnapshot replaces the owner's local state atomically.
func (s *Store) SaveSnapshot(owner int64, snap *models.Snapshot) error {
	values := map[string]any{
		FamilyProfile:          snap.Profile,
		FamilySettings:         snap.Settings,
		FamilyActivities:       snap.Activities,
		FamilyCustomActivities: snap.CustomActivities,
		FamilyGrowthRecords:    snap.GrowthRecords,
	}
	encoded := make(map[string][]byte, len(values))
	for family, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return errs.Validation("encode local %s: %v", family, err)
		}
		encoded[family] = data
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.Update(func(txn *badger.Txn) error {
		for family, data := range encoded {
			key := []byte(stateKey(owner, family))
			if string(data) == "null" {
				if err := txn.Delete(key); err != nil {
					return err
				}
				continue
			}
			if err := txn.Set(key, data); err != nil {
				return err
			}
		}
		return nil
	})
	return errs.Storage("save local snapshot", err)
}
