// ABOUTME: Profile and Settings singleton storage, keyed by owner id.
// ABOUTME: Saves read the stored envelope, overlay the patch, and upsert in place.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/cradle/internal/errs"
	"github.com/harperreed/cradle/internal/models"
)

// GetProfile returns the owner's profile or errs.ErrNotFound.
func (d *DB) GetProfile(ctx context.Context, owner int64) (*models.Profile, error) {
	return getProfile(ctx, d.db, owner)
}

func getProfile(ctx context.Context, q Querier, owner int64) (*models.Profile, error) {
	var data string
	err := q.QueryRowContext(ctx, `SELECT profile_data FROM profiles WHERE telegram_id = ?`, owner).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("profile", fmt.Sprint(owner))
	}
	if err != nil {
		return nil, errs.Storage("get profile", err)
	}
	p, err := models.DecodeProfile([]byte(data))
	if err != nil {
		return nil, errs.Storage("decode stored profile", err)
	}
	return p, nil
}

// SaveProfile overlays patch on the stored profile and writes the result.
func (d *DB) SaveProfile(ctx context.Context, owner int64, patch json.RawMessage) (*models.Profile, error) {
	current, err := getProfile(ctx, d.db, owner)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}
	merged, err := models.MergeProfile(current, patch, d.now())
	if err != nil {
		return nil, err
	}
	if err := putProfile(ctx, d.db, owner, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

func putProfile(ctx context.Context, q Querier, owner int64, p *models.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return errs.Validation("encode profile: %v", err)
	}
	_, err = Upsert(ctx, q, UpsertSpec{
		Table:         "profiles",
		Columns:       []string{"telegram_id", "profile_data", "created_at", "updated_at"},
		Values:        []any{owner, string(data), formatTime(p.CreatedAt), formatTime(p.UpdatedAt)},
		ConflictKey:   "telegram_id",
		UpdateColumns: []string{"profile_data", "updated_at"},
		OwnerID:       owner,
	})
	return err
}

// GetSettings returns the owner's settings or errs.ErrNotFound.
func (d *DB) GetSettings(ctx context.Context, owner int64) (*models.Settings, error) {
	return getSettings(ctx, d.db, owner)
}

func getSettings(ctx context.Context, q Querier, owner int64) (*models.Settings, error) {
	var data string
	err := q.QueryRowContext(ctx, `SELECT settings_data FROM settings WHERE telegram_id = ?`, owner).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("settings", fmt.Sprint(owner))
	}
	if err != nil {
		return nil, errs.Storage("get settings", err)
	}
	s, err := models.DecodeSettings([]byte(data))
	if err != nil {
		return nil, errs.Storage("decode stored settings", err)
	}
	return s, nil
}

// SaveSettings merges patch into the stored settings ({...old, ...patch}).
// With no stored row the defaults are the base.
func (d *DB) SaveSettings(ctx context.Context, owner int64, patch json.RawMessage) (*models.Settings, error) {
	current, err := getSettings(ctx, d.db, owner)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}
	merged, err := models.MergeSettings(current, patch)
	if err != nil {
		return nil, err
	}
	if err := putSettings(ctx, d.db, owner, merged, d.now()); err != nil {
		return nil, err
	}
	return merged, nil
}

func putSettings(ctx context.Context, q Querier, owner int64, s *models.Settings, now time.Time) error {
	if err := s.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return errs.Validation("encode settings: %v", err)
	}
	_, err = Upsert(ctx, q, UpsertSpec{
		Table:         "settings",
		Columns:       []string{"telegram_id", "settings_data", "updated_at"},
		Values:        []any{owner, string(data), formatTime(now)},
		ConflictKey:   "telegram_id",
		UpdateColumns: []string{"settings_data", "updated_at"},
		OwnerID:       owner,
	})
	return err
}
