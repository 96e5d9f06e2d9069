// ABOUTME: Custom activity definition storage.
// ABOUTME: Definitions are listed by name and written through the ownership-safe upsert.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/harperreed/cradle/internal/errs"
	"github.com/harperreed/cradle/internal/models"
)

// SaveCustomActivity inserts or overwrites a custom activity definition.
func (d *DB) SaveCustomActivity(ctx context.Context, owner int64, c *models.CustomActivity) error {
	return saveCustomActivity(ctx, d.db, owner, c, d.now())
}

func saveCustomActivity(ctx context.Context, q Querier, owner int64, c *models.CustomActivity, now time.Time) error {
	if err := c.Validate(); err != nil {
		return err
	}
	stamp := formatTime(now)
	_, err := Upsert(ctx, q, UpsertSpec{
		Table:         "custom_activities",
		Columns:       []string{"id", "telegram_id", "name", "icon", "color", "schedule", "created_at", "updated_at"},
		Values:        []any{c.ID, owner, c.Name, c.Icon, c.Color, nullJSON(c.Schedule), stamp, stamp},
		ConflictKey:   "id",
		UpdateColumns: []string{"name", "icon", "color", "schedule", "updated_at"},
		OwnerID:       owner,
	})
	return err
}

// ListCustomActivities returns the owner's definitions ordered by name.
func (d *DB) ListCustomActivities(ctx context.Context, owner int64) ([]models.CustomActivity, error) {
	return listCustomActivities(ctx, d.db, owner)
}

func listCustomActivities(ctx context.Context, q Querier, owner int64) ([]models.CustomActivity, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, icon, color, schedule
		FROM custom_activities WHERE telegram_id = ?
		ORDER BY name, id`, owner)
	if err != nil {
		return nil, errs.Storage("list custom activities", err)
	}
	defer rows.Close()

	defs := make([]models.CustomActivity, 0)
	for rows.Next() {
		var c models.CustomActivity
		var schedule sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon, &c.Color, &schedule); err != nil {
			return nil, errs.Storage("scan custom activity", err)
		}
		if schedule.Valid {
			c.Schedule = json.RawMessage(schedule.String)
		}
		defs = append(defs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Storage("list custom activities", err)
	}
	return defs, nil
}

// DeleteCustomActivity removes a definition. Deleting a missing id is a no-op.
func (d *DB) DeleteCustomActivity(ctx context.Context, owner int64, id string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM custom_activities WHERE id = ? AND telegram_id = ?`, id, owner)
	return errs.Storage("delete custom activity", err)
}
