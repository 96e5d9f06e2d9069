// ABOUTME: Growth record storage.
// ABOUTME: Records are listed newest date first and written through the ownership-safe upsert.
package storage

import (
	"context"
	"time"

	"github.com/harperreed/cradle/internal/errs"
	"github.com/harperreed/cradle/internal/models"
)

// SaveGrowthRecord inserts or overwrites a growth record.
func (d *DB) SaveGrowthRecord(ctx context.Context, owner int64, g *models.GrowthRecord) error {
	return saveGrowthRecord(ctx, d.db, owner, g, d.now())
}

func saveGrowthRecord(ctx context.Context, q Querier, owner int64, g *models.GrowthRecord, now time.Time) error {
	if err := g.Validate(); err != nil {
		return err
	}
	stamp := formatTime(now)
	_, err := Upsert(ctx, q, UpsertSpec{
		Table: "growth_records",
		Columns: []string{
			"id", "telegram_id", "date", "weight", "weight_unit", "height", "height_unit",
			"age_in_days", "created_at", "updated_at",
		},
		Values: []any{
			g.ID, owner, g.Date, g.Weight, g.WeightUnit, g.Height, g.HeightUnit,
			g.AgeInDays, stamp, stamp,
		},
		ConflictKey:   "id",
		UpdateColumns: []string{"date", "weight", "weight_unit", "height", "height_unit", "age_in_days", "updated_at"},
		OwnerID:       owner,
	})
	return err
}

// ListGrowthRecords returns the owner's growth records, newest date first.
func (d *DB) ListGrowthRecords(ctx context.Context, owner int64) ([]models.GrowthRecord, error) {
	return listGrowthRecords(ctx, d.db, owner)
}

func listGrowthRecords(ctx context.Context, q Querier, owner int64) ([]models.GrowthRecord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, date, weight, weight_unit, height, height_unit, age_in_days
		FROM growth_records WHERE telegram_id = ?
		ORDER BY date DESC, id`, owner)
	if err != nil {
		return nil, errs.Storage("list growth records", err)
	}
	defer rows.Close()

	records := make([]models.GrowthRecord, 0)
	for rows.Next() {
		var g models.GrowthRecord
		if err := rows.Scan(&g.ID, &g.Date, &g.Weight, &g.WeightUnit, &g.Height, &g.HeightUnit, &g.AgeInDays); err != nil {
			return nil, errs.Storage("scan growth record", err)
		}
		records = append(records, g)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Storage("list growth records", err)
	}
	return records, nil
}

// DeleteGrowthRecord removes a growth record. Deleting a missing id is a no-op.
func (d *DB) DeleteGrowthRecord(ctx context.Context, owner int64, id string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM growth_records WHERE id = ? AND telegram_id = ?`, id, owner)
	return errs.Storage("delete growth record", err)
}
