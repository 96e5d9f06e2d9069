// ABOUTME: Activity CRUD operations for SQLite storage.
// ABOUTME: Writes go through the ownership-safe upsert; deletes are scoped by (id, owner).
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/harperreed/cradle/internal/errs"
	"github.com/harperreed/cradle/internal/models"
)

// ActivityFilter narrows ListActivities. Zero values mean no filter.
type ActivityFilter struct {
	Type  string
	Since *time.Time
	Until *time.Time
	Limit int
}

const activityColumns = `id, type, timestamp, end_timestamp, sub_type, notes, amount, unit, medication_name, metadata`

// SaveActivity inserts or overwrites an activity owned by owner.
func (d *DB) SaveActivity(ctx context.Context, owner int64, a *models.Activity) error {
	return saveActivity(ctx, d.db, owner, a, d.now())
}

func saveActivity(ctx context.Context, q Querier, owner int64, a *models.Activity, now time.Time) error {
	if err := a.Validate(); err != nil {
		return err
	}
	stamp := formatTime(now)
	_, err := Upsert(ctx, q, UpsertSpec{
		Table: "activities",
		Columns: []string{
			"id", "telegram_id", "type", "timestamp", "end_timestamp", "sub_type", "notes",
			"amount", "unit", "medication_name", "metadata", "created_at", "updated_at",
		},
		Values: []any{
			a.ID, owner, a.Type, formatTime(a.Timestamp), nullTime(a.EndTimestamp),
			nullString(a.SubType), nullString(a.Notes), nullFloat(a.Amount), nullString(a.Unit),
			nullString(a.MedicationName), nullJSON(a.Metadata), stamp, stamp,
		},
		ConflictKey: "id",
		UpdateColumns: []string{
			"type", "timestamp", "end_timestamp", "sub_type", "notes", "amount",
			"unit", "medication_name", "metadata", "updated_at",
		},
		OwnerID: owner,
	})
	return err
}

// GetActivity retrieves one activity owned by owner.
func (d *DB) GetActivity(ctx context.Context, owner int64, id string) (*models.Activity, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+activityColumns+` FROM activities WHERE id = ? AND telegram_id = ?`, id, owner)
	a, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("activity", id)
	}
	if err != nil {
		return nil, errs.Storage("get activity", err)
	}
	return a, nil
}

// ListActivities returns the owner's activities, most recent first.
func (d *DB) ListActivities(ctx context.Context, owner int64, f ActivityFilter) ([]models.Activity, error) {
	return listActivities(ctx, d.db, owner, f)
}

func listActivities(ctx context.Context, q Querier, owner int64, f ActivityFilter) ([]models.Activity, error) {
	var where []string
	args := []any{owner}
	where = append(where, "telegram_id = ?")

	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, f.Type)
	}
	if f.Since != nil {
		where = append(where, "timestamp >= ?")
		args = append(args, formatTime(*f.Since))
	}
	if f.Until != nil {
		where = append(where, "timestamp < ?")
		args = append(args, formatTime(*f.Until))
	}

	query := `SELECT ` + activityColumns + ` FROM activities WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY timestamp DESC, id`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Storage("list activities", err)
	}
	defer rows.Close()

	activities := make([]models.Activity, 0)
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, errs.Storage("scan activity", err)
		}
		activities = append(activities, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Storage("list activities", err)
	}
	return activities, nil
}

// DeleteActivity removes an activity. Deleting a missing id is a no-op.
func (d *DB) DeleteActivity(ctx context.Context, owner int64, id string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM activities WHERE id = ? AND telegram_id = ?`, id, owner)
	return errs.Storage("delete activity", err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActivity(row rowScanner) (*models.Activity, error) {
	var a models.Activity
	var timestamp string
	var end, subType, notes, unit, medication, metadata sql.NullString
	var amount sql.NullFloat64

	if err := row.Scan(&a.ID, &a.Type, &timestamp, &end, &subType, &notes, &amount, &unit, &medication, &metadata); err != nil {
		return nil, err
	}

	ts, err := parseTime(timestamp)
	if err != nil {
		return nil, err
	}
	a.Timestamp = ts
	if end.Valid {
		e, err := parseTime(end.String)
		if err != nil {
			return nil, err
		}
		a.EndTimestamp = &e
	}
	a.SubType = stringPtr(subType)
	a.Notes = stringPtr(notes)
	a.Unit = stringPtr(unit)
	a.MedicationName = stringPtr(medication)
	if amount.Valid {
		v := amount.Float64
		a.Amount = &v
	}
	if metadata.Valid {
		a.Metadata = json.RawMessage(metadata.String)
	}
	return &a, nil
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
