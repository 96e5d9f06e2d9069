// ABOUTME: Notification schedule storage, owned through the user_id column.
// ABOUTME: Due rows are listed by next_run; the scheduler advances them with a compare-and-set.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/harperreed/cradle/internal/errs"
	"github.com/harperreed/cradle/internal/models"
)

const scheduleOwnerColumn = "user_id"

const scheduleColumns = `id, user_id, chat_id, type, schedule_data, next_run, enabled`

// SaveSchedule inserts or overwrites a schedule owned by owner. ChatID
// defaults to the owner, and an enabled schedule with no NextRun gets the
// next fire time of its cron expression.
func (d *DB) SaveSchedule(ctx context.Context, owner int64, s *models.NotificationSchedule) error {
	return saveSchedule(ctx, d.db, owner, s, d.now())
}

func saveSchedule(ctx context.Context, q Querier, owner int64, s *models.NotificationSchedule, now time.Time) error {
	s.UserID = owner
	if s.ChatID == 0 {
		s.ChatID = owner
	}
	if err := s.Validate(); err != nil {
		return err
	}
	if s.NextRun == nil && s.Enabled {
		next, err := s.ScheduleData.Next(now)
		if err != nil {
			return err
		}
		s.NextRun = &next
	}

	// next_run never moves behind the last claimed fire.
	var lastRun sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT last_run FROM notification_schedules WHERE id = ? AND user_id = ?`, s.ID, owner).Scan(&lastRun)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return errs.Storage("read schedule last run", err)
	}
	if lastRun.Valid && s.NextRun != nil {
		last, err := parseTime(lastRun.String)
		if err != nil {
			return errs.Storage("parse schedule last run", err)
		}
		if s.NextRun.Before(last) {
			s.NextRun = &last
		}
	}

	data, err := json.Marshal(s.ScheduleData)
	if err != nil {
		return errs.Validation("encode schedule data: %v", err)
	}
	stamp := formatTime(now)
	_, err = Upsert(ctx, q, UpsertSpec{
		Table: "notification_schedules",
		Columns: []string{
			"id", "user_id", "chat_id", "type", "schedule_data", "next_run", "enabled", "created_at", "updated_at",
		},
		Values: []any{
			s.ID, owner, s.ChatID, s.Type, string(data), nullTime(s.NextRun), boolInt(s.Enabled), stamp, stamp,
		},
		ConflictKey:   "id",
		UpdateColumns: []string{"chat_id", "type", "schedule_data", "next_run", "enabled", "updated_at"},
		OwnerColumn:   scheduleOwnerColumn,
		OwnerID:       owner,
	})
	return err
}

// ListSchedules returns the owner's schedules by next run.
func (d *DB) ListSchedules(ctx context.Context, owner int64) ([]models.NotificationSchedule, error) {
	return listSchedules(ctx, d.db, owner)
}

func listSchedules(ctx context.Context, q Querier, owner int64) ([]models.NotificationSchedule, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+scheduleColumns+` FROM notification_schedules
		WHERE user_id = ? ORDER BY next_run IS NULL, next_run, id`, owner)
	if err != nil {
		return nil, errs.Storage("list schedules", err)
	}
	return collectSchedules(rows, "list schedules")
}

// ListDueSchedules returns enabled schedules whose next_run is at or before
// now, across all owners, earliest first.
func (d *DB) ListDueSchedules(ctx context.Context, now time.Time, limit int) ([]models.NotificationSchedule, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.db.QueryContext(ctx, `SELECT `+scheduleColumns+` FROM notification_schedules
		WHERE enabled = 1 AND next_run IS NOT NULL AND next_run <= ?
		ORDER BY next_run, id LIMIT ?`, formatTime(now), limit)
	if err != nil {
		return nil, errs.Storage("list due schedules", err)
	}
	return collectSchedules(rows, "list due schedules")
}

// AdvanceSchedule moves next_run from prev to next and records claimedAt as
// the last run. It reports false when another consumer advanced the row
// first or the row is gone or disabled.
func (d *DB) AdvanceSchedule(ctx context.Context, id string, prev, next, claimedAt time.Time) (bool, error) {
	if next.Before(claimedAt) {
		return false, errs.Validation("schedule %s: next run %s is before claim %s", id,
			next.UTC().Format(time.RFC3339), claimedAt.UTC().Format(time.RFC3339))
	}
	res, err := d.db.ExecContext(ctx, `
		UPDATE notification_schedules
		SET next_run = ?, last_run = ?, updated_at = ?
		WHERE id = ? AND enabled = 1 AND next_run = ?`,
		formatTime(next), formatTime(claimedAt), formatTime(d.now()), id, formatTime(prev))
	if err != nil {
		return false, errs.Storage("advance schedule", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errs.Storage("advance schedule", err)
	}
	return n == 1, nil
}

// DeleteSchedule removes a schedule. Deleting a missing id is a no-op.
func (d *DB) DeleteSchedule(ctx context.Context, owner int64, id string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM notification_schedules WHERE id = ? AND user_id = ?`, id, owner)
	return errs.Storage("delete schedule", err)
}

func collectSchedules(rows *sql.Rows, op string) ([]models.NotificationSchedule, error) {
	defer rows.Close()

	schedules := make([]models.NotificationSchedule, 0)
	for rows.Next() {
		var s models.NotificationSchedule
		var data string
		var nextRun sql.NullString
		var enabled int
		if err := rows.Scan(&s.ID, &s.UserID, &s.ChatID, &s.Type, &data, &nextRun, &enabled); err != nil {
			return nil, errs.Storage("scan schedule", err)
		}
		if err := json.Unmarshal([]byte(data), &s.ScheduleData); err != nil {
			return nil, errs.Storage("decode schedule data "+s.ID, err)
		}
		if nextRun.Valid {
			t, err := parseTime(nextRun.String)
			if err != nil {
				return nil, errs.Storage("parse schedule next run "+s.ID, err)
			}
			s.NextRun = &t
		}
		s.Enabled = enabled != 0
		schedules = append(schedules, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Storage(op, err)
	}
	return schedules, nil
}
