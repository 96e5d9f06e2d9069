// ABOUTME: Whole-account operations: snapshot reads and atomic account deletion.
// ABOUTME: Account-wide writes run inside withAccountTx and roll back as one unit.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/harperreed/cradle/internal/errs"
	"github.com/harperreed/cradle/internal/models"
)

// GetSnapshot reads every record family for owner. Missing singletons are nil.
func (d *DB) GetSnapshot(ctx context.Context, owner int64) (*models.Snapshot, error) {
	return snapshot(ctx, d.db, owner)
}

func snapshot(ctx context.Context, q Querier, owner int64) (*models.Snapshot, error) {
	snap := &models.Snapshot{}

	profile, err := getProfile(ctx, q, owner)
	switch {
	case err == nil:
		snap.Profile = profile
	case !errors.Is(err, errs.ErrNotFound):
		return nil, err
	}

	settings, err := getSettings(ctx, q, owner)
	switch {
	case err == nil:
		snap.Settings = settings
	case !errors.Is(err, errs.ErrNotFound):
		return nil, err
	}

	if snap.Activities, err = listActivities(ctx, q, owner, ActivityFilter{}); err != nil {
		return nil, err
	}
	if snap.CustomActivities, err = listCustomActivities(ctx, q, owner); err != nil {
		return nil, err
	}
	if snap.GrowthRecords, err = listGrowthRecords(ctx, q, owner); err != nil {
		return nil, err
	}
	return snap, nil
}

// DeleteAccount removes every record the owner has, profile and settings
// included, in one atomic unit.
func (d *DB) DeleteAccount(ctx context.Context, owner int64) error {
	return d.withAccountTx(ctx, "delete_account", func(tx *sql.Tx) error {
		if err := deleteCollections(ctx, tx, owner); err != nil {
			return err
		}
		for _, stmt := range []string{
			`DELETE FROM profiles WHERE telegram_id = ?`,
			`DELETE FROM settings WHERE telegram_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, owner); err != nil {
				return errs.Storage("delete account", err)
			}
		}
		return nil
	})
}

// deleteCollections removes the owner's multi-row records. Profile and
// settings rows are left alone.
func deleteCollections(ctx context.Context, q Querier, owner int64) error {
	tables := []struct{ table, ownerColumn string }{
		{"activities", DefaultOwnerColumn},
		{"custom_activities", DefaultOwnerColumn},
		{"growth_records", DefaultOwnerColumn},
		{"notification_schedules", scheduleOwnerColumn},
	}
	for _, t := range tables {
		stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", t.table, t.ownerColumn)
		if _, err := q.ExecContext(ctx, stmt, owner); err != nil {
			return errs.Storage("delete "+t.table, err)
		}
	}
	return nil
}
