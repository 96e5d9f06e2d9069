// ABOUTME: Applies a sync mutation directly against a Repository.
// ABOUTME: Used by the HTTP batch route, the CLI's direct mode, and in-process remotes.
package storage

import (
	"context"
	"encoding/json"

	"github.com/harperreed/cradle/internal/errs"
	"github.com/harperreed/cradle/internal/models"
)

// Execute performs m for owner on r.
func Execute(ctx context.Context, r Repository, owner int64, m models.Mutation) error {
	switch m.Action {
	case models.ActionSaveActivity:
		var a models.Activity
		if err := decodeMutation(m, &a); err != nil {
			return err
		}
		return r.SaveActivity(ctx, owner, &a)

	case models.ActionSaveCustomActivity:
		var c models.CustomActivity
		if err := decodeMutation(m, &c); err != nil {
			return err
		}
		return r.SaveCustomActivity(ctx, owner, &c)

	case models.ActionSaveGrowthRecord:
		var g models.GrowthRecord
		if err := decodeMutation(m, &g); err != nil {
			return err
		}
		return r.SaveGrowthRecord(ctx, owner, &g)

	case models.ActionSaveProfile:
		_, err := r.SaveProfile(ctx, owner, m.Payload)
		return err

	case models.ActionSaveSettings:
		_, err := r.SaveSettings(ctx, owner, m.Payload)
		return err

	case models.ActionDeleteActivity, models.ActionDeleteCustomActivity, models.ActionDeleteGrowthRecord:
		id, err := m.RecordID()
		if err != nil {
			return err
		}
		switch m.Action {
		case models.ActionDeleteActivity:
			return r.DeleteActivity(ctx, owner, id)
		case models.ActionDeleteCustomActivity:
			return r.DeleteCustomActivity(ctx, owner, id)
		default:
			return r.DeleteGrowthRecord(ctx, owner, id)
		}
	}
	return errs.Validation("unknown action %q", m.Action)
}

func decodeMutation(m models.Mutation, dst any) error {
	if err := json.Unmarshal(m.Payload, dst); err != nil {
		return errs.Validation("decode %s payload: %v", m.Action, err)
	}
	return nil
}
