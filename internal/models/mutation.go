// ABOUTME: Mutation vocabulary shared by the sync engine, offline queue, and remote client.
// ABOUTME: A mutation is an action name plus a JSON payload that targets one record.
package models

import (
	"encoding/json"
	"fmt"

	"github.com/harperreed/cradle/internal/errs"
)

// Action names a remote operation.
type Action string

const (
	ActionSaveActivity         Action = "saveActivity"
	ActionDeleteActivity       Action = "deleteActivity"
	ActionSaveCustomActivity   Action = "saveCustomActivity"
	ActionDeleteCustomActivity Action = "deleteCustomActivity"
	ActionSaveGrowthRecord     Action = "saveGrowthRecord"
	ActionDeleteGrowthRecord   Action = "deleteGrowthRecord"
	ActionSaveProfile          Action = "saveProfile"
	ActionSaveSettings         Action = "saveSettings"
)

// Family returns the record family an action targets.
func (a Action) Family() string {
	switch a {
	case ActionSaveActivity, ActionDeleteActivity:
		return "activity"
	case ActionSaveCustomActivity, ActionDeleteCustomActivity:
		return "custom_activity"
	case ActionSaveGrowthRecord, ActionDeleteGrowthRecord:
		return "growth_record"
	case ActionSaveProfile:
		return "profile"
	case ActionSaveSettings:
		return "settings"
	default:
		return ""
	}
}

// IsDelete reports whether the action removes a record.
func (a Action) IsDelete() bool {
	switch a {
	case ActionDeleteActivity, ActionDeleteCustomActivity, ActionDeleteGrowthRecord:
		return true
	}
	return false
}

// IsSingleton reports whether the action targets a per-owner singleton.
func (a Action) IsSingleton() bool {
	return a == ActionSaveProfile || a == ActionSaveSettings
}

// DeletePayload is the payload of every delete action.
type DeletePayload struct {
	ID string `json:"id"`
}

// Mutation is one pending remote write.
type Mutation struct {
	Action  Action          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// NewMutation encodes v as the payload of action.
func NewMutation(action Action, v any) (Mutation, error) {
	if action.Family() == "" {
		return Mutation{}, errs.Validation("unknown action %q", action)
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return Mutation{}, errs.Validation("encode %s payload: %v", action, err)
	}
	return Mutation{Action: action, Payload: payload}, nil
}

// RecordID returns the id targeted by a collection mutation, or "" for singletons.
func (m Mutation) RecordID() (string, error) {
	if m.Action.IsSingleton() {
		return "", nil
	}
	var target DeletePayload
	if err := json.Unmarshal(m.Payload, &target); err != nil {
		return "", errs.Validation("decode %s payload: %v", m.Action, err)
	}
	if target.ID == "" {
		return "", errs.Validation("%s payload has no id", m.Action)
	}
	return target.ID, nil
}

// RecordKey identifies the record a mutation targets, e.g. "activity:a1".
// Singletons key on the family alone.
func (m Mutation) RecordKey() (string, error) {
	family := m.Action.Family()
	if family == "" {
		return "", errs.Validation("unknown action %q", m.Action)
	}
	if m.Action.IsSingleton() {
		return family, nil
	}
	id, err := m.RecordID()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s", family, id), nil
}
