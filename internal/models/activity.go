// ABOUTME: Activity model for logged events (feedings, sleeps, diapers, medication).
// ABOUTME: Activities are immutable by id and updated by full-record overwrite.
package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/cradle/internal/errs"
)

// Well-known activity types. Custom definitions may introduce others.
const (
	ActivityFeeding    = "feeding"
	ActivitySleep      = "sleep"
	ActivityDiaper     = "diaper"
	ActivityMedication = "medication"
	ActivityPumping    = "pumping"
	ActivityBath       = "bath"
	ActivityTummyTime  = "tummy_time"
)

// KnownActivityTypes lists the built-in activity types.
var KnownActivityTypes = []string{
	ActivityFeeding, ActivitySleep, ActivityDiaper, ActivityMedication,
	ActivityPumping, ActivityBath, ActivityTummyTime,
}

const maxTypeLen = 64

// Activity is a single logged event.
type Activity struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	Timestamp      time.Time       `json:"timestamp"`
	EndTimestamp   *time.Time      `json:"endTimestamp,omitempty"`
	SubType        *string         `json:"subType,omitempty"`
	Notes          *string         `json:"notes,omitempty"`
	Amount         *float64        `json:"amount,omitempty"`
	Unit           *string         `json:"unit,omitempty"`
	MedicationName *string         `json:"medicationName,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

// NewActivity creates an Activity with a generated id and the current time.
func NewActivity(activityType string) *Activity {
	return &Activity{
		ID:        uuid.NewString(),
		Type:      activityType,
		Timestamp: time.Now().UTC(),
	}
}

// WithTimestamp sets a custom start time.
func (a *Activity) WithTimestamp(t time.Time) *Activity {
	a.Timestamp = t.UTC()
	return a
}

// WithEnd sets the end time for duration activities such as sleep.
func (a *Activity) WithEnd(t time.Time) *Activity {
	end := t.UTC()
	a.EndTimestamp = &end
	return a
}

// WithNotes sets notes on the activity.
func (a *Activity) WithNotes(notes string) *Activity {
	a.Notes = &notes
	return a
}

// WithAmount sets an amount and its unit.
func (a *Activity) WithAmount(amount float64, unit string) *Activity {
	a.Amount = &amount
	if unit != "" {
		a.Unit = &unit
	}
	return a
}

// HasIdentity reports whether the required identity fields are present.
func (a *Activity) HasIdentity() bool {
	return a.ID != "" && a.Type != "" && !a.Timestamp.IsZero()
}

// Validate checks the activity and normalizes timestamps to UTC.
func (a *Activity) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return errs.Validation("activity id is required")
	}
	if strings.TrimSpace(a.Type) == "" {
		return errs.Validation("activity type is required")
	}
	if len(a.Type) > maxTypeLen {
		return errs.Validation("activity type longer than %d characters", maxTypeLen)
	}
	if a.Timestamp.IsZero() {
		return errs.Validation("activity timestamp is required")
	}
	a.Timestamp = a.Timestamp.UTC()
	if a.EndTimestamp != nil {
		end := a.EndTimestamp.UTC()
		if end.Before(a.Timestamp) {
			return errs.Validation("activity %s ends before it starts", a.ID)
		}
		a.EndTimestamp = &end
	}
	if a.Amount != nil && *a.Amount < 0 {
		return errs.Validation("activity amount must not be negative")
	}
	if err := validateObject("metadata", a.Metadata); err != nil {
		return err
	}
	return nil
}

// validateObject accepts an empty value, JSON null, or a JSON object.
func validateObject(field string, raw json.RawMessage) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] != '{' || !json.Valid(trimmed) {
		return errs.Validation("%s must be a JSON object", field)
	}
	return nil
}
