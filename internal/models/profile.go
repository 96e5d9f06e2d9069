// ABOUTME: Profile and Settings singletons with typed JSON envelopes.
// ABOUTME: Patches overlay stored values key-by-key; unknown keys are rejected.
package models

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/harperreed/cradle/internal/errs"
)

// Theme preferences accepted in Settings.
const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"
)

// Profile describes the tracked person. One per owner.
type Profile struct {
	Name      string    `json:"name"`
	Gender    string    `json:"gender,omitempty"`
	BirthDate string    `json:"birthDate,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Settings holds per-owner preferences. One per owner.
type Settings struct {
	FeedingIntervalMinutes int             `json:"feedingIntervalMinutes"`
	NotificationsEnabled   bool            `json:"notificationsEnabled"`
	ThemePreference        string          `json:"themePreference"`
	ActiveSleepStart       *time.Time      `json:"activeSleepStart,omitempty"`
	Features               map[string]bool `json:"features,omitempty"`
}

// DefaultSettings returns the settings a new account starts with.
func DefaultSettings() Settings {
	return Settings{
		FeedingIntervalMinutes: 180,
		NotificationsEnabled:   true,
		ThemePreference:        ThemeSystem,
	}
}

// Validate checks settings ranges.
func (s *Settings) Validate() error {
	if s.FeedingIntervalMinutes < 0 || s.FeedingIntervalMinutes > 24*60 {
		return errs.Validation("feedingIntervalMinutes must be between 0 and 1440")
	}
	switch s.ThemePreference {
	case "", ThemeLight, ThemeDark, ThemeSystem:
	default:
		return errs.Validation("unknown themePreference %q", s.ThemePreference)
	}
	return nil
}

// Validate checks the profile.
func (p *Profile) Validate() error {
	if p.BirthDate != "" && !IsDate(p.BirthDate) {
		return errs.Validation("birthDate %q is not YYYY-MM-DD or RFC3339", p.BirthDate)
	}
	return nil
}

// MergeSettings overlays patch onto current. A nil current starts from defaults.
// Keys present in patch win, including explicit nulls.
func MergeSettings(current *Settings, patch json.RawMessage) (*Settings, error) {
	base := DefaultSettings()
	if current != nil {
		base = *current
	}
	var merged Settings
	if err := overlay(base, patch, &merged); err != nil {
		return nil, err
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

// MergeProfile overlays patch onto current. CreatedAt is kept from current
// when set, UpdatedAt becomes now.
func MergeProfile(current *Profile, patch json.RawMessage, now time.Time) (*Profile, error) {
	var base Profile
	if current != nil {
		base = *current
	}
	var merged Profile
	if err := overlay(base, patch, &merged); err != nil {
		return nil, err
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}

	now = now.UTC()
	merged.CreatedAt = now
	if current != nil && !current.CreatedAt.IsZero() {
		merged.CreatedAt = current.CreatedAt.UTC()
	}
	merged.UpdatedAt = now
	return &merged, nil
}

// DecodeSettings reads a stored settings envelope.
func DecodeSettings(data []byte) (*Settings, error) {
	var s Settings
	if err := decodeStrict(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// DecodeProfile reads a stored profile envelope.
func DecodeProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := decodeStrict(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func overlay(base any, patch json.RawMessage, dst any) error {
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return errs.Validation("encode current value: %v", err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(baseJSON, &fields); err != nil {
		return errs.Validation("decode current value: %v", err)
	}

	var changes map[string]json.RawMessage
	if err := json.Unmarshal(patch, &changes); err != nil || changes == nil {
		return errs.Validation("patch must be a JSON object")
	}
	for k, v := range changes {
		fields[k] = v
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return errs.Validation("encode merged value: %v", err)
	}
	if err := decodeStrict(merged, dst); err != nil {
		return errs.Validation("%v", err)
	}
	return nil
}

func decodeStrict(data []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
