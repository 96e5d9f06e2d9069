// ABOUTME: GrowthRecord and CustomActivity models.
// ABOUTME: Growth records are measured on a calendar date; custom activities are user-defined types.
package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/cradle/internal/errs"
)

// DateLayout is the calendar-date format used for growth records and birth dates.
const DateLayout = "2006-01-02"

// GrowthRecord is a weight/height measurement.
type GrowthRecord struct {
	ID         string  `json:"id"`
	Date       string  `json:"date"`
	Weight     float64 `json:"weight"`
	WeightUnit string  `json:"weightUnit"`
	Height     float64 `json:"height"`
	HeightUnit string  `json:"heightUnit"`
	AgeInDays  int     `json:"ageInDays"`
}

// NewGrowthRecord creates a GrowthRecord dated today with metric units.
func NewGrowthRecord(weight, height float64) *GrowthRecord {
	return &GrowthRecord{
		ID:         uuid.NewString(),
		Date:       time.Now().UTC().Format(DateLayout),
		Weight:     weight,
		WeightUnit: "kg",
		Height:     height,
		HeightUnit: "cm",
	}
}

// HasIdentity reports whether the required identity fields are present.
func (g *GrowthRecord) HasIdentity() bool {
	return g.ID != "" && g.Date != ""
}

// Validate checks the growth record.
func (g *GrowthRecord) Validate() error {
	if strings.TrimSpace(g.ID) == "" {
		return errs.Validation("growth record id is required")
	}
	if !IsDate(g.Date) {
		return errs.Validation("growth record date %q is not YYYY-MM-DD or RFC3339", g.Date)
	}
	if g.Weight < 0 || g.Height < 0 {
		return errs.Validation("growth measurements must not be negative")
	}
	if g.AgeInDays < 0 {
		return errs.Validation("ageInDays must not be negative")
	}
	return nil
}

// IsDate accepts a calendar date or a full RFC3339 timestamp.
func IsDate(s string) bool {
	if _, err := time.Parse(DateLayout, s); err == nil {
		return true
	}
	_, err := time.Parse(time.RFC3339, s)
	return err == nil
}

// CustomActivity is a user-defined activity type.
type CustomActivity struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Icon     string          `json:"icon"`
	Color    string          `json:"color"`
	Schedule json.RawMessage `json:"schedule,omitempty"`
}

// NewCustomActivity creates a CustomActivity with a generated id.
func NewCustomActivity(name string) *CustomActivity {
	return &CustomActivity{
		ID:   uuid.NewString(),
		Name: name,
	}
}

// HasIdentity reports whether the required identity fields are present.
func (c *CustomActivity) HasIdentity() bool {
	return c.ID != "" && c.Name != ""
}

// Validate checks the custom activity definition.
func (c *CustomActivity) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return errs.Validation("custom activity id is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return errs.Validation("custom activity name is required")
	}
	return validateObject("schedule", c.Schedule)
}
