// ABOUTME: Account snapshot and the versioned export/import document.
// ABOUTME: The document field names are the stable interchange format.
package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/harperreed/cradle/internal/errs"
)

// DocumentVersion is written into every exported document.
const DocumentVersion = "1"

// Snapshot is a point-in-time read of one owner's records.
type Snapshot struct {
	Profile          *Profile         `json:"profile,omitempty"`
	Settings         *Settings        `json:"settings,omitempty"`
	Activities       []Activity       `json:"activities"`
	CustomActivities []CustomActivity `json:"customActivities"`
	GrowthRecords    []GrowthRecord   `json:"growthRecords"`
}

// Version accepts either a JSON string or a JSON number.
type Version string

// UnmarshalJSON implements json.Unmarshaler.
func (v *Version) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*v = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*v = Version(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*v = Version(n.String())
	return nil
}

// Document is the whole-account export/import format.
type Document struct {
	Version          Version                `json:"version"`
	Timestamp        string                 `json:"timestamp"`
	Profile          *Profile               `json:"profile,omitempty"`
	Settings         *Settings              `json:"settings,omitempty"`
	Activities       []Activity             `json:"activities,omitempty"`
	CustomActivities []CustomActivity       `json:"customActivities,omitempty"`
	GrowthRecords    []GrowthRecord         `json:"growthRecords,omitempty"`
	Schedules        []NotificationSchedule `json:"schedules,omitempty"`
}

// Validate checks the envelope fields that must be present before any
// storage is touched.
func (d *Document) Validate() error {
	if strings.TrimSpace(string(d.Version)) == "" {
		return errs.Validation("document version is required")
	}
	if strings.TrimSpace(d.Timestamp) == "" {
		return errs.Validation("document timestamp is required")
	}
	if _, err := time.Parse(time.RFC3339, d.Timestamp); err != nil {
		return errs.Validation("document timestamp %q is not ISO-8601", d.Timestamp)
	}
	return nil
}

// DecodeDocument parses a JSON document.
func DecodeDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errs.Validation("decode document: %v", err)
	}
	return &doc, nil
}
