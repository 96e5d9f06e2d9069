// ABOUTME: NotificationSchedule model with a typed schedule_data envelope.
// ABOUTME: Schedules fire on a standard cron expression, optionally in a named timezone.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/cradle/internal/errs"
	"github.com/robfig/cron/v3"
)

// Schedule types.
const (
	ScheduleFeedingReminder = "feeding_reminder"
	ScheduleMedication      = "medication"
	ScheduleCustom          = "custom"
)

// ScheduleData is the payload stored in schedule_data.
type ScheduleData struct {
	Cron     string `json:"cron"`
	Timezone string `json:"timezone,omitempty"`
	Message  string `json:"message,omitempty"`
}

// NotificationSchedule is a reminder owned by UserID and delivered to ChatID.
type NotificationSchedule struct {
	ID           string       `json:"id"`
	UserID       int64        `json:"user_id"`
	ChatID       int64        `json:"chat_id"`
	Type         string       `json:"type"`
	ScheduleData ScheduleData `json:"schedule_data"`
	NextRun      *time.Time   `json:"next_run,omitempty"`
	Enabled      bool         `json:"enabled"`
}

// NewSchedule creates an enabled personal schedule for owner.
func NewSchedule(owner int64, scheduleType, cronExpr string) *NotificationSchedule {
	return &NotificationSchedule{
		ID:           uuid.NewString(),
		UserID:       owner,
		ChatID:       owner,
		Type:         scheduleType,
		ScheduleData: ScheduleData{Cron: cronExpr},
		Enabled:      true,
	}
}

// IsPersonal reports whether the schedule delivers to its owner's own chat.
// Rows failing this check are skipped by consumers.
func (s *NotificationSchedule) IsPersonal() bool {
	return s.ChatID == s.UserID
}

// HasIdentity reports whether the required identity fields are present.
func (s *NotificationSchedule) HasIdentity() bool {
	return s.ID != "" && s.Type != ""
}

// Validate checks the schedule, including its cron expression.
func (s *NotificationSchedule) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return errs.Validation("schedule id is required")
	}
	if strings.TrimSpace(s.Type) == "" {
		return errs.Validation("schedule type is required")
	}
	if _, err := s.ScheduleData.Parse(); err != nil {
		return err
	}
	return nil
}

// Parse compiles the cron expression, applying the timezone when set.
func (d ScheduleData) Parse() (cron.Schedule, error) {
	expr := strings.TrimSpace(d.Cron)
	if expr == "" {
		return nil, errs.Validation("schedule cron expression is required")
	}
	if d.Timezone != "" {
		if _, err := time.LoadLocation(d.Timezone); err != nil {
			return nil, errs.Validation("unknown timezone %q", d.Timezone)
		}
		expr = "CRON_TZ=" + d.Timezone + " " + expr
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, errs.Validation("invalid cron expression %q: %v", d.Cron, err)
	}
	return sched, nil
}

// Next returns the first fire time strictly after t.
func (d ScheduleData) Next(t time.Time) (time.Time, error) {
	sched, err := d.Parse()
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(t).UTC(), nil
}
