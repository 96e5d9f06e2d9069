// ABOUTME: Notification scheduler: claims due schedules, advances next_run, and notifies.
// ABOUTME: A compare-and-set on next_run makes sure only one process fires each run.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/harperreed/cradle/internal/logger"
	"github.com/harperreed/cradle/internal/metrics"
	"github.com/harperreed/cradle/internal/models"
	"github.com/robfig/cron/v3"
)

// DefaultInterval is how often due schedules are polled.
const DefaultInterval = time.Minute

// DefaultBatch caps how many due schedules one tick claims.
const DefaultBatch = 100

// Store is the slice of the record store the scheduler needs.
type Store interface {
	ListDueSchedules(ctx context.Context, now time.Time, limit int) ([]models.NotificationSchedule, error)
	AdvanceSchedule(ctx context.Context, id string, prev, next, claimedAt time.Time) (bool, error)
}

// Notifier delivers a fired schedule.
type Notifier interface {
	Notify(ctx context.Context, s models.NotificationSchedule, firedAt time.Time) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, s models.NotificationSchedule, firedAt time.Time) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, s models.NotificationSchedule, firedAt time.Time) error {
	return f(ctx, s, firedAt)
}

// LogNotifier writes fired schedules to the log.
type LogNotifier struct {
	Log *logger.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, s models.NotificationSchedule, firedAt time.Time) error {
	n.Log.Info("notification", "schedule", s.ID, "type", s.Type, "chat", s.ChatID,
		"message", s.ScheduleData.Message, "fired_at", firedAt.Format(time.RFC3339))
	return nil
}

// TickReport counts what one tick did.
type TickReport struct {
	Fired      int `json:"fired"`
	Suspicious int `json:"suspicious"`
	LostRace   int `json:"lostRace"`
	Failed     int `json:"failed"`
}

// Runner polls the store for due schedules.
type Runner struct {
	store    Store
	notifier Notifier
	log      *logger.Logger
	interval time.Duration
	batch    int
	now      func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// Option configures a Runner.
type Option func(*Runner)

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithBatch sets how many schedules a tick claims.
func WithBatch(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.batch = n
		}
	}
}

// WithClock overrides time.Now for ticks started by the cron loop.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New creates a runner.
func New(store Store, notifier Notifier, log *logger.Logger, opts ...Option) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	r := &Runner{
		store:    store,
		notifier: notifier,
		log:      log.With("component", "scheduler"),
		interval: DefaultInterval,
		batch:    DefaultBatch,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Tick fires every schedule due at now.
func (r *Runner) Tick(ctx context.Context, now time.Time) (TickReport, error) {
	var report TickReport
	now = now.UTC()

	due, err := r.store.ListDueSchedules(ctx, now, r.batch)
	if err != nil {
		r.count("error")
		return report, fmt.Errorf("list due schedules: %w", err)
	}

	for _, s := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !s.IsPersonal() {
			report.Suspicious++
			r.count("skipped_suspicious")
			r.log.Warn("skipping schedule with foreign chat", "schedule", s.ID, "user", s.UserID, "chat", s.ChatID)
			continue
		}
		if s.NextRun == nil {
			continue
		}

		prev := *s.NextRun
		next, err := s.ScheduleData.Next(now)
		if err != nil {
			report.Failed++
			r.count("error")
			r.log.Error("schedule has invalid cron", "schedule", s.ID, "error", err)
			continue
		}

		claimed, err := r.store.AdvanceSchedule(ctx, s.ID, prev, next, now)
		if err != nil {
			report.Failed++
			r.count("error")
			r.log.Error("advance schedule failed", "schedule", s.ID, "error", err)
			continue
		}
		if !claimed {
			report.LostRace++
			r.count("lost_race")
			continue
		}

		if err := r.notifier.Notify(ctx, s, now); err != nil {
			// The run is claimed; a failed delivery is not retried.
			report.Failed++
			r.count("error")
			r.log.Error("notify failed", "schedule", s.ID, "error", err)
			continue
		}
		report.Fired++
		r.count("fired")
	}

	if len(due) > 0 {
		r.log.Info("scheduler tick", "due", len(due), "fired", report.Fired,
			"suspicious", report.Suspicious, "lost_race", report.LostRace, "failed", report.Failed)
	}
	return report, nil
}

// Start begins polling every interval until Stop.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return fmt.Errorf("scheduler already started")
	}

	c := cron.New(cron.WithParser(cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)))
	schedule := fmt.Sprintf("@every %s", r.interval.String())
	if _, err := c.AddFunc(schedule, func() {
		if _, err := r.Tick(ctx, r.now()); err != nil {
			r.log.Error("scheduler tick failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to add tick with schedule '%s': %w", schedule, err)
	}
	c.Start()
	r.cron = c
	r.log.Info("scheduler started", "interval", r.interval.String())
	return nil
}

// Stop halts polling and waits for a running tick to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron == nil {
		return
	}
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.cron = nil
	r.log.Info("scheduler stopped")
}

func (r *Runner) count(result string) {
	metrics.ScheduleClaimsTotal.WithLabelValues(result).Inc()
}
