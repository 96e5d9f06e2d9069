// ABOUTME: Offline mutation queue: durable, per-owner, drained oldest-first with bounded retry.
// ABOUTME: Overlapping drains for one owner share a single in-flight pass.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/harperreed/cradle/internal/errs"
	"github.com/harperreed/cradle/internal/local"
	"github.com/harperreed/cradle/internal/logger"
	"github.com/harperreed/cradle/internal/metrics"
	"github.com/harperreed/cradle/internal/models"
	"github.com/harperreed/cradle/internal/session"
	"golang.org/x/sync/singleflight"
)

// MaxRetries bounds how many times a transiently failing entry is retried
// after its first attempt before it is dropped.
const MaxRetries = 5

// Outcome names what happened to an entry during a drain.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDiscarded Outcome = "discarded"
	OutcomeRetried   Outcome = "retried"
	OutcomeDropped   Outcome = "dropped"
	OutcomeHeldBack  Outcome = "held_back"
)

// Entry is one pending mutation.
type Entry struct {
	ID        string          `json:"id"`
	Owner     int64           `json:"owner"`
	Action    models.Action   `json:"action"`
	RecordKey string          `json:"recordKey"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
	Attempts  int             `json:"attempts"`
	LastError string          `json:"lastError,omitempty"`
}

// Mutation returns the entry's action and payload.
func (e Entry) Mutation() models.Mutation {
	return models.Mutation{Action: e.Action, Payload: e.Payload}
}

// Executor performs a mutation against the server.
type Executor interface {
	Execute(ctx context.Context, owner int64, m models.Mutation) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, owner int64, m models.Mutation) error

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, owner int64, m models.Mutation) error {
	return f(ctx, owner, m)
}

// Connectivity reports whether the server is reachable.
type Connectivity interface {
	Online(ctx context.Context) bool
}

// ConnectivityFunc adapts a function to Connectivity.
type ConnectivityFunc func(ctx context.Context) bool

// Online implements Connectivity.
func (f ConnectivityFunc) Online(ctx context.Context) bool { return f(ctx) }

// AlwaysOnline never reports offline.
var AlwaysOnline Connectivity = ConnectivityFunc(func(context.Context) bool { return true })

// Backend persists queue records. *local.Store implements it.
type Backend interface {
	PutEntry(owner int64, id string, data []byte) error
	Entries(owner int64) ([]local.RawEntry, error)
	DeleteEntry(owner int64, id string) error
}

// DiscardFunc is told about entries that left the queue without applying.
type DiscardFunc func(sess session.Session, e Entry, outcome Outcome, cause error)

// Report summarizes one drain pass.
type Report struct {
	Offline   bool `json:"offline,omitempty"`
	Applied   int  `json:"applied"`
	Discarded int  `json:"discarded"`
	Retried   int  `json:"retried"`
	Dropped   int  `json:"dropped"`
	HeldBack  int  `json:"heldBack"`
}

// Remaining is how many entries the pass left in the queue.
func (r Report) Remaining() int {
	return r.Retried + r.HeldBack
}

// Queue is the offline mutation queue.
type Queue struct {
	store     Backend
	online    Connectivity
	log       *logger.Logger
	ids       *idGenerator
	now       func() time.Time
	group     singleflight.Group
	onDiscard DiscardFunc
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithEntropy overrides the ULID entropy source.
func WithEntropy(r io.Reader) Option {
	return func(q *Queue) { q.ids = newIDGenerator(r) }
}

// WithDiscardHandler registers a callback for discarded and dropped entries.
func WithDiscardHandler(fn DiscardFunc) Option {
	return func(q *Queue) { q.onDiscard = fn }
}

// New creates a queue over store. A nil online means always online.
func New(store Backend, online Connectivity, log *logger.Logger, opts ...Option) *Queue {
	if online == nil {
		online = AlwaysOnline
	}
	if log == nil {
		log = logger.Nop()
	}
	q := &Queue{
		store:  store,
		online: online,
		log:    log.With("component", "queue"),
		ids:    newIDGenerator(nil),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// SetDiscardHandler replaces the discard callback.
func (q *Queue) SetDiscardHandler(fn DiscardFunc) {
	q.onDiscard = fn
}

// Enqueue appends a mutation to the owner's queue.
func (q *Queue) Enqueue(ctx context.Context, sess session.Session, m models.Mutation) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	key, err := m.RecordKey()
	if err != nil {
		return Entry{}, err
	}
	now := q.now().UTC()
	e := Entry{
		ID:        q.ids.next(now),
		Owner:     sess.OwnerID,
		Action:    m.Action,
		RecordKey: key,
		Payload:   m.Payload,
		Timestamp: now,
	}
	if err := q.put(e); err != nil {
		return Entry{}, err
	}
	q.log.Debug("enqueued mutation", "owner", sess.OwnerID, "action", m.Action, "record", key, "entry", e.ID)
	return e, nil
}

// Pending lists the owner's entries in drain order.
func (q *Queue) Pending(ctx context.Context, sess session.Session) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raws, err := q.store.Entries(sess.OwnerID)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		var e Entry
		if err := json.Unmarshal(raw.Data, &e); err != nil {
			return nil, errs.Storage("decode queue entry "+raw.ID, err)
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.Before(entries[j].Timestamp)
		}
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

// Len counts the owner's entries.
func (q *Queue) Len(ctx context.Context, sess session.Session) (int, error) {
	entries, err := q.Pending(ctx, sess)
	return len(entries), err
}

// Clear removes every entry for the owner without executing it.
func (q *Queue) Clear(ctx context.Context, sess session.Session) (int, error) {
	entries, err := q.Pending(ctx, sess)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if err := q.store.DeleteEntry(sess.OwnerID, e.ID); err != nil {
			return 0, err
		}
	}
	return len(entries), nil
}

// Drain executes the owner's entries oldest-first, one at a time. It does
// nothing when offline. Callers that overlap with a running drain for the
// same owner wait for it and receive its report.
func (q *Queue) Drain(ctx context.Context, sess session.Session, exec Executor) (Report, error) {
	if !q.online.Online(ctx) {
		return Report{Offline: true}, nil
	}
	v, err, _ := q.group.Do(sess.OwnerKey(), func() (any, error) {
		return q.drain(ctx, sess, exec)
	})
	report, _ := v.(Report)
	return report, err
}

func (q *Queue) drain(ctx context.Context, sess session.Session, exec Executor) (Report, error) {
	var report Report

	entries, err := q.Pending(ctx, sess)
	if err != nil {
		return report, err
	}
	if len(entries) == 0 {
		return report, nil
	}

	// Record keys that failed transiently in this pass; later entries for
	// them wait so per-record order holds.
	blocked := make(map[string]bool)

	for _, e := range entries {
		// A cancelled pass stops without charging entries it never sent.
		if err := ctx.Err(); err != nil {
			q.log.Info("drain interrupted", "owner", sess.OwnerID, "applied", report.Applied, "error", err)
			return report, err
		}
		if blocked[e.RecordKey] {
			report.HeldBack++
			q.count(OutcomeHeldBack)
			continue
		}

		execErr := exec.Execute(ctx, sess.OwnerID, e.Mutation())
		switch {
		case execErr == nil:
			if err := q.store.DeleteEntry(sess.OwnerID, e.ID); err != nil {
				return report, err
			}
			report.Applied++
			q.count(OutcomeApplied)

		case errs.IsPermanent(execErr):
			if err := q.store.DeleteEntry(sess.OwnerID, e.ID); err != nil {
				return report, err
			}
			report.Discarded++
			q.count(OutcomeDiscarded)
			q.log.Warn("discarded queued mutation", "owner", sess.OwnerID, "action", e.Action,
				"record", e.RecordKey, "entry", e.ID, "error", execErr)
			q.discarded(sess, e, OutcomeDiscarded, execErr)

		case ctx.Err() != nil:
			q.log.Info("drain interrupted", "owner", sess.OwnerID, "entry", e.ID, "error", execErr)
			return report, ctx.Err()

		default:
			blocked[e.RecordKey] = true
			if e.Attempts >= MaxRetries {
				if err := q.store.DeleteEntry(sess.OwnerID, e.ID); err != nil {
					return report, err
				}
				report.Dropped++
				q.count(OutcomeDropped)
				q.log.Warn("dropped queued mutation after retries", "owner", sess.OwnerID, "action", e.Action,
					"record", e.RecordKey, "entry", e.ID, "attempts", e.Attempts, "error", execErr)
				q.discarded(sess, e, OutcomeDropped, execErr)
				continue
			}
			e.Attempts++
			e.LastError = execErr.Error()
			if err := q.put(e); err != nil {
				return report, err
			}
			report.Retried++
			q.count(OutcomeRetried)
			q.log.Info("queued mutation will retry", "owner", sess.OwnerID, "action", e.Action,
				"entry", e.ID, "attempts", e.Attempts, "error", execErr)
		}
	}

	q.log.Info("drained queue", "owner", sess.OwnerID, "applied", report.Applied, "discarded", report.Discarded,
		"retried", report.Retried, "dropped", report.Dropped, "held_back", report.HeldBack)
	return report, nil
}

func (q *Queue) put(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode queue entry: %w", err)
	}
	return q.store.PutEntry(e.Owner, e.ID, data)
}

func (q *Queue) discarded(sess session.Session, e Entry, outcome Outcome, cause error) {
	if q.onDiscard != nil {
		q.onDiscard(sess, e, outcome, cause)
	}
}

func (q *Queue) count(o Outcome) {
	metrics.QueueEntriesTotal.WithLabelValues(string(o)).Inc()
}
