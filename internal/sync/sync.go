// ABOUTME: Engine is the client sync engine: optimistic local writes, remote persist, and pulls.
// ABOUTME: Local state lives in the device store; failed writes go to the offline queue.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/harperreed/cradle/internal/errs"
	"github.com/harperreed/cradle/internal/logger"
	"github.com/harperreed/cradle/internal/models"
	"github.com/harperreed/cradle/internal/queue"
	"github.com/harperreed/cradle/internal/session"
)

// Remote is the server as seen from a device.
type Remote interface {
	Snapshot(ctx context.Context, owner int64) (*models.Snapshot, error)
	Execute(ctx context.Context, owner int64, m models.Mutation) error
}

// StateStore holds the device's copy of synced state. *local.Store implements it.
type StateStore interface {
	LoadSnapshot(owner int64) (*models.Snapshot, error)
	SaveSnapshot(owner int64, snap *models.Snapshot) error
}

// Notice tells the presentation layer that a write did not stick.
type Notice struct {
	Time      time.Time     `json:"time"`
	Action    models.Action `json:"action"`
	RecordKey string        `json:"recordKey"`
	Reason    string        `json:"reason"`
	// Reverted is set when the optimistic local copy was removed.
	Reverted bool `json:"reverted"`
}

func (n Notice) String() string {
	s := fmt.Sprintf("%s %s failed: %s", n.Action, n.RecordKey, n.Reason)
	if n.Reverted {
		s += " (local copy removed)"
	}
	return s
}

const noticeBuffer = 32

// errQueuedAhead keeps a write behind older queued writes for its record.
var errQueuedAhead = errors.New("older writes for this record are still queued")

// Engine coordinates local state, the offline queue, and the server for one session.
type Engine struct {
	sess    session.Session
	store   StateStore
	queue   *queue.Queue
	remote  Remote
	policy  Policy
	log     *logger.Logger
	now     func() time.Time
	notices chan Notice

	// mu serializes read-modify-write cycles on local state.
	mu gosync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithPolicy sets the client policy applied after merges.
func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithLogger sets the engine logger.
func WithLogger(log *logger.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine for sess.
func NewEngine(sess session.Session, store StateStore, q *queue.Queue, remote Remote, opts ...Option) *Engine {
	e := &Engine{
		sess:    sess,
		store:   store,
		queue:   q,
		remote:  remote,
		log:     logger.Nop(),
		now:     time.Now,
		notices: make(chan Notice, noticeBuffer),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With("component", "sync", "owner", sess.OwnerID, "device", sess.DeviceID)
	return e
}

// Session returns the engine's session.
func (e *Engine) Session() session.Session { return e.sess }

// Notices delivers permanent-failure notices. Notices are dropped when
// nobody drains the channel.
func (e *Engine) Notices() <-chan Notice { return e.notices }

// State returns the current local state.
func (e *Engine) State(ctx context.Context) (*models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.store.LoadSnapshot(e.sess.OwnerID)
}

// Queued lists the writes waiting in the offline queue, oldest first.
func (e *Engine) Queued(ctx context.Context) ([]queue.Entry, error) {
	return e.queue.Pending(ctx, e.sess)
}

// ClearQueue drops every queued write without sending it. Local state is
// left as is; a Pull brings it back in line with the server.
func (e *Engine) ClearQueue(ctx context.Context) (int, error) {
	return e.queue.Clear(ctx, e.sess)
}

// Pending is an applied local mutation awaiting its remote write.
type Pending struct {
	engine   *Engine
	mutation models.Mutation
	key      string
}

// Mutation returns the mutation as it will be sent. Singleton patches are
// sent as given, not as the merged local value.
func (p *Pending) Mutation() models.Mutation { return p.mutation }

// RecordKey identifies the record the mutation targets.
func (p *Pending) RecordKey() string { return p.key }

// Persist performs the remote write. Older queued writes for the same record
// are drained first; while any remain, Persist fails transiently so the
// write queues behind them. A permanent failure reverts the local copy.
func (p *Pending) Persist(ctx context.Context) error {
	if err := p.engine.flushAhead(ctx, p.key); err != nil {
		return err
	}
	return p.engine.execute(ctx, p.engine.sess.OwnerID, p.mutation)
}

// Defer queues the remote write for the next drain.
func (p *Pending) Defer(ctx context.Context) (queue.Entry, error) {
	return p.engine.queue.Enqueue(ctx, p.engine.sess, p.mutation)
}

// PersistOrDefer persists, queueing the write when the failure is not
// permanent. deferred reports whether it was queued.
func (p *Pending) PersistOrDefer(ctx context.Context) (deferred bool, err error) {
	err = p.Persist(ctx)
	if err == nil {
		return false, nil
	}
	if errs.IsPermanent(err) {
		return false, err
	}
	p.engine.log.Info("remote write deferred", "action", p.mutation.Action, "record", p.key, "error", err)
	if _, qerr := p.Defer(ctx); qerr != nil {
		return false, fmt.Errorf("queue %s after %v: %w", p.mutation.Action, err, qerr)
	}
	return true, nil
}

// Apply validates m and applies it to local state immediately. The returned
// handle performs or defers the remote write.
func (e *Engine) Apply(ctx context.Context, m models.Mutation) (*Pending, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := m.RecordKey()
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := e.store.LoadSnapshot(e.sess.OwnerID)
	if err != nil {
		return nil, err
	}
	if err := e.applyChange(snap, m); err != nil {
		return nil, err
	}
	if err := e.store.SaveSnapshot(e.sess.OwnerID, snap); err != nil {
		return nil, err
	}
	e.log.Debug("applied local mutation", "action", m.Action, "record", key)
	return &Pending{engine: e, mutation: m, key: key}, nil
}

// Pull fetches the server snapshot and merges it into local state. Writes
// still in the offline queue are replayed onto the merged result, so a pull
// never hides unsynced local work behind an older server copy.
func (e *Engine) Pull(ctx context.Context) (*models.Snapshot, error) {
	server, err := e.remote.Snapshot(ctx, e.sess.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("pull snapshot: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	queued, err := e.queue.Pending(ctx, e.sess)
	if err != nil {
		return nil, err
	}
	current, err := e.store.LoadSnapshot(e.sess.OwnerID)
	if err != nil {
		return nil, err
	}
	merged := MergeSnapshot(current, server, e.policy)
	for _, q := range queued {
		if err := e.applyChange(merged, q.Mutation()); err != nil {
			e.log.Warn("queued write not replayed after pull", "record", q.RecordKey, "entry", q.ID, "error", err)
		}
	}
	if err := e.store.SaveSnapshot(e.sess.OwnerID, merged); err != nil {
		return nil, err
	}
	e.log.Info("pulled snapshot", "activities", len(merged.Activities),
		"custom_activities", len(merged.CustomActivities), "growth_records", len(merged.GrowthRecords))
	return merged, nil
}

// Reconnect drains the offline queue and then pulls. It does not pull while
// offline, and a failed drain skips the pull so queued writes are not
// masked by an older server copy.
func (e *Engine) Reconnect(ctx context.Context) (queue.Report, error) {
	report, err := e.queue.Drain(ctx, e.sess, queue.ExecutorFunc(e.execute))
	if err != nil {
		return report, fmt.Errorf("drain queue: %w", err)
	}
	if report.Offline {
		e.log.Debug("reconnect skipped, offline")
		return report, nil
	}
	if _, err := e.Pull(ctx); err != nil {
		return report, err
	}
	return report, nil
}

// flushAhead drains the queue when it holds writes for key. It returns a
// transient error while any of them remain.
func (e *Engine) flushAhead(ctx context.Context, key string) error {
	ahead, err := e.queuedFor(ctx, key)
	if err != nil || ahead == 0 {
		return err
	}
	if _, err := e.queue.Drain(ctx, e.sess, queue.ExecutorFunc(e.execute)); err != nil {
		return fmt.Errorf("drain before %s: %w", key, err)
	}
	if ahead, err = e.queuedFor(ctx, key); err != nil {
		return err
	}
	if ahead > 0 {
		e.log.Debug("write held behind queue", "record", key, "queued", ahead)
		return errs.Transient("persist "+key, errQueuedAhead)
	}
	return nil
}

func (e *Engine) queuedFor(ctx context.Context, key string) (int, error) {
	entries, err := e.queue.Pending(ctx, e.sess)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, q := range entries {
		if q.RecordKey == key {
			n++
		}
	}
	return n, nil
}

// execute is the remote write used by Persist and by queue drains.
func (e *Engine) execute(ctx context.Context, owner int64, m models.Mutation) error {
	err := e.remote.Execute(ctx, owner, m)
	if err != nil && errs.IsPermanent(err) {
		e.rejected(m, err)
	}
	return err
}

// rejected reverts the optimistic copy of a save the server will never accept.
// Deletes and singleton patches cannot be reverted locally; the next pull
// restores server truth for them.
func (e *Engine) rejected(m models.Mutation, cause error) {
	key, _ := m.RecordKey()
	n := Notice{Time: e.now().UTC(), Action: m.Action, RecordKey: key, Reason: cause.Error()}

	if !m.Action.IsDelete() && !m.Action.IsSingleton() {
		if id, err := m.RecordID(); err == nil {
			reverted, err := e.revert(m.Action, id)
			if err != nil {
				e.log.Error("revert local copy failed", "record", key, "error", err)
			}
			n.Reverted = reverted
		}
	}

	e.log.Warn("remote write rejected", "action", m.Action, "record", key, "reverted", n.Reverted, "error", cause)
	select {
	case e.notices <- n:
	default:
		e.log.Warn("notice dropped, channel full", "record", key)
	}
}

func (e *Engine) revert(action models.Action, id string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := e.store.LoadSnapshot(e.sess.OwnerID)
	if err != nil {
		return false, err
	}
	var removed bool
	switch action {
	case models.ActionSaveActivity:
		snap.Activities, removed = removeByID(snap.Activities, id, func(a models.Activity) string { return a.ID })
	case models.ActionSaveCustomActivity:
		snap.CustomActivities, removed = removeByID(snap.CustomActivities, id, func(c models.CustomActivity) string { return c.ID })
	case models.ActionSaveGrowthRecord:
		snap.GrowthRecords, removed = removeByID(snap.GrowthRecords, id, func(g models.GrowthRecord) string { return g.ID })
	}
	if !removed {
		return false, nil
	}
	return true, e.store.SaveSnapshot(e.sess.OwnerID, snap)
}

// applyChange applies one mutation to snap in place.
func (e *Engine) applyChange(snap *models.Snapshot, m models.Mutation) error {
	switch m.Action {
	case models.ActionSaveActivity:
		var a models.Activity
		if err := decodePayload(m, &a); err != nil {
			return err
		}
		if err := a.Validate(); err != nil {
			return err
		}
		snap.Activities = upsertByID(snap.Activities, a, func(x models.Activity) string { return x.ID })

	case models.ActionSaveCustomActivity:
		var c models.CustomActivity
		if err := decodePayload(m, &c); err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return err
		}
		snap.CustomActivities = upsertByID(snap.CustomActivities, c, func(x models.CustomActivity) string { return x.ID })

	case models.ActionSaveGrowthRecord:
		var g models.GrowthRecord
		if err := decodePayload(m, &g); err != nil {
			return err
		}
		if err := g.Validate(); err != nil {
			return err
		}
		snap.GrowthRecords = upsertByID(snap.GrowthRecords, g, func(x models.GrowthRecord) string { return x.ID })

	case models.ActionDeleteActivity, models.ActionDeleteCustomActivity, models.ActionDeleteGrowthRecord:
		id, err := m.RecordID()
		if err != nil {
			return err
		}
		switch m.Action {
		case models.ActionDeleteActivity:
			snap.Activities, _ = removeByID(snap.Activities, id, func(x models.Activity) string { return x.ID })
		case models.ActionDeleteCustomActivity:
			snap.CustomActivities, _ = removeByID(snap.CustomActivities, id, func(x models.CustomActivity) string { return x.ID })
		default:
			snap.GrowthRecords, _ = removeByID(snap.GrowthRecords, id, func(x models.GrowthRecord) string { return x.ID })
		}

	case models.ActionSaveProfile:
		p, err := models.MergeProfile(snap.Profile, m.Payload, e.now())
		if err != nil {
			return err
		}
		snap.Profile = p

	case models.ActionSaveSettings:
		s, err := models.MergeSettings(snap.Settings, m.Payload)
		if err != nil {
			return err
		}
		snap.Settings = e.policy.ApplySettings(s)

	default:
		return errs.Validation("unknown action %q", m.Action)
	}

	sortSnapshot(snap)
	return nil
}

func decodePayload(m models.Mutation, dst any) error {
	if err := json.Unmarshal(m.Payload, dst); err != nil {
		return errs.Validation("decode %s payload: %v", m.Action, err)
	}
	return nil
}

func upsertByID[T any](list []T, rec T, id func(T) string) []T {
	for i := range list {
		if id(list[i]) == id(rec) {
			list[i] = rec
			return list
		}
	}
	return append(list, rec)
}

func removeByID[T any](list []T, target string, id func(T) string) ([]T, bool) {
	out := list[:0]
	removed := false
	for _, rec := range list {
		if id(rec) == target {
			removed = true
			continue
		}
		out = append(out, rec)
	}
	return out, removed
}
