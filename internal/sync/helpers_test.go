// ABOUTME: Shared test helpers for sync package tests.
// ABOUTME: Provides an in-process remote backed by a real record store and engine setup.

package sync

import (
	"context"
	"path/filepath"
	gosync "sync"
	"testing"
	"time"

	"github.com/harperreed/cradle/internal/errs"
	"github.com/harperreed/cradle/internal/local"
	"github.com/harperreed/cradle/internal/models"
	"github.com/harperreed/cradle/internal/queue"
	"github.com/harperreed/cradle/internal/session"
	"github.com/harperreed/cradle/internal/storage"
	"github.com/stretchr/testify/require"
)

// storeRemote serves a storage.DB in-process. While offline every call
// fails transiently; fail can reject individual mutations.
type storeRemote struct {
	db *storage.DB

	mu      gosync.Mutex
	offline bool
	fail    func(m models.Mutation) error
	calls   []string
}

func (r *storeRemote) setOffline(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offline = v
}

func (r *storeRemote) Online(context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.offline
}

func (r *storeRemote) Snapshot(ctx context.Context, owner int64) (*models.Snapshot, error) {
	r.mu.Lock()
	offline := r.offline
	r.calls = append(r.calls, "snapshot")
	r.mu.Unlock()
	if offline {
		return nil, errs.Transient("snapshot", context.DeadlineExceeded)
	}
	return r.db.GetSnapshot(ctx, owner)
}

func (r *storeRemote) Execute(ctx context.Context, owner int64, m models.Mutation) error {
	r.mu.Lock()
	offline, fail := r.offline, r.fail
	key, _ := m.RecordKey()
	r.calls = append(r.calls, string(m.Action)+" "+key)
	r.mu.Unlock()
	if offline {
		return errs.Transient(string(m.Action), context.DeadlineExceeded)
	}
	if fail != nil {
		if err := fail(m); err != nil {
			return err
		}
	}
	return storage.Execute(ctx, r.db, owner, m)
}

func (r *storeRemote) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type testEnv struct {
	engine *Engine
	remote *storeRemote
	store  *local.Store
	queue  *queue.Queue
	sess   session.Session
}

// setupTestEngine wires an engine for owner 100 to a fresh server store.
func setupTestEngine(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	return setupTestEngineFor(t, 100, nil, opts...)
}

func setupTestEngineFor(t *testing.T, owner int64, db *storage.DB, opts ...Option) *testEnv {
	t.Helper()
	if db == nil {
		var err error
		db, err = storage.Open(filepath.Join(t.TempDir(), "server.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
	}

	store, err := local.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	sess, err := session.New(owner, "test-device")
	require.NoError(t, err)

	remote := &storeRemote{db: db}
	q := queue.New(store, remote, nil)
	return &testEnv{
		engine: NewEngine(sess, store, q, remote, opts...),
		remote: remote,
		store:  store,
		queue:  q,
		sess:   sess,
	}
}

func mutation(t *testing.T, action models.Action, v any) models.Mutation {
	t.Helper()
	m, err := models.NewMutation(action, v)
	require.NoError(t, err)
	return m
}

func activityAt(id, typ string, at time.Time) *models.Activity {
	a := models.NewActivity(typ).WithTimestamp(at)
	a.ID = id
	return a
}
