// ABOUTME: Lazily wires the device side: sync config, local badger store, remote client, engine.
// ABOUTME: Also holds the write helper that persists or queues and reports failed writes.
package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/cradle/internal/local"
	"github.com/harperreed/cradle/internal/models"
	"github.com/harperreed/cradle/internal/queue"
	"github.com/harperreed/cradle/internal/remote"
	"github.com/harperreed/cradle/internal/sync"
)

// client is the device-side stack for one command invocation.
type client struct {
	cfg    *sync.Config
	store  *local.Store
	remote *remote.Client
	engine *sync.Engine
}

// current is the stack opened by the running command. It lives for one
// invocation; Execute closes it and resets it to nil.
var current *client

// openClient loads sync config and opens the device store. It fails when
// the device has not been linked to a server.
func openClient() (*client, error) {
	if current != nil {
		return current, nil
	}

	cfg, err := sync.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load sync config: %w", err)
	}
	if !cfg.IsConfigured() {
		return nil, fmt.Errorf("not linked to a server; run 'cradle sync login' first")
	}

	hadDevice := cfg.DeviceID != ""
	sess, err := cfg.Session()
	if err != nil {
		return nil, err
	}
	if !hadDevice {
		if err := sync.SaveConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to save device id: %w", err)
		}
	}

	store, err := local.Open(cfg.LocalDir)
	if err != nil {
		return nil, err
	}

	rc := remote.New(cfg.Server, cfg.Token, cfg.OwnerID, remote.WithLogger(log))
	q := queue.New(store, rc, log)
	engine := sync.NewEngine(sess, store, q, rc, sync.WithPolicy(cfg.Policy()), sync.WithLogger(log))

	current = &client{cfg: cfg, store: store, remote: rc, engine: engine}
	return current, nil
}

func closeClient() {
	if current == nil {
		return
	}
	if err := current.store.Close(); err != nil {
		log.Warn("close local store", "error", err)
	}
	current = nil
}

// write applies m on the device and persists it, queueing when the server
// cannot be reached. It reports whether the write was queued.
func (c *client) write(ctx context.Context, m models.Mutation) (queued bool, err error) {
	pending, err := c.engine.Apply(ctx, m)
	if err != nil {
		return false, err
	}
	queued, err = pending.PersistOrDefer(ctx)
	c.printNotices()
	if err != nil {
		if remote.IsUnauthorized(err) {
			return false, fmt.Errorf("%w\n\nThe token was rejected; run 'cradle sync login' with a new token", err)
		}
		return false, err
	}
	if queued {
		color.Yellow("⚠ Server unreachable; saved locally and queued for sync")
	}
	return queued, nil
}

// printNotices reports writes the server rejected permanently.
func (c *client) printNotices() {
	for {
		select {
		case n := <-c.engine.Notices():
			color.Red("✗ %s", n.String())
		default:
			return
		}
	}
}

// reportQueue prints a drain report.
func reportQueue(r queue.Report) {
	if r.Offline {
		color.Yellow("⚠ Server unreachable; queued writes kept")
		return
	}
	if r.Applied > 0 {
		color.Green("✓ Sent %d queued writes", r.Applied)
	}
	if r.Discarded > 0 {
		color.Red("✗ %d queued writes rejected by the server", r.Discarded)
	}
	if r.Dropped > 0 {
		color.Red("✗ %d queued writes dropped after repeated failures", r.Dropped)
	}
	if n := r.Remaining(); n > 0 {
		color.Yellow("⚠ %d writes still queued", n)
	}
}
