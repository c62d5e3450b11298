// Package taskmanager guarantees at-most-one active reconciler task per
// object key, the primitive internal/lifecycle builds its background
// reconciliation on top of. Grounded on the teacher's
// system/events/router.go RequestRouter (mutex-guarded running state,
// stopCh/doneCh lifecycle), generalised from a single worker-pool router
// keyed by request id into a per-key single-flight map.
package taskmanager

import (
	"context"
	"sync"

	"github.com/nanocl-io/nanocld/internal/apierror"
)

// Task is the function a reconciler runs; it must poll ctx at every
// suspension point and clean up any runtime side effect before returning,
// per Invariant E2.
type Task func(ctx context.Context) error

type entry struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Manager is the per-key single-flight task coordinator.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func New() *Manager {
	return &Manager{entries: make(map[string]*entry)}
}

// Run starts task under key if no task is currently running for it;
// otherwise it rejects with apierror.Conflict (Invariant E1: map mutation
// and task spawn are serialised under a single mutex, so the map can never
// be observed with zero or two tasks for the same key).
func (m *Manager) Run(ctx context.Context, key string, task Task) error {
	m.mu.Lock()
	if _, exists := m.entries[key]; exists {
		m.mu.Unlock()
		return apierror.Conflictf("a task is already running for %q", key)
	}
	taskCtx, cancel := context.WithCancel(ctx)
	e := &entry{cancel: cancel, done: make(chan struct{})}
	m.entries[key] = e
	m.mu.Unlock()

	go func() {
		e.err = task(taskCtx)
		cancel()
		m.mu.Lock()
		if m.entries[key] == e {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		close(e.done)
	}()
	return nil
}

// Wait blocks until the active task for key completes, returning its
// error. It is a no-op returning nil if no task is running for key.
func (m *Manager) Wait(ctx context.Context, key string) error {
	m.mu.Lock()
	e, exists := m.entries[key]
	m.mu.Unlock()
	if !exists {
		return nil
	}
	select {
	case <-e.done:
		return e.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Remove cancels the active task for key cooperatively and awaits its
// exit; it is a no-op if no task is running for key.
func (m *Manager) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	e, exists := m.entries[key]
	m.mu.Unlock()
	if !exists {
		return nil
	}
	e.cancel()
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether a task is currently active for key.
func (m *Manager) Running(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.entries[key]
	return exists
}
