// Package store implements the persistence gateway (generic CRUD + filter
// translation) that every object kind's postgres-backed repository builds
// on, grounded in the teacher's pkg/storage/crud.go and
// pkg/storage/postgres/base_store.go generic-store pattern.
package store

import (
	"context"

	"github.com/nanocl-io/nanocld/internal/apierror"
)

// Pool bounds how many blocking database calls may run concurrently, so a
// burst of API requests can never starve the single-threaded event loop or
// the lifecycle engine's reconciler goroutines of progress. It is a simple
// counting semaphore, not a goroutine pool: Go's scheduler already
// multiplexes blocking syscalls onto OS threads, so all Pool needs to do is
// cap fan-out.
type Pool struct {
	sem chan struct{}
}

// NewPool builds a Pool allowing at most size concurrent blocking calls.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 20
	}
	return &Pool{sem: make(chan struct{}, size)}
}

// Do runs fn on the pool, blocking the caller's goroutine (never the event
// loop or the task manager's single dispatch goroutine, since both always
// invoke persistence calls through Do from their own per-task goroutine)
// until a slot is free or ctx is cancelled.
func Do[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return zero, apierror.Wrap(apierror.Cancelled, "persistence call cancelled before a worker slot was free", ctx.Err())
	}
	defer func() { <-p.sem }()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		val, err := fn(ctx)
		done <- result{val, err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		return zero, apierror.Wrap(apierror.Cancelled, "persistence call cancelled", ctx.Err())
	}
}
