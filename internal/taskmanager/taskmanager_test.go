package taskmanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nanocl-io/nanocld/internal/apierror"
)

func TestRunRejectsConcurrentTaskForSameKey(t *testing.T) {
	m := New()
	started := make(chan struct{})
	release := make(chan struct{})

	err := m.Run(context.Background(), "web.global", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	<-started

	err = m.Run(context.Background(), "web.global", func(ctx context.Context) error { return nil })
	if apierror.KindOf(err) != apierror.Conflict {
		t.Fatalf("expected Conflict, got %v", err)
	}

	close(release)
	if err := m.Wait(context.Background(), "web.global"); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestRemoveCancelsCooperatively(t *testing.T) {
	m := New()
	started := make(chan struct{})
	cleanedUp := false

	err := m.Run(context.Background(), "web.global", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		cleanedUp = true
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	<-started

	if err := m.Remove(context.Background(), "web.global"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !cleanedUp {
		t.Fatal("expected task to observe cancellation and clean up")
	}
	if m.Running("web.global") {
		t.Fatal("expected entry to be removed after completion")
	}
}

func TestWaitIsNoOpWhenNoTaskRunning(t *testing.T) {
	m := New()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := m.Wait(ctx, "missing"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestRunPropagatesTaskError(t *testing.T) {
	m := New()
	wantErr := errors.New("boom")
	if err := m.Run(context.Background(), "k", func(ctx context.Context) error { return wantErr }); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := m.Wait(context.Background(), "k"); !errors.Is(err, wantErr) {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
}
