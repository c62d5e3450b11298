package runtime

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Dev is an in-memory Adapter used for development and tests, grounded
// on the teacher's infrastructure/database.MockRepository pattern (a
// mutex-guarded map standing in for a real backend). It "runs" instances
// by just flipping a Running flag, with no real process or VM involved.
type Dev struct {
	mu        sync.RWMutex
	instances map[string]*InstanceStatus
	execs     map[string][]string
}

func NewDev() *Dev {
	return &Dev{
		instances: make(map[string]*InstanceStatus),
		execs:     make(map[string][]string),
	}
}

func (d *Dev) CreateInstance(ctx context.Context, key string, spec []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.instances[key]; exists {
		return NewError(ErrConflict, "instance already exists", nil)
	}
	d.instances[key] = &InstanceStatus{Key: key, StartedAt: time.Now().Format(time.RFC3339)}
	return nil
}

func (d *Dev) Start(ctx context.Context, key string) error {
	return d.setRunning(key, true, nil)
}

func (d *Dev) Stop(ctx context.Context, key string, timeout *int) error {
	return d.setRunning(key, false, intPtr(0))
}

func (d *Dev) Kill(ctx context.Context, key string, signal string) error {
	return d.setRunning(key, false, intPtr(137))
}

func (d *Dev) Restart(ctx context.Context, key string) error {
	if err := d.setRunning(key, false, intPtr(0)); err != nil {
		return err
	}
	return d.setRunning(key, true, nil)
}

func (d *Dev) Remove(ctx context.Context, key string, force bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	inst, exists := d.instances[key]
	if !exists {
		return nil // idempotent, matching the teacher's ContentDriver.Delete contract
	}
	if inst.Running && !force {
		return NewError(ErrConflict, "instance is still running", nil)
	}
	delete(d.instances, key)
	return nil
}

func (d *Dev) Inspect(ctx context.Context, key string) (*InstanceStatus, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	inst, exists := d.instances[key]
	if !exists {
		return nil, NewError(ErrNotFound, "instance not found", nil)
	}
	cp := *inst
	return &cp, nil
}

func (d *Dev) ListByLabel(ctx context.Context, label string) ([]InstanceStatus, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]InstanceStatus, 0, len(d.instances))
	for _, inst := range d.instances {
		if label == "" || inst.Labels[label] != "" {
			out = append(out, *inst)
		}
	}
	return out, nil
}

func (d *Dev) Logs(ctx context.Context, key string, opts LogOptions) (io.ReadCloser, error) {
	if _, err := d.Inspect(ctx, key); err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewBufferString("")), nil
}

func (d *Dev) Stats(ctx context.Context, key string, opts StatsOptions) (io.ReadCloser, error) {
	if _, err := d.Inspect(ctx, key); err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewBufferString(`{"cpu":0,"memory":0}`)), nil
}

// Wait blocks until key's instance matches condition, polling ctx for
// cancellation at every suspension point.
func (d *Dev) Wait(ctx context.Context, key string, condition WaitCondition) (*InstanceStatus, error) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		inst, err := d.Inspect(ctx, key)
		if condition == WaitRemoved {
			if err != nil {
				return &InstanceStatus{Key: key}, nil
			}
		} else if err == nil && !inst.Running {
			return inst, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *Dev) ExecCreate(ctx context.Context, key string, opts ExecOptions) (string, error) {
	if _, err := d.Inspect(ctx, key); err != nil {
		return "", err
	}
	id := uuid.New().String()
	d.mu.Lock()
	d.execs[id] = opts.Cmd
	d.mu.Unlock()
	return id, nil
}

func (d *Dev) ExecStart(ctx context.Context, execID string) (ExecSession, error) {
	d.mu.RLock()
	_, exists := d.execs[execID]
	d.mu.RUnlock()
	if !exists {
		return nil, NewError(ErrNotFound, "exec session not found", nil)
	}
	return &devExecSession{buf: &bytes.Buffer{}}, nil
}

func (d *Dev) setRunning(key string, running bool, exitCode *int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	inst, exists := d.instances[key]
	if !exists {
		return NewError(ErrNotFound, "instance not found", nil)
	}
	inst.Running = running
	inst.ExitCode = exitCode
	return nil
}

// devExecSession is a loopback exec stream: whatever is written is what
// can be read back, with no actual process behind it.
type devExecSession struct {
	buf *bytes.Buffer
}

func (s *devExecSession) Read(p []byte) (int, error)  { return s.buf.Read(p) }
func (s *devExecSession) Write(p []byte) (int, error) { return s.buf.Write(p) }
func (s *devExecSession) Close() error                { return nil }

func intPtr(n int) *int { return &n }
