// Package runtime is the adapter contract reconcilers drive containers
// and VMs through. Grounded on the teacher's internal/platform.Driver
// family (Name/Start/Stop/Ping plus a typed per-concern interface such as
// RPCDriver/StorageDriver) — Adapter generalises that nameable,
// health-checkable driver shape to "the thing that runs instances",
// keeping the lifecycle engine ignorant of whatever actually runs them.
package runtime

import (
	"context"
	"io"
)

// ErrorKind is the closed set of failure domains an Adapter maps its
// underlying runtime's errors onto, so internal/lifecycle can apply its
// transient/permanent/cancelled failure-semantics split without knowing
// anything about the concrete runtime.
type ErrorKind string

const (
	ErrNotFound    ErrorKind = "NotFound"
	ErrConflict    ErrorKind = "Conflict"
	ErrUnavailable ErrorKind = "Unavailable"
	ErrInvalidSpec ErrorKind = "InvalidSpec"
	ErrOther       ErrorKind = "Other"
)

// Error wraps an underlying runtime failure with its ErrorKind.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// WaitCondition is what Wait blocks until an instance reaches.
type WaitCondition string

const (
	WaitNotRunning WaitCondition = "not-running"
	WaitRemoved    WaitCondition = "removed"
)

// InstanceStatus is a runtime-reported snapshot of one running instance.
type InstanceStatus struct {
	Key       string            `json:"key"`
	Running   bool              `json:"running"`
	ExitCode  *int              `json:"exit_code,omitempty"`
	StartedAt string            `json:"started_at,omitempty"`
	IPAddress string            `json:"ip_address,omitempty"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// LogOptions configures a Logs stream.
type LogOptions struct {
	Follow     bool
	Since      string
	Tail       int
	Timestamps bool
}

// StatsOptions configures a Stats stream.
type StatsOptions struct {
	Stream bool
}

// ExecOptions configures an Exec session.
type ExecOptions struct {
	Cmd          []string
	Env          []string
	AttachStdin  bool
	AttachStdout bool
	AttachStderr bool
	Tty          bool
}

// ExecSession is a live bidirectional exec stream.
type ExecSession interface {
	io.Reader
	io.Writer
	Close() error
}

// Adapter is the only component that knows the underlying container/VM
// runtime exists; every reconciler in internal/lifecycle is written
// entirely in terms of it.
type Adapter interface {
	// CreateInstance materialises spec (opaque JSON, interpreted by the
	// adapter alone) as a new runtime instance under key.
	CreateInstance(ctx context.Context, key string, spec []byte) error

	Start(ctx context.Context, key string) error
	Stop(ctx context.Context, key string, timeout *int) error
	Kill(ctx context.Context, key string, signal string) error
	Restart(ctx context.Context, key string) error

	// Remove tears down key's runtime artefacts; force skips graceful stop.
	Remove(ctx context.Context, key string, force bool) error

	Inspect(ctx context.Context, key string) (*InstanceStatus, error)
	ListByLabel(ctx context.Context, label string) ([]InstanceStatus, error)

	Logs(ctx context.Context, key string, opts LogOptions) (io.ReadCloser, error)
	Stats(ctx context.Context, key string, opts StatsOptions) (io.ReadCloser, error)

	Wait(ctx context.Context, key string, condition WaitCondition) (*InstanceStatus, error)

	ExecCreate(ctx context.Context, key string, opts ExecOptions) (string, error)
	ExecStart(ctx context.Context, execID string) (ExecSession, error)
}
