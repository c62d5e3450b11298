// Package job implements the registry.Capability for the Job object kind:
// a global, one-shot workload keyed by name alone (no namespace scoping).
package job

import (
	"context"
	"encoding/json"

	"github.com/nanocl-io/nanocld/internal/apierror"
	"github.com/nanocl-io/nanocld/internal/model"
	"github.com/nanocl-io/nanocld/internal/runtime"
)

type Capability struct {
	Adapter runtime.Adapter
}

func New(adapter runtime.Adapter) *Capability {
	return &Capability{Adapter: adapter}
}

func (c *Capability) Kind() model.Kind { return model.KindJob }

func (c *Capability) Table() string { return "jobs" }

func (c *Capability) InsertColumns() []string { return []string{"key", "name"} }

func (c *Capability) NewRow() any { return &model.Job{} }

func (c *Capability) Validate(ctx context.Context, partial any) error {
	p, ok := partial.(*model.JobSpecPartial)
	if !ok {
		return apierror.InvalidInputf("job: expected *model.JobSpecPartial, got %T", partial)
	}
	if err := model.ValidateName(p.Name); err != nil {
		return apierror.InvalidInputf("job: %v", err)
	}
	if p.Image == "" {
		return apierror.InvalidInputf("job: image is required")
	}
	return nil
}

func (c *Capability) ToRow(partial any) (any, string, error) {
	p, ok := partial.(*model.JobSpecPartial)
	if !ok {
		return nil, "", apierror.InvalidInputf("job: expected *model.JobSpecPartial, got %T", partial)
	}
	row := &model.Job{Key: p.Name, Name: p.Name}
	return row, p.Name, nil
}

func (c *Capability) FromRow(row any, specData []byte) (any, error) {
	j, ok := row.(*model.Job)
	if !ok {
		return nil, apierror.InvalidInputf("job: expected *model.Job, got %T", row)
	}
	var spec model.JobSpecPartial
	if len(specData) > 0 {
		if err := json.Unmarshal(specData, &spec); err != nil {
			return nil, apierror.Wrap(apierror.Internal, "job: decode spec", err)
		}
	}
	return &model.JobSummary{Job: *j, Spec: spec}, nil
}

// Materialise runs the job to completion: create, start, then wait for it
// to stop running. Jobs never reconcile toward a steady "running" state
// the way Cargo/Vm do — reaching Finish/Fail is itself the wanted end
// state, so Materialise blocks until the instance exits.
func (c *Capability) Materialise(ctx context.Context, kindKey string, specData []byte) error {
	if err := c.Adapter.CreateInstance(ctx, kindKey, specData); err != nil {
		if rerr, ok := err.(*runtime.Error); !ok || rerr.Kind != runtime.ErrConflict {
			return translateRuntimeErr(err)
		}
	}
	if err := c.Adapter.Start(ctx, kindKey); err != nil {
		return translateRuntimeErr(err)
	}
	_, err := c.Adapter.Wait(ctx, kindKey, runtime.WaitNotRunning)
	return translateRuntimeErr(err)
}

func (c *Capability) Teardown(ctx context.Context, kindKey string, force bool) error {
	return translateRuntimeErr(c.Adapter.Remove(ctx, kindKey, force))
}

// CountInstances reports the job's single instance as 0 or 1.
func (c *Capability) CountInstances(ctx context.Context, kindKey string) (total, running int, err error) {
	inst, ierr := c.Adapter.Inspect(ctx, kindKey)
	if ierr != nil {
		if rerr, ok := ierr.(*runtime.Error); ok && rerr.Kind == runtime.ErrNotFound {
			return 0, 0, nil
		}
		return 0, 0, translateRuntimeErr(ierr)
	}
	if inst.Running {
		return 1, 1, nil
	}
	return 1, 0, nil
}

func (c *Capability) ActorOf(row any) model.EventActor {
	j, ok := row.(*model.Job)
	if !ok {
		return model.EventActor{Kind: model.KindJob}
	}
	return model.EventActor{Kind: model.KindJob, Key: j.Key, Attributes: map[string]string{"name": j.Name}}
}

func translateRuntimeErr(err error) error {
	if err == nil {
		return nil
	}
	rerr, ok := err.(*runtime.Error)
	if !ok {
		return apierror.Wrap(apierror.Internal, "job: runtime error", err)
	}
	switch rerr.Kind {
	case runtime.ErrNotFound:
		return apierror.Wrap(apierror.NotFound, rerr.Msg, rerr.Err)
	case runtime.ErrConflict:
		return apierror.Wrap(apierror.Conflict, rerr.Msg, rerr.Err)
	case runtime.ErrInvalidSpec:
		return apierror.Wrap(apierror.InvalidInput, rerr.Msg, rerr.Err)
	case runtime.ErrUnavailable:
		return apierror.Wrap(apierror.Unavailable, rerr.Msg, rerr.Err)
	default:
		return apierror.Wrap(apierror.Internal, rerr.Msg, rerr.Err)
	}
}
