// Package vm implements the registry.Capability for the Vm object kind: a
// single virtual machine instance, unlike Cargo's replica group.
package vm

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

func (c *Capability) Kind() model.Kind { return model.KindVm }

func (c *Capability) Table() string { return "vms" }

func (c *Capability) InsertColumns() []string { return []string{"key", "name", "namespace"} }

func (c *Capability) NewRow() any { return &model.Vm{} }

func (c *Capability) Validate(ctx context.Context, partial any) error {
	p, ok := partial.(*model.VmSpecPartial)
	if !ok {
		return apierror.InvalidInputf("vm: expected *model.VmSpecPartial, got %T", partial)
	}
	if err := model.ValidateName(p.Name); err != nil {
		return apierror.InvalidInputf("vm: %v", err)
	}
	if p.Namespace != "" {
		if err := model.ValidateName(p.Namespace); err != nil {
			return apierror.InvalidInputf("vm: namespace: %v", err)
		}
	}
	if p.Image == "" {
		return apierror.InvalidInputf("vm: image is required")
	}
	if p.CPU < 0 || p.MemoryMiB < 0 {
		return apierror.InvalidInputf("vm: cpu and memory_mib must be >= 0")
	}
	return nil
}

func (c *Capability) ToRow(partial any) (any, string, error) {
	p, ok := partial.(*model.VmSpecPartial)
	if !ok {
		return nil, "", apierror.InvalidInputf("vm: expected *model.VmSpecPartial, got %T", partial)
	}
	namespace := p.Namespace
	if namespace == "" {
		namespace = "global"
	}
	key := model.NamespacedKey(p.Name, namespace)
	row := &model.Vm{Key: key, Name: p.Name, Namespace: namespace}
	return row, key, nil
}

func (c *Capability) FromRow(row any, specData []byte) (any, error) {
	machine, ok := row.(*model.Vm)
	if !ok {
		return nil, apierror.InvalidInputf("vm: expected *model.Vm, got %T", row)
	}
	var spec model.VmSpecPartial
	if len(specData) > 0 {
		if err := json.Unmarshal(specData, &spec); err != nil {
			return nil, apierror.Wrap(apierror.Internal, "vm: decode spec", err)
		}
	}
	return &model.VmSummary{Vm: *machine, Spec: spec}, nil
}

func (c *Capability) Materialise(ctx context.Context, kindKey string, specData []byte) error {
	if err := c.Adapter.CreateInstance(ctx, kindKey, specData); err != nil {
		if rerr, ok := err.(*runtime.Error); !ok || rerr.Kind != runtime.ErrConflict {
			return translateRuntimeErr(err)
		}
	}
	return translateRuntimeErr(c.Adapter.Start(ctx, kindKey))
}

func (c *Capability) Teardown(ctx context.Context, kindKey string, force bool) error {
	return translateRuntimeErr(c.Adapter.Remove(ctx, kindKey, force))
}

// CountInstances reports the vm's single instance as 0 or 1, matching
// the non-replicated single-instance shape Materialise/Teardown assume.
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
	machine, ok := row.(*model.Vm)
	if !ok {
		return model.EventActor{Kind: model.KindVm}
	}
	return model.EventActor{
		Kind: model.KindVm,
		Key:  machine.Key,
		Attributes: map[string]string{
			"name":      machine.Name,
			"namespace": machine.Namespace,
		},
	}
}

func translateRuntimeErr(err error) error {
	if err == nil {
		return nil
	}
	rerr, ok := err.(*runtime.Error)
	if !ok {
		return apierror.Wrap(apierror.Internal, "vm: runtime error", err)
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
