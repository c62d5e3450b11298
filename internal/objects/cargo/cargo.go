// Package cargo implements the registry.Capability for the Cargo object
// kind: a replicable group of containers sharing one spec, reconciled to
// its wanted replica count via the runtime adapter. Grounded on
// original_source/bin/nanocld/src/services/cargo.rs (list/inspect/create/
// delete handler ordering) and internal/model's CargoSpecPartial/Cargo/
// CargoSummary shapes.
package cargo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nanocl-io/nanocld/internal/apierror"
	"github.com/nanocl-io/nanocld/internal/model"
	"github.com/nanocl-io/nanocld/internal/runtime"
)

// Capability implements registry.Capability for model.KindCargo.
type Capability struct {
	Adapter runtime.Adapter
}

func New(adapter runtime.Adapter) *Capability {
	return &Capability{Adapter: adapter}
}

func (c *Capability) Kind() model.Kind { return model.KindCargo }

func (c *Capability) Table() string { return "cargoes" }

func (c *Capability) InsertColumns() []string { return []string{"key", "name", "namespace"} }

func (c *Capability) NewRow() any { return &model.Cargo{} }

func (c *Capability) Validate(ctx context.Context, partial any) error {
	p, ok := partial.(*model.CargoSpecPartial)
	if !ok {
		return apierror.InvalidInputf("cargo: expected *model.CargoSpecPartial, got %T", partial)
	}
	if err := model.ValidateName(p.Name); err != nil {
		return apierror.InvalidInputf("cargo: %v", err)
	}
	if p.Namespace != "" {
		if err := model.ValidateName(p.Namespace); err != nil {
			return apierror.InvalidInputf("cargo: namespace: %v", err)
		}
	}
	if p.Image == "" {
		return apierror.InvalidInputf("cargo: image is required")
	}
	if p.Replicas < 0 {
		return apierror.InvalidInputf("cargo: replicas must be >= 0")
	}
	return nil
}

func (c *Capability) ToRow(partial any) (any, string, error) {
	p, ok := partial.(*model.CargoSpecPartial)
	if !ok {
		return nil, "", apierror.InvalidInputf("cargo: expected *model.CargoSpecPartial, got %T", partial)
	}
	namespace := p.Namespace
	if namespace == "" {
		namespace = "global"
	}
	key := model.NamespacedKey(p.Name, namespace)
	row := &model.Cargo{Key: key, Name: p.Name, Namespace: namespace}
	return row, key, nil
}

func (c *Capability) FromRow(row any, specData []byte) (any, error) {
	cargo, ok := row.(*model.Cargo)
	if !ok {
		return nil, apierror.InvalidInputf("cargo: expected *model.Cargo, got %T", row)
	}
	var spec model.CargoSpecPartial
	if len(specData) > 0 {
		if err := json.Unmarshal(specData, &spec); err != nil {
			return nil, apierror.Wrap(apierror.Internal, "cargo: decode spec", err)
		}
	}
	return &model.CargoSummary{Cargo: *cargo, Spec: spec}, nil
}

// Materialise asks the runtime adapter to bring the cargo's replica count
// up to spec. Replica scaling beyond 1 is represented as numbered
// instance keys ("{key}.{n}"); a real container runtime would fan these
// out concurrently, but the single-threaded reconciler here creates them
// in order so failures are attributable to a specific replica index.
func (c *Capability) Materialise(ctx context.Context, kindKey string, specData []byte) error {
	var spec model.CargoSpecPartial
	if err := json.Unmarshal(specData, &spec); err != nil {
		return apierror.Wrap(apierror.Internal, "cargo: decode spec", err)
	}
	replicas := spec.Replicas
	if replicas <= 0 {
		replicas = 1
	}
	for i := 0; i < replicas; i++ {
		instanceKey := fmt.Sprintf("%s.%d", kindKey, i)
		if err := c.Adapter.CreateInstance(ctx, instanceKey, specData); err != nil {
			if rerr, ok := err.(*runtime.Error); !ok || rerr.Kind != runtime.ErrConflict {
				return translateRuntimeErr(err)
			}
		}
		if err := c.Adapter.Start(ctx, instanceKey); err != nil {
			return translateRuntimeErr(err)
		}
	}
	return nil
}

func (c *Capability) Teardown(ctx context.Context, kindKey string, force bool) error {
	instances, err := c.Adapter.ListByLabel(ctx, kindKey)
	if err != nil {
		return translateRuntimeErr(err)
	}
	for _, inst := range instances {
		if err := c.Adapter.Remove(ctx, inst.Key, force); err != nil {
			return translateRuntimeErr(err)
		}
	}
	// Fixed-count fallback in case ListByLabel found nothing (the Dev
	// adapter does not label instances), tearing down the conventional
	// "{key}.{n}" instance keys Materialise created.
	for i := 0; ; i++ {
		instanceKey := fmt.Sprintf("%s.%d", kindKey, i)
		if _, err := c.Adapter.Inspect(ctx, instanceKey); err != nil {
			break
		}
		if err := c.Adapter.Remove(ctx, instanceKey, force); err != nil {
			return translateRuntimeErr(err)
		}
	}
	return nil
}

// CountInstances reports how many of the cargo's numbered replica
// instances the runtime adapter currently knows about, and how many of
// those are running. Consumed opportunistically by internal/lifecycle's
// Inspect pipeline via an optional interface, not part of the core
// Capability contract every kind must implement.
func (c *Capability) CountInstances(ctx context.Context, kindKey string) (total, running int, err error) {
	instances, lerr := c.Adapter.ListByLabel(ctx, kindKey)
	if lerr != nil {
		return 0, 0, translateRuntimeErr(lerr)
	}
	if len(instances) > 0 {
		for _, inst := range instances {
			total++
			if inst.Running {
				running++
			}
		}
		return total, running, nil
	}
	for i := 0; ; i++ {
		inst, ierr := c.Adapter.Inspect(ctx, fmt.Sprintf("%s.%d", kindKey, i))
		if ierr != nil {
			break
		}
		total++
		if inst.Running {
			running++
		}
	}
	return total, running, nil
}

func (c *Capability) ActorOf(row any) model.EventActor {
	cargo, ok := row.(*model.Cargo)
	if !ok {
		return model.EventActor{Kind: model.KindCargo}
	}
	return model.EventActor{
		Kind: model.KindCargo,
		Key:  cargo.Key,
		Attributes: map[string]string{
			"name":      cargo.Name,
			"namespace": cargo.Namespace,
		},
	}
}

func translateRuntimeErr(err error) error {
	rerr, ok := err.(*runtime.Error)
	if !ok {
		return apierror.Wrap(apierror.Internal, "cargo: runtime error", err)
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
