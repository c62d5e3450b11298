// Package registry is the per-kind capability registry the lifecycle
// engine dispatches through, generalised from the teacher's
// system/core/registry.go + service_registry.go module-by-name lookup
// (Engine.Lookup/GetService/HasService/ListServices) from "service
// module" to "reconcilable object kind".
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/nanocl-io/nanocld/internal/model"
)

// Capability is the full behaviour contract internal/lifecycle drives any
// reconcilable kind through. A type implementing it plugs a new object
// kind (Cargo, Vm, Job, Resource, ResourceKind, Secret) into the generic
// lifecycle pipelines without internal/lifecycle importing the kind's
// package at all.
type Capability interface {
	// Kind is this capability's object kind discriminator.
	Kind() model.Kind

	// Table is the kind's own row table, e.g. "cargoes" for Cargo.
	Table() string

	// InsertColumns lists the db columns ToRow's row carries, in the order
	// internal/lifecycle should bind them on create. spec_key, created_at and
	// updated_at are never included: the lifecycle engine sets spec_key after
	// spechistory.Append, and created_at/updated_at default at the database.
	InsertColumns() []string

	// NewRow allocates a zero-value pointer to this kind's row type, used by
	// internal/lifecycle to read an existing row back from the table named
	// by Table() without importing the concrete kind package.
	NewRow() any

	// Validate checks a partial spec payload (JSON-decoded into the kind's
	// own partial type upstream) for the name grammar, required fields, and
	// any kind-specific schema validation.
	Validate(ctx context.Context, partial any) error

	// ToRow projects a validated partial into the kind's db row shape,
	// ready for persistence.
	ToRow(partial any) (row any, kindKey string, err error)

	// FromRow projects a stored row plus its current spec data into the
	// kind's public summary type.
	FromRow(row any, specData []byte) (summary any, err error)

	// Materialise asks the runtime adapter to bring a key's actual state
	// toward its wanted state (the reconciler's main body).
	Materialise(ctx context.Context, kindKey string, specData []byte) error

	// Teardown asks the runtime adapter to stop and remove a key's runtime
	// artefacts.
	Teardown(ctx context.Context, kindKey string, force bool) error

	// ActorOf projects a row into the weak EventActor reference used for
	// event fanout.
	ActorOf(row any) model.EventActor
}

// Registry looks capabilities up by kind, the way Engine.Lookup looks
// service modules up by name.
type Registry struct {
	mu    sync.RWMutex
	kinds map[model.Kind]Capability
}

func New() *Registry {
	return &Registry{kinds: make(map[model.Kind]Capability)}
}

// Register adds a capability, keyed by its own Kind(). Re-registering the
// same kind overwrites the previous entry, matching the teacher's
// idempotent module-registration behaviour.
func (r *Registry) Register(c Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds[c.Kind()] = c
}

// Get returns the capability for kind, or an error if none is registered.
func (r *Registry) Get(kind model.Kind) (Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.kinds[kind]
	if !ok {
		return nil, fmt.Errorf("no capability registered for kind %q", kind)
	}
	return c, nil
}

// Has reports whether kind has a registered capability.
func (r *Registry) Has(kind model.Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.kinds[kind]
	return ok
}

// Kinds lists every registered kind.
func (r *Registry) Kinds() []model.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Kind, 0, len(r.kinds))
	for k := range r.kinds {
		out = append(out, k)
	}
	return out
}
