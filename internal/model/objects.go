package model

import (
	"encoding/json"
	"time"
)

// Namespace scopes Cargoes and VMs. It has no spec history of its own and no
// reconciler; it is a pure grouping record.
type Namespace struct {
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NamespacePartial is the user-submitted payload for namespace creation.
type NamespacePartial struct {
	Name string `json:"name"`
}

// CargoSpecPartial is the user-submitted spec payload for a Cargo. Container
// image details beyond the fields the daemon itself interprets (env, name,
// replica count) are passed through opaquely to the runtime adapter.
type CargoSpecPartial struct {
	Name        string            `json:"name"`
	Namespace   string            `json:"namespace,omitempty"`
	Image       string            `json:"image"`
	Env         []string          `json:"env,omitempty"`
	Replicas    int               `json:"replicas,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	Metadata    json.RawMessage   `json:"metadata,omitempty"`
}

// Cargo is the durable row for a replicable container group.
type Cargo struct {
	Key       string    `json:"key" db:"key"` // "{name}.{namespace}"
	Name      string    `json:"name" db:"name"`
	Namespace string    `json:"namespace" db:"namespace"`
	SpecKey   string    `json:"spec_key" db:"spec_key"` // current spec row id
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CargoSummary is the public, API-facing projection joining Cargo + its
// current spec + its ObjPsStatus + runtime-reported instance counts.
type CargoSummary struct {
	Cargo
	Spec            CargoSpecPartial `json:"spec"`
	Status          ObjPsStatus      `json:"status"`
	InstanceTotal   int              `json:"instance_total"`
	InstanceRunning int              `json:"instance_running"`
}

// VmSpecPartial is the user-submitted spec payload for a VM.
type VmSpecPartial struct {
	Name      string            `json:"name"`
	Namespace string            `json:"namespace,omitempty"`
	Image     string            `json:"image"`
	CPU       int               `json:"cpu,omitempty"`
	MemoryMiB int               `json:"memory_mib,omitempty"`
	Labels    map[string]string `json:"labels,omitempty"`
	Metadata  json.RawMessage   `json:"metadata,omitempty"`
}

// Vm is the durable row for a virtual machine.
type Vm struct {
	Key       string    `json:"key" db:"key"`
	Name      string    `json:"name" db:"name"`
	Namespace string    `json:"namespace" db:"namespace"`
	SpecKey   string    `json:"spec_key" db:"spec_key"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// VmSummary is the public projection of a Vm.
type VmSummary struct {
	Vm
	Spec            VmSpecPartial `json:"spec"`
	Status          ObjPsStatus   `json:"status"`
	InstanceTotal   int           `json:"instance_total"`
	InstanceRunning int           `json:"instance_running"`
}

// JobSpecPartial is the user-submitted spec payload for a one-shot Job.
type JobSpecPartial struct {
	Name        string            `json:"name"`
	Image       string            `json:"image"`
	Env         []string          `json:"env,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	Metadata    json.RawMessage   `json:"metadata,omitempty"`
}

// Job is the durable row for a one-shot workload. Jobs are global (no
// namespace scoping), keyed by name alone.
type Job struct {
	Key       string    `json:"key" db:"key"` // == name
	Name      string    `json:"name" db:"name"`
	SpecKey   string    `json:"spec_key" db:"spec_key"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// JobSummary is the public projection of a Job.
type JobSummary struct {
	Job
	Spec   JobSpecPartial `json:"spec"`
	Status ObjPsStatus    `json:"status"`
}

// ResourceKindSpecPartial configures how Resource.Data is validated: either
// a JSON Schema document, or delegation to an external validating hook URL.
type ResourceKindSpecPartial struct {
	Name   string          `json:"name"` // "{domain}/{name}"
	Schema json.RawMessage `json:"schema,omitempty"`
	URL    string          `json:"url,omitempty"`
}

// ResourceKind is the durable row describing a resource kind's validation
// contract.
type ResourceKind struct {
	Key       string    `json:"key" db:"key"` // == Name, "{domain}/{name}"
	SpecKey   string    `json:"spec_key" db:"spec_key"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ResourceKindSummary is the public projection of a ResourceKind.
type ResourceKindSummary struct {
	ResourceKind
	Spec ResourceKindSpecPartial `json:"spec"`
}

// ResourcePartial is the user-submitted payload for a Resource; Data is
// validated against the named ResourceKind's schema (or URL hook).
type ResourcePartial struct {
	Name     string          `json:"name"`
	Kind     string          `json:"kind"` // resource-kind key, "{domain}/{name}"
	Data     json.RawMessage `json:"data"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// Resource is the durable row for a validated configuration object of a
// given ResourceKind.
type Resource struct {
	Key       string    `json:"key" db:"key"` // == Name
	Kind      string    `json:"kind" db:"kind"`
	SpecKey   string    `json:"spec_key" db:"spec_key"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ResourceSummary is the public projection of a Resource.
type ResourceSummary struct {
	Resource
	Spec ResourcePartial `json:"spec"`
}

// SecretPartial is the user-submitted payload for a Secret; Data is the
// plaintext value, encrypted at rest by internal/secretcrypto before it is
// ever persisted.
type SecretPartial struct {
	Name     string          `json:"name"`
	Data     string          `json:"data"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// Secret is the durable row for an opaque, encrypted-at-rest value.
type Secret struct {
	Key            string    `json:"key" db:"key"` // == Name
	EncryptedData  []byte    `json:"-" db:"encrypted_data"`
	SpecKey        string    `json:"spec_key" db:"spec_key"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// SecretSummary is the public projection of a Secret; Data is never included
// (secrets are write-only over the API once created).
type SecretSummary struct {
	Secret
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// Node is an inert daemon registration record; no clustering is implied.
type Node struct {
	Name        string          `json:"name" db:"name"`
	IPAddress   string          `json:"ip_address" db:"ip_address"`
	Gateway     string          `json:"gateway,omitempty" db:"gateway"`
	HostGateway string          `json:"host_gateway,omitempty" db:"host_gateway"`
	Metadata    json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Process is the row shape of the processes table: a denormalised record of
// the last runtime-observed instance for an object key. No code reads or
// writes it; the /processes verbs act on the runtime adapter directly and
// Inspect's instance counts come from each capability's CountInstances.
type Process struct {
	Key       string          `json:"key" db:"key"`
	Kind      Kind            `json:"kind" db:"kind"`
	Name      string          `json:"name" db:"name"`
	NodeName  string          `json:"node_name" db:"node_name"`
	Data      json.RawMessage `json:"data" db:"data"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}
