package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Kind enumerates every object kind the spec-history store and event bus
// discriminate on.
type Kind string

const (
	KindNamespace    Kind = "Namespace"
	KindCargo        Kind = "Cargo"
	KindVm           Kind = "Vm"
	KindJob          Kind = "Job"
	KindResource     Kind = "Resource"
	KindResourceKind Kind = "ResourceKind"
	KindSecret       Kind = "Secret"
)

// Spec is one append-only row in the shared spec-history table. Spec rows
// are immutable once written: CreatedAt is the only timestamp they carry,
// and it is never updated in place (see SPEC_FULL.md's resolution of the
// specs.created_at open question).
type Spec struct {
	ID       uuid.UUID       `json:"id" db:"id"`
	Kind     Kind            `json:"kind" db:"kind"`
	KindKey  string          `json:"kind_key" db:"kind_key"`
	Version  string          `json:"version" db:"version"`
	Data     json.RawMessage `json:"data" db:"data"`
	Metadata json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// NewSpec constructs a Spec row as spechistory.Store.Append does; ID and
// CreatedAt are assigned by the store on insert.
func NewSpec(kind Kind, kindKey, version string, data, metadata json.RawMessage) *Spec {
	return &Spec{
		Kind:     kind,
		KindKey:  kindKey,
		Version:  version,
		Data:     data,
		Metadata: metadata,
	}
}
