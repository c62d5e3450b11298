// Package resourcekind implements the registry.Capability for the
// ResourceKind object kind: a named validation contract ("{domain}/{name}")
// that Resource rows of that kind are checked against.
package resourcekind

import (
	"context"
	"encoding/json"

	"github.com/xeipuuv/gojsonschema"

	"github.com/nanocl-io/nanocld/internal/apierror"
	"github.com/nanocl-io/nanocld/internal/model"
)

// Capability has no runtime.Adapter: a ResourceKind is a pure validation
// contract, never materialised against a runtime.
type Capability struct{}

func New() *Capability { return &Capability{} }

func (c *Capability) Kind() model.Kind { return model.KindResourceKind }

func (c *Capability) Table() string { return "resource_kinds" }

func (c *Capability) InsertColumns() []string { return []string{"key"} }

func (c *Capability) NewRow() any { return &model.ResourceKind{} }

func (c *Capability) Validate(ctx context.Context, partial any) error {
	p, ok := partial.(*model.ResourceKindSpecPartial)
	if !ok {
		return apierror.InvalidInputf("resourcekind: expected *model.ResourceKindSpecPartial, got %T", partial)
	}
	if _, _, err := model.ValidateResourceKindName(p.Name); err != nil {
		return apierror.InvalidInputf("resourcekind: %v", err)
	}
	if len(p.Schema) == 0 && p.URL == "" {
		return apierror.InvalidInputf("resourcekind: one of schema or url is required")
	}
	if len(p.Schema) > 0 {
		if _, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(p.Schema)); err != nil {
			return apierror.InvalidInputf("resourcekind: invalid schema: %v", err)
		}
	}
	return nil
}

func (c *Capability) ToRow(partial any) (any, string, error) {
	p, ok := partial.(*model.ResourceKindSpecPartial)
	if !ok {
		return nil, "", apierror.InvalidInputf("resourcekind: expected *model.ResourceKindSpecPartial, got %T", partial)
	}
	row := &model.ResourceKind{Key: p.Name}
	return row, p.Name, nil
}

func (c *Capability) FromRow(row any, specData []byte) (any, error) {
	rk, ok := row.(*model.ResourceKind)
	if !ok {
		return nil, apierror.InvalidInputf("resourcekind: expected *model.ResourceKind, got %T", row)
	}
	var spec model.ResourceKindSpecPartial
	if len(specData) > 0 {
		if err := json.Unmarshal(specData, &spec); err != nil {
			return nil, apierror.Wrap(apierror.Internal, "resourcekind: decode spec", err)
		}
	}
	return &model.ResourceKindSummary{ResourceKind: *rk, Spec: spec}, nil
}

// Materialise is a no-op: a ResourceKind has no runtime footprint, it only
// gates validation of Resource rows that reference it.
func (c *Capability) Materialise(ctx context.Context, kindKey string, specData []byte) error {
	return nil
}

// Teardown is a no-op for the same reason Materialise is.
func (c *Capability) Teardown(ctx context.Context, kindKey string, force bool) error {
	return nil
}

func (c *Capability) ActorOf(row any) model.EventActor {
	rk, ok := row.(*model.ResourceKind)
	if !ok {
		return model.EventActor{Kind: model.KindResourceKind}
	}
	return model.EventActor{Kind: model.KindResourceKind, Key: rk.Key}
}

// ValidateData checks data against the ResourceKind's JSON Schema. Callers
// (internal/objects/resource) are responsible for the URL-hook delegation
// path when Schema is absent; this package only owns the schema document
// case since the URL hook needs an HTTP client the capability layer here
// deliberately has no dependency on.
func ValidateData(spec model.ResourceKindSpecPartial, data json.RawMessage) error {
	if len(spec.Schema) == 0 {
		return nil
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(spec.Schema))
	if err != nil {
		return apierror.Wrap(apierror.Internal, "resourcekind: compile schema", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return apierror.InvalidInputf("resourcekind: %v", err)
	}
	if !result.Valid() {
		msg := "data does not match resource kind schema"
		if len(result.Errors()) > 0 {
			msg = result.Errors()[0].String()
		}
		return apierror.InvalidInputf("resourcekind: %s", msg)
	}
	return nil
}
