// Package resource implements the registry.Capability for the Resource
// object kind: a configuration object validated against the schema (or URL
// hook) of the ResourceKind it names.
package resource

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/nanocl-io/nanocld/internal/apierror"
	"github.com/nanocl-io/nanocld/internal/model"
	"github.com/nanocl-io/nanocld/internal/objects/resourcekind"
)

// KindLookup resolves a ResourceKind's spec by its key ("{domain}/{name}").
// Injected rather than depending on a concrete store, the same way the
// teacher's infrastructure/datafeed client takes its upstream dependency
// through a constructor argument instead of reaching for a global.
type KindLookup func(ctx context.Context, kindKey string) (*model.ResourceKindSpecPartial, error)

type Capability struct {
	Lookup     KindLookup
	httpClient *http.Client
}

func New(lookup KindLookup) *Capability {
	return &Capability{
		Lookup:     lookup,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Capability) Kind() model.Kind { return model.KindResource }

func (c *Capability) Table() string { return "resources" }

func (c *Capability) InsertColumns() []string { return []string{"key", "kind"} }

func (c *Capability) NewRow() any { return &model.Resource{} }

func (c *Capability) Validate(ctx context.Context, partial any) error {
	p, ok := partial.(*model.ResourcePartial)
	if !ok {
		return apierror.InvalidInputf("resource: expected *model.ResourcePartial, got %T", partial)
	}
	if err := model.ValidateName(p.Name); err != nil {
		return apierror.InvalidInputf("resource: %v", err)
	}
	if p.Kind == "" {
		return apierror.InvalidInputf("resource: kind is required")
	}
	kindSpec, err := c.Lookup(ctx, p.Kind)
	if err != nil {
		return err
	}
	return c.validateData(ctx, *kindSpec, p.Data)
}

func (c *Capability) validateData(ctx context.Context, kindSpec model.ResourceKindSpecPartial, data json.RawMessage) error {
	if len(kindSpec.Schema) > 0 {
		return resourcekind.ValidateData(kindSpec, data)
	}
	if kindSpec.URL != "" {
		return c.validateViaHook(ctx, kindSpec.URL, data)
	}
	return apierror.Internalf("resource: resource kind %q has neither schema nor url", kindSpec.Name)
}

// validateViaHook delegates validation to an external HTTP endpoint: POST
// the resource data, 2xx means accepted, anything else means rejected.
func (c *Capability) validateViaHook(ctx context.Context, url string, data json.RawMessage) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return apierror.Wrap(apierror.Internal, "resource: build validation hook request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apierror.Wrap(apierror.Unavailable, "resource: validation hook unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apierror.InvalidInputf("resource: validation hook rejected data (status %d)", resp.StatusCode)
	}
	return nil
}

func (c *Capability) ToRow(partial any) (any, string, error) {
	p, ok := partial.(*model.ResourcePartial)
	if !ok {
		return nil, "", apierror.InvalidInputf("resource: expected *model.ResourcePartial, got %T", partial)
	}
	row := &model.Resource{Key: p.Name, Kind: p.Kind}
	return row, p.Name, nil
}

func (c *Capability) FromRow(row any, specData []byte) (any, error) {
	r, ok := row.(*model.Resource)
	if !ok {
		return nil, apierror.InvalidInputf("resource: expected *model.Resource, got %T", row)
	}
	var spec model.ResourcePartial
	if len(specData) > 0 {
		if err := json.Unmarshal(specData, &spec); err != nil {
			return nil, apierror.Wrap(apierror.Internal, "resource: decode spec", err)
		}
	}
	return &model.ResourceSummary{Resource: *r, Spec: spec}, nil
}

// Materialise is a no-op: a Resource has no runtime footprint of its own; it
// is consumed by whatever capability references it (e.g. a proxy rule kind).
func (c *Capability) Materialise(ctx context.Context, kindKey string, specData []byte) error {
	return nil
}

func (c *Capability) Teardown(ctx context.Context, kindKey string, force bool) error {
	return nil
}

func (c *Capability) ActorOf(row any) model.EventActor {
	r, ok := row.(*model.Resource)
	if !ok {
		return model.EventActor{Kind: model.KindResource}
	}
	return model.EventActor{Kind: model.KindResource, Key: r.Key, Attributes: map[string]string{"kind": r.Kind}}
}
