// Package nodestore manages Node rows: an inert daemon registration record,
// the same "thin store with no spec history" shape as
// internal/objects/namespace (spec.md's Non-goals rule out clustering or
// consensus, so a Node is just a name the daemon advertises itself under,
// never a target the lifecycle engine schedules onto).
package nodestore

import (
	"context"
	"encoding/json"

	"github.com/nanocl-io/nanocld/internal/apierror"
	"github.com/nanocl-io/nanocld/internal/model"
	"github.com/nanocl-io/nanocld/internal/store"
)

const table = "nodes"

var fields = store.FieldSet{"name": true, "ip_address": true, "created_at": true}

type Store struct {
	gw *store.Gateway
}

func New(gw *store.Gateway) *Store {
	return &Store{gw: gw}
}

// Register upserts the local node's registration row; a daemon re-asserts
// its own entry on every boot rather than erroring on AlreadyExists.
func (s *Store) Register(ctx context.Context, n model.Node) error {
	if err := model.ValidateName(n.Name); err != nil {
		return apierror.InvalidInputf("node: %v", err)
	}
	if n.Metadata == nil {
		n.Metadata = json.RawMessage("{}")
	}
	if _, err := s.Get(ctx, n.Name); err == nil {
		return store.UpdateByPK(ctx, s.gw, table, "name", n.Name,
			[]string{"ip_address", "gateway", "host_gateway", "metadata"}, n)
	}
	return store.CreateFrom(ctx, s.gw, table,
		[]string{"name", "ip_address", "gateway", "host_gateway", "metadata"}, n)
}

func (s *Store) Get(ctx context.Context, name string) (*model.Node, error) {
	n, err := store.ReadByPK[model.Node](ctx, s.gw, table, "name", name)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *Store) List(ctx context.Context, filter model.GenericFilter) ([]model.Node, error) {
	return store.ReadBy[model.Node](ctx, s.gw, table, fields, filter)
}

func (s *Store) Count(ctx context.Context, filter model.GenericFilter) (int64, error) {
	return store.CountBy(ctx, s.gw, table, fields, filter)
}
