// Package namespace manages Namespace rows: a pure grouping record for
// Cargoes and VMs. Unlike the other five object kinds, a Namespace has no
// spec history and no reconciler, so it does not implement
// registry.Capability — there is nothing for internal/lifecycle or
// internal/taskmanager to version or materialise. It is instead a thin
// store used directly by internal/httpapi's namespace handlers.
package namespace

import (
	"context"

	"github.com/nanocl-io/nanocld/internal/apierror"
	"github.com/nanocl-io/nanocld/internal/model"
	"github.com/nanocl-io/nanocld/internal/store"
)

const table = "namespaces"

var fields = store.FieldSet{"name": true, "created_at": true}

type Store struct {
	gw *store.Gateway
}

func New(gw *store.Gateway) *Store {
	return &Store{gw: gw}
}

func (s *Store) Create(ctx context.Context, name string) (*model.Namespace, error) {
	if err := model.ValidateName(name); err != nil {
		return nil, apierror.InvalidInputf("namespace: %v", err)
	}
	row := struct {
		Name string `db:"name"`
	}{Name: name}
	if err := store.CreateFrom(ctx, s.gw, table, []string{"name"}, row); err != nil {
		return nil, err
	}
	return s.Get(ctx, name)
}

func (s *Store) Get(ctx context.Context, name string) (*model.Namespace, error) {
	ns, err := store.ReadByPK[model.Namespace](ctx, s.gw, table, "name", name)
	if err != nil {
		return nil, err
	}
	return &ns, nil
}

func (s *Store) List(ctx context.Context, filter model.GenericFilter) ([]model.Namespace, error) {
	return store.ReadBy[model.Namespace](ctx, s.gw, table, fields, filter)
}

func (s *Store) Count(ctx context.Context, filter model.GenericFilter) (int64, error) {
	return store.CountBy(ctx, s.gw, table, fields, filter)
}

func (s *Store) Delete(ctx context.Context, name string) error {
	return store.DelByPK(ctx, s.gw, table, "name", name)
}
