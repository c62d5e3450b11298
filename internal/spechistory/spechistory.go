// Package spechistory is the append-only store of versioned object specs,
// grounded on the teacher's internal/app/storage/postgres/store.go
// multi-table Store pattern, built on top of the generic internal/store
// gateway.
package spechistory

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/nanocl-io/nanocld/internal/apierror"
	"github.com/nanocl-io/nanocld/internal/model"
	"github.com/nanocl-io/nanocld/internal/store"
)

const table = "specs"

var fields = store.FieldSet{
	"id":         true,
	"kind":       true,
	"kind_key":   true,
	"version":    true,
	"created_at": true,
}

// created_at is intentionally absent: the specs table defaults it to
// now() at insert time, since spec rows are immutable and never carry a
// caller-supplied timestamp.
var insertCols = []string{"id", "kind", "kind_key", "version", "data", "metadata"}

// Store is the spec-history store: specs.created_at is the row's only
// timestamp and is never updated in place — append is the only mutator.
type Store struct {
	gw *store.Gateway
}

func New(gw *store.Gateway) *Store {
	return &Store{gw: gw}
}

// Append inserts a new immutable spec row. Callers serialise this per
// kind_key themselves by holding the object lifecycle engine's per-key task
// guard (internal/taskmanager) across the call, per Invariant in 4.B/§5 —
// spechistory itself does not lock.
func (s *Store) Append(ctx context.Context, kind model.Kind, kindKey, version string, data, metadata json.RawMessage) (*model.Spec, error) {
	spec := model.NewSpec(kind, kindKey, version, data, metadata)
	spec.ID = uuid.New()

	type row struct {
		ID       uuid.UUID       `db:"id"`
		Kind     model.Kind      `db:"kind"`
		KindKey  string          `db:"kind_key"`
		Version  string          `db:"version"`
		Data     json.RawMessage `db:"data"`
		Metadata json.RawMessage `db:"metadata"`
	}
	r := row{
		ID:       spec.ID,
		Kind:     spec.Kind,
		KindKey:  spec.KindKey,
		Version:  spec.Version,
		Data:     spec.Data,
		Metadata: spec.Metadata,
	}
	if err := store.CreateFrom(ctx, s.gw, table, insertCols, r); err != nil {
		return nil, err
	}
	return s.Get(ctx, spec.ID)
}

// Latest returns the most recently appended spec for kindKey.
func (s *Store) Latest(ctx context.Context, kindKey string) (*model.Spec, error) {
	specs, err := store.ReadBy[model.Spec](ctx, s.gw, table, fields, model.GenericFilter{
		Where: model.WhereMap{"kind_key": {Op: model.ClauseEq, Value: kindKey}},
		Limit: intPtr(1),
	})
	if err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, apierror.NotFoundf("spec for %q not found", kindKey)
	}
	return &specs[0], nil
}

// List returns every spec for kindKey, reverse-chronological.
func (s *Store) List(ctx context.Context, kindKey string) ([]model.Spec, error) {
	return store.ReadBy[model.Spec](ctx, s.gw, table, fields, model.GenericFilter{
		Where: model.WhereMap{"kind_key": {Op: model.ClauseEq, Value: kindKey}},
	})
}

// Get fetches a spec by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*model.Spec, error) {
	spec, err := store.ReadByPK[model.Spec](ctx, s.gw, table, "id", id)
	if err != nil {
		return nil, err
	}
	return &spec, nil
}

// GetVersion fetches the spec for kindKey at the named version, failing
// with apierror.NotFound if no spec for that version exists.
func (s *Store) GetVersion(ctx context.Context, kindKey, version string) (*model.Spec, error) {
	specs, err := store.ReadBy[model.Spec](ctx, s.gw, table, fields, model.GenericFilter{
		Where: model.WhereMap{
			"kind_key": {Op: model.ClauseEq, Value: kindKey},
			"version":  {Op: model.ClauseEq, Value: version},
		},
		Limit: intPtr(1),
	})
	if err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, apierror.NotFoundf("spec for %q at version %q not found", kindKey, version)
	}
	return &specs[0], nil
}

// DeleteAll removes every spec row for kindKey, used by the lifecycle
// engine's Delete pipeline once Teardown has removed the runtime artefacts.
func (s *Store) DeleteAll(ctx context.Context, kindKey string) error {
	return store.DelBy(ctx, s.gw, table, fields, model.GenericFilter{
		Where: model.WhereMap{"kind_key": {Op: model.ClauseEq, Value: kindKey}},
	})
}

func intPtr(n int) *int { return &n }
