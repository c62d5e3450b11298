// Package objstatus is the shared store of ObjPsStatus rows: one row per
// reconcilable object (every kind except Namespace, which carries no
// status), keyed by the object's kind_key the same way internal/spechistory
// keys spec rows. A single "statuses" table discriminated by kind mirrors
// the "specs" table's shared-table-plus-discriminator shape (spec.md: "the
// specs table... specs.kind discriminates the kind"), rather than adding a
// wanted/actual column pair to every one of the six object tables.
package objstatus

import (
	"context"
	"time"

	"github.com/nanocl-io/nanocld/internal/apierror"
	"github.com/nanocl-io/nanocld/internal/model"
	"github.com/nanocl-io/nanocld/internal/store"
)

const table = "statuses"

var fields = store.FieldSet{"key": true, "kind": true, "wanted": true, "actual": true, "created_at": true}

type Store struct {
	gw *store.Gateway
}

func New(gw *store.Gateway) *Store {
	return &Store{gw: gw}
}

// Create inserts the initial status row: wanted=Created, actual=Unknown, per
// spec.md 4.F's create_obj ("Insert the object row with status.wanted =
// Create, actual = Unknown").
func (s *Store) Create(ctx context.Context, kind model.Kind, key string) (*model.ObjPsStatus, error) {
	row := struct {
		Key    string           `db:"key"`
		Kind   model.Kind       `db:"kind"`
		Wanted model.StatusKind `db:"wanted"`
		Actual model.StatusKind `db:"actual"`
	}{Key: key, Kind: kind, Wanted: model.StatusCreated, Actual: model.StatusUnknown}
	cols := []string{"key", "kind", "wanted", "actual"}
	if err := store.CreateFrom(ctx, s.gw, table, cols, row); err != nil {
		return nil, err
	}
	return s.Get(ctx, key)
}

func (s *Store) Get(ctx context.Context, key string) (*model.ObjPsStatus, error) {
	st, err := store.ReadByPK[model.ObjPsStatus](ctx, s.gw, table, "key", key)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// SetWanted advances wanted, carrying the previous value, per Invariant I1:
// both the new and previous value are written atomically in the same UPDATE.
func (s *Store) SetWanted(ctx context.Context, key string, wanted model.StatusKind) error {
	if !model.IsValidWanted(wanted) {
		return apierror.InvalidInputf("objstatus: %q is not a valid wanted status", wanted)
	}
	current, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	row := struct {
		Key        string           `db:"key"`
		Wanted     model.StatusKind `db:"wanted"`
		PrevWanted model.StatusKind `db:"prev_wanted"`
		UpdatedAt  time.Time        `db:"updated_at"`
	}{Key: key, Wanted: wanted, PrevWanted: current.Wanted, UpdatedAt: nowFunc()}
	return store.UpdateByPK(ctx, s.gw, table, "key", key,
		[]string{"wanted", "prev_wanted", "updated_at"}, row)
}

// SetActual advances actual, carrying the previous value; only the
// reconciler calls this, per Invariant I2.
func (s *Store) SetActual(ctx context.Context, key string, actual model.StatusKind) error {
	current, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	row := struct {
		Key        string           `db:"key"`
		Actual     model.StatusKind `db:"actual"`
		PrevActual model.StatusKind `db:"prev_actual"`
		UpdatedAt  time.Time        `db:"updated_at"`
	}{Key: key, Actual: actual, PrevActual: current.Actual, UpdatedAt: nowFunc()}
	return store.UpdateByPK(ctx, s.gw, table, "key", key,
		[]string{"actual", "prev_actual", "updated_at"}, row)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return store.DelByPK(ctx, s.gw, table, "key", key)
}

// nowFunc is a seam for tests; production code always calls time.Now.
var nowFunc = time.Now
