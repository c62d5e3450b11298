package eventbus

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nanocl-io/nanocld/internal/model"
	"github.com/nanocl-io/nanocld/internal/store"
)

const table = "events"

var fields = store.FieldSet{
	"id":                   true,
	"kind":                 true,
	"action":               true,
	"reporting_controller": true,
	"reporting_node":       true,
	"created_at":           true,
}

var insertCols = []string{
	"id", "kind", "action", "reason", "note", "metadata",
	"actor", "related", "reporting_controller", "reporting_node",
}

// eventStore is the durable append-only log behind Bus.EmitEvent, grounded
// on the same generic CRUD gateway as internal/spechistory.
type eventStore struct {
	gw *store.Gateway
}

func newEventStore(gw *store.Gateway) *eventStore {
	return &eventStore{gw: gw}
}

func (s *eventStore) insert(ctx context.Context, ev *model.Event) error {
	ev.ID = uuid.New()
	return store.CreateFrom(ctx, s.gw, table, insertCols, ev)
}

// List returns persisted events matching filter, most recent first.
func (s *eventStore) List(ctx context.Context, filter model.GenericFilter) ([]model.Event, error) {
	return store.ReadBy[model.Event](ctx, s.gw, table, fields, filter)
}

func (s *eventStore) Get(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	ev, err := store.ReadByPK[model.Event](ctx, s.gw, table, "id", id)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// sweepOlderThan deletes every event row whose created_at precedes cutoff,
// backing the retention sweep that Bus.Start schedules. Deleting history
// never touches already-subscribed live channels.
func (s *eventStore) sweepOlderThan(ctx context.Context, cutoff time.Time) error {
	return store.DelBy(ctx, s.gw, table, fields, model.GenericFilter{
		Where: model.WhereMap{"created_at": {Op: model.ClauseLt, Value: cutoff}},
	})
}
