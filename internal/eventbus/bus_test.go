package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/nanocl-io/nanocld/internal/model"
	"github.com/nanocl-io/nanocld/internal/store"
)

func newTestBus(t *testing.T) (*Bus, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	sdb := sqlx.NewDb(db, "postgres")
	gw := store.NewGateway(sdb, 4)
	bus := New(gw, Config{ChannelCapacity: 16})
	return bus, mock, func() { db.Close() }
}

func TestEmitEventPersistsThenDispatchesToSubscriber(t *testing.T) {
	bus, mock, done := newTestBus(t)
	defer done()
	mock.ExpectExec("INSERT INTO events").WillReturnResult(sqlmock.NewResult(1, 1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := bus.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer bus.Stop()

	ch, unsub := bus.Subscribe(&model.EventCondition{ActorKind: model.KindCargo})
	defer unsub()

	actor := &model.EventActor{Kind: model.KindCargo, Key: "web.global"}
	if _, err := bus.EmitEvent(context.Background(), model.EventPartial{
		Kind: model.EventNormal, Action: model.ActionCreate, Actor: actor,
	}); err != nil {
		t.Fatalf("emit: %v", err)
	}

	select {
	case ev := <-ch:
		if ev.Action != model.ActionCreate {
			t.Fatalf("unexpected action: %s", ev.Action)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatched event")
	}
}

func TestWaitUntilTimesOutAndRemovesSubscription(t *testing.T) {
	bus, _, done := newTestBus(t)
	defer done()

	ctx, cancel := context.WithCancel(context.Background())
	if err := bus.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer bus.Stop()

	waitCtx, waitCancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer waitCancel()
	_, err := bus.WaitUntil(waitCtx, &model.EventCondition{ActorKind: model.KindVm})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	cancel()

	if bus.subs.Len() != 0 {
		t.Fatalf("expected subscription to be removed, got %d remaining", bus.subs.Len())
	}
}
