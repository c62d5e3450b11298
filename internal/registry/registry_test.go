package registry

import (
	"context"
	"testing"

	"github.com/nanocl-io/nanocld/internal/model"
)

type fakeCapability struct{ kind model.Kind }

func (f fakeCapability) Kind() model.Kind                                       { return f.kind }
func (f fakeCapability) Table() string                                         { return "fakes" }
func (f fakeCapability) InsertColumns() []string                               { return []string{"key"} }
func (f fakeCapability) NewRow() any                                          { return &struct{ Key string }{} }
func (f fakeCapability) Validate(ctx context.Context, partial any) error        { return nil }
func (f fakeCapability) ToRow(partial any) (any, string, error)                 { return partial, "k", nil }
func (f fakeCapability) FromRow(row any, specData []byte) (any, error)          { return row, nil }
func (f fakeCapability) Materialise(ctx context.Context, kindKey string, specData []byte) error {
	return nil
}
func (f fakeCapability) Teardown(ctx context.Context, kindKey string, force bool) error { return nil }
func (f fakeCapability) ActorOf(row any) model.EventActor {
	return model.EventActor{Kind: f.kind, Key: "k"}
}

func TestRegisterAndGet(t *testing.T) {
	r := New()
	r.Register(fakeCapability{kind: model.KindCargo})

	if !r.Has(model.KindCargo) {
		t.Fatal("expected KindCargo registered")
	}
	c, err := r.Get(model.KindCargo)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if c.Kind() != model.KindCargo {
		t.Fatalf("unexpected kind: %s", c.Kind())
	}
}

func TestGetUnregisteredKindErrors(t *testing.T) {
	r := New()
	if _, err := r.Get(model.KindVm); err == nil {
		t.Fatal("expected error for unregistered kind")
	}
}

func TestKindsListsEveryRegistration(t *testing.T) {
	r := New()
	r.Register(fakeCapability{kind: model.KindCargo})
	r.Register(fakeCapability{kind: model.KindVm})
	kinds := r.Kinds()
	if len(kinds) != 2 {
		t.Fatalf("expected 2 kinds, got %d", len(kinds))
	}
}
