package job

import (
	"context"
	"testing"
	"time"

	"github.com/nanocl-io/nanocld/internal/model"
	"github.com/nanocl-io/nanocld/internal/runtime"
)

func TestMaterialiseWaitsForCompletion(t *testing.T) {
	dev := runtime.NewDev()
	c := New(dev)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = dev.Stop(context.Background(), "backup", nil)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Materialise(ctx, "backup", []byte(`{}`)); err != nil {
		t.Fatalf("materialise: %v", err)
	}
	inst, err := dev.Inspect(context.Background(), "backup")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if inst.Running {
		t.Fatal("expected job instance to have stopped running")
	}
}

func TestToRowUsesNameAsKey(t *testing.T) {
	c := New(runtime.NewDev())
	row, key, err := c.ToRow(&model.JobSpecPartial{Name: "backup", Image: "alpine"})
	if err != nil {
		t.Fatalf("ToRow: %v", err)
	}
	if key != "backup" || row.(*model.Job).Key != "backup" {
		t.Fatalf("expected key == name, got %q", key)
	}
}
