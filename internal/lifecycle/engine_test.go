package lifecycle

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/nanocl-io/nanocld/internal/apierror"
	"github.com/nanocl-io/nanocld/internal/eventbus"
	"github.com/nanocl-io/nanocld/internal/model"
	"github.com/nanocl-io/nanocld/internal/objstatus"
	"github.com/nanocl-io/nanocld/internal/registry"
	"github.com/nanocl-io/nanocld/internal/spechistory"
	"github.com/nanocl-io/nanocld/internal/store"
	"github.com/nanocl-io/nanocld/internal/taskmanager"
)

// fakeRow is a minimal stand-in for a reconcilable kind's db row, shaped
// like model.Cargo, used so these tests exercise registry.Capability
// dispatch without importing any concrete internal/objects package.
type fakeRow struct {
	Key       string    `db:"key"`
	Name      string    `db:"name"`
	Namespace string    `db:"namespace"`
	SpecKey   string    `db:"spec_key"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type fakeSummary struct {
	Key             string
	Name            string
	Status          model.ObjPsStatus
	InstanceTotal   int
	InstanceRunning int
}

// fakeCapability is a configurable registry.Capability used to drive the
// engine's pipelines without a concrete object kind. Materialise/Teardown
// are no-ops unless overridden, and running/total instance counts are
// fixed so Delete's running-instance guard can be exercised.
type fakeCapability struct {
	table       string
	running     int
	total       int
	materialErr error
	teardownErr error
}

func (f *fakeCapability) Kind() model.Kind { return model.KindCargo }
func (f *fakeCapability) Table() string    { return f.table }
func (f *fakeCapability) InsertColumns() []string {
	return []string{"key", "name", "namespace"}
}
func (f *fakeCapability) NewRow() any { return &fakeRow{} }

func (f *fakeCapability) Validate(ctx context.Context, partial any) error {
	p, ok := partial.(*model.CargoSpecPartial)
	if !ok || p.Name == "" {
		return apierror.InvalidInputf("name is required")
	}
	return nil
}

func (f *fakeCapability) ToRow(partial any) (any, string, error) {
	p := partial.(*model.CargoSpecPartial)
	ns := p.Namespace
	if ns == "" {
		ns = "global"
	}
	key := p.Name + "." + ns
	return &fakeRow{Key: key, Name: p.Name, Namespace: ns}, key, nil
}

func (f *fakeCapability) FromRow(row any, specData []byte) (any, error) {
	r := row.(*fakeRow)
	return &fakeSummary{Key: r.Key, Name: r.Name}, nil
}

func (f *fakeCapability) Materialise(ctx context.Context, kindKey string, specData []byte) error {
	return f.materialErr
}

func (f *fakeCapability) Teardown(ctx context.Context, kindKey string, force bool) error {
	return f.teardownErr
}

func (f *fakeCapability) ActorOf(row any) model.EventActor {
	r := row.(*fakeRow)
	return model.EventActor{Kind: model.KindCargo, Key: r.Key}
}

// CountInstances makes fakeCapability satisfy the optional instanceCounter
// extension interface Delete and Inspect look for.
func (f *fakeCapability) CountInstances(ctx context.Context, kindKey string) (int, int, error) {
	return f.total, f.running, nil
}

type testEnv struct {
	engine *Engine
	mock   sqlmock.Sqlmock
	cap    *fakeCapability
}

func newTestEngine(t *testing.T, cap *fakeCapability) *testEnv {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	sdb := sqlx.NewDb(db, "postgres")
	gw := store.NewGateway(sdb, 4)

	reg := registry.New()
	reg.Register(cap)

	bus := eventbus.New(gw, eventbus.Config{ChannelCapacity: 64})
	engine := New(reg, gw, spechistory.New(gw), objstatus.New(gw), bus, taskmanager.New(),
		ReconcileConfig{BackoffBase: time.Millisecond, BackoffMax: time.Millisecond, MaxAttempts: 1}, "test-node")

	return &testEnv{engine: engine, mock: mock, cap: cap}
}

func specRow(id, kindKey, version string, data []byte) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "kind", "kind_key", "version", "data", "metadata", "created_at"}).
		AddRow(id, model.KindCargo, kindKey, version, data, nil, time.Now())
}

func statusRowCols() []string {
	return []string{"key", "kind", "wanted", "prev_wanted", "actual", "prev_actual", "created_at", "updated_at"}
}

func TestEngine_Create_Success(t *testing.T) {
	env := newTestEngine(t, &fakeCapability{table: "cargoes"})

	env.mock.ExpectQuery("SELECT \\* FROM cargoes WHERE key = \\$1").
		WithArgs("web.global").
		WillReturnError(sql.ErrNoRows)

	env.mock.ExpectBegin()
	env.mock.ExpectExec("INSERT INTO cargoes").WillReturnResult(sqlmock.NewResult(1, 1))
	env.mock.ExpectExec("INSERT INTO statuses").WillReturnResult(sqlmock.NewResult(1, 1))
	env.mock.ExpectQuery("SELECT \\* FROM statuses WHERE key = \\$1").
		WithArgs("web.global").
		WillReturnRows(sqlmock.NewRows(statusRowCols()).
			AddRow("web.global", model.KindCargo, model.StatusCreated, model.StatusUnknown, model.StatusUnknown, model.StatusUnknown, time.Now(), time.Now()))
	env.mock.ExpectExec("INSERT INTO specs").WillReturnResult(sqlmock.NewResult(1, 1))
	env.mock.ExpectQuery("SELECT \\* FROM specs WHERE id = \\$1").
		WillReturnRows(specRow("11111111-1111-1111-1111-111111111111", "web.global", "1", []byte(`{"name":"web"}`)))
	env.mock.ExpectExec("UPDATE cargoes SET spec_key").WillReturnResult(sqlmock.NewResult(1, 1))
	env.mock.ExpectCommit()

	env.mock.ExpectExec("INSERT INTO events").WillReturnResult(sqlmock.NewResult(1, 1))

	env.mock.ExpectQuery("SELECT \\* FROM statuses WHERE key = \\$1").
		WithArgs("web.global").
		WillReturnRows(sqlmock.NewRows(statusRowCols()).
			AddRow("web.global", model.KindCargo, model.StatusCreated, model.StatusUnknown, model.StatusUnknown, model.StatusUnknown, time.Now(), time.Now()))

	out, err := env.engine.Create(context.Background(), model.KindCargo, &model.CargoSpecPartial{Name: "web"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	summary, ok := out.(*fakeSummary)
	if !ok {
		t.Fatalf("unexpected summary type %T", out)
	}
	if summary.Key != "web.global" {
		t.Fatalf("unexpected key: %s", summary.Key)
	}
	if summary.Status.Wanted != model.StatusCreated {
		t.Fatalf("expected attached status, got %+v", summary.Status)
	}
}

func TestEngine_Create_RejectsInvalidPartial(t *testing.T) {
	env := newTestEngine(t, &fakeCapability{table: "cargoes"})
	_, err := env.engine.Create(context.Background(), model.KindCargo, &model.CargoSpecPartial{})
	if apierror.KindOf(err) != apierror.InvalidInput {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestEngine_Create_AlreadyExists(t *testing.T) {
	env := newTestEngine(t, &fakeCapability{table: "cargoes"})
	env.mock.ExpectQuery("SELECT \\* FROM cargoes WHERE key = \\$1").
		WithArgs("web.global").
		WillReturnRows(sqlmock.NewRows([]string{"key", "name", "namespace", "spec_key", "created_at", "updated_at"}).
			AddRow("web.global", "web", "global", "spec-1", time.Now(), time.Now()))

	_, err := env.engine.Create(context.Background(), model.KindCargo, &model.CargoSpecPartial{Name: "web"})
	if apierror.KindOf(err) != apierror.AlreadyExists {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}
}

func TestEngine_Create_UnknownKind(t *testing.T) {
	env := newTestEngine(t, &fakeCapability{table: "cargoes"})
	_, err := env.engine.Create(context.Background(), model.KindVm, &model.VmSpecPartial{})
	if err == nil {
		t.Fatal("expected error for unregistered kind")
	}
}

func TestEngine_Delete_RejectsRunningInstances(t *testing.T) {
	env := newTestEngine(t, &fakeCapability{table: "cargoes", running: 2, total: 2})
	env.mock.ExpectQuery("SELECT \\* FROM cargoes WHERE key = \\$1").
		WithArgs("web.global").
		WillReturnRows(sqlmock.NewRows([]string{"key", "name", "namespace", "spec_key", "created_at", "updated_at"}).
			AddRow("web.global", "web", "global", "spec-1", time.Now(), time.Now()))

	err := env.engine.Delete(context.Background(), model.KindCargo, "web.global", false)
	if apierror.KindOf(err) != apierror.Conflict {
		t.Fatalf("expected Conflict, got %v", err)
	}
}

func TestEngine_Delete_ForceBypassesRunningGuard(t *testing.T) {
	env := newTestEngine(t, &fakeCapability{table: "cargoes", running: 2, total: 2})
	env.mock.ExpectQuery("SELECT \\* FROM cargoes WHERE key = \\$1").
		WithArgs("web.global").
		WillReturnRows(sqlmock.NewRows([]string{"key", "name", "namespace", "spec_key", "created_at", "updated_at"}).
			AddRow("web.global", "web", "global", "spec-1", time.Now(), time.Now()))
	env.mock.ExpectQuery("SELECT \\* FROM statuses WHERE key = \\$1").
		WithArgs("web.global").
		WillReturnRows(sqlmock.NewRows(statusRowCols()).
			AddRow("web.global", model.KindCargo, model.StatusCreated, model.StatusUnknown, model.StatusUnknown, model.StatusUnknown, time.Now(), time.Now()))
	env.mock.ExpectExec("UPDATE statuses SET wanted").WillReturnResult(sqlmock.NewResult(1, 1))
	env.mock.ExpectExec("INSERT INTO events").WillReturnResult(sqlmock.NewResult(1, 1))

	if err := env.engine.Delete(context.Background(), model.KindCargo, "web.global", true); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestEngine_Inspect_AttachesStatusAndInstanceCounts(t *testing.T) {
	env := newTestEngine(t, &fakeCapability{table: "cargoes", running: 1, total: 2})
	env.mock.ExpectQuery("SELECT \\* FROM cargoes WHERE key = \\$1").
		WithArgs("web.global").
		WillReturnRows(sqlmock.NewRows([]string{"key", "name", "namespace", "spec_key", "created_at", "updated_at"}).
			AddRow("web.global", "web", "global", "spec-1", time.Now(), time.Now()))
	env.mock.ExpectQuery("SELECT \\* FROM specs WHERE kind_key").
		WillReturnRows(specRow("11111111-1111-1111-1111-111111111111", "web.global", "1", []byte(`{"name":"web"}`)))
	env.mock.ExpectQuery("SELECT \\* FROM statuses WHERE key = \\$1").
		WithArgs("web.global").
		WillReturnRows(sqlmock.NewRows(statusRowCols()).
			AddRow("web.global", model.KindCargo, model.StatusStart, model.StatusCreated, model.StatusStart, model.StatusUnknown, time.Now(), time.Now()))

	out, err := env.engine.Inspect(context.Background(), model.KindCargo, "web.global")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	summary := out.(*fakeSummary)
	if summary.InstanceTotal != 2 || summary.InstanceRunning != 1 {
		t.Fatalf("expected instance counts attached, got %+v", summary)
	}
	if summary.Status.Wanted != model.StatusStart {
		t.Fatalf("expected status attached, got %+v", summary.Status)
	}
}

func TestEngine_Count(t *testing.T) {
	env := newTestEngine(t, &fakeCapability{table: "cargoes"})
	env.mock.ExpectQuery("SELECT count\\(\\*\\) FROM cargoes").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := env.engine.Count(context.Background(), model.KindCargo, model.GenericFilter{})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3, got %d", n)
	}
}

func TestEngine_Patch_InvalidJSONRejected(t *testing.T) {
	env := newTestEngine(t, &fakeCapability{table: "cargoes"})
	env.mock.ExpectQuery("SELECT \\* FROM specs WHERE kind_key").
		WillReturnRows(specRow("11111111-1111-1111-1111-111111111111", "web.global", "1", []byte(`{"name":"web"}`)))

	_, err := env.engine.Patch(context.Background(), model.KindCargo, "web.global", json.RawMessage(`not-json`))
	if apierror.KindOf(err) != apierror.InvalidInput {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}
