// Package lifecycle implements the object lifecycle engine: the six
// pipelines (Create, Put, Patch, Delete, Revert, Inspect) every
// reconcilable object kind is driven through. The engine is generic over
// registry.Capability and never imports a concrete kind package, per
// SPEC_FULL.md's "Dynamic dispatch" design note. Grounded in
// original_source/bin/nanocld/src/services/cargo.rs and resource_kind.rs
// for the validate -> persist -> spec-append -> commit -> emit ->
// spawn-reconcile ordering, and in the teacher's system/core registry for
// the capability-dispatch shape.
package lifecycle

import (
	"context"
	"encoding/json"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/nanocl-io/nanocld/infrastructure/metrics"
	"github.com/nanocl-io/nanocld/internal/apierror"
	"github.com/nanocl-io/nanocld/internal/eventbus"
	"github.com/nanocl-io/nanocld/internal/model"
	"github.com/nanocl-io/nanocld/internal/objstatus"
	"github.com/nanocl-io/nanocld/internal/registry"
	"github.com/nanocl-io/nanocld/internal/spechistory"
	"github.com/nanocl-io/nanocld/internal/store"
	"github.com/nanocl-io/nanocld/internal/taskmanager"
	"github.com/nanocl-io/nanocld/pkg/logger"
)

const reportingController = "nanocld"

// ReconcileConfig tunes the reconciler's failure-retry behaviour, per
// spec.md 4.F's failure semantics (base 1s, max 30s, cap 5 attempts).
type ReconcileConfig struct {
	BackoffBase time.Duration
	BackoffMax  time.Duration
	MaxAttempts int
}

// Engine drives every reconcilable object kind through its lifecycle
// pipelines. It holds no per-kind knowledge; registry.Registry supplies
// that through the Capability it looks up per call.
type Engine struct {
	registry  *registry.Registry
	gw        *store.Gateway
	specs     *spechistory.Store
	statuses  *objstatus.Store
	bus       *eventbus.Bus
	tasks     *taskmanager.Manager
	reconcile ReconcileConfig
	nodeName  string
	log       *logger.Logger
	metrics   *metrics.Metrics
}

// Option configures optional Engine collaborators that have a sensible
// nil default (e.g. metrics, which the daemon may run without).
type Option func(*Engine)

// WithMetrics attaches a Metrics recorder; reconciliation attempts are
// recorded under the "nanocld" service label. Safe to omit.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New builds an Engine. nodeName is stamped on every event's
// reporting_node field.
func New(
	reg *registry.Registry,
	gw *store.Gateway,
	specs *spechistory.Store,
	statuses *objstatus.Store,
	bus *eventbus.Bus,
	tasks *taskmanager.Manager,
	reconcile ReconcileConfig,
	nodeName string,
	opts ...Option,
) *Engine {
	if reconcile.BackoffBase <= 0 {
		reconcile.BackoffBase = time.Second
	}
	if reconcile.BackoffMax <= 0 {
		reconcile.BackoffMax = 30 * time.Second
	}
	if reconcile.MaxAttempts <= 0 {
		reconcile.MaxAttempts = 5
	}
	e := &Engine{
		registry:  reg,
		gw:        gw,
		specs:     specs,
		statuses:  statuses,
		bus:       bus,
		tasks:     tasks,
		reconcile: reconcile,
		nodeName:  nodeName,
		log:       logger.NewDefault("lifecycle"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// recordReconcile reports a reconciliation attempt if a metrics recorder
// was attached via WithMetrics; a nil recorder is a silent no-op so the
// engine works the same with or without metrics enabled.
func (e *Engine) recordReconcile(kind model.Kind, operation, status string, duration time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordReconcile(reportingController, string(kind), operation, status, duration)
}

// Create validates partial, persists the object row, appends its first
// spec, emits a synchronous Create event, and spawns a background
// reconciler to materialise it against the runtime. Per spec.md 4.F it
// returns the created object before reconciliation completes.
func (e *Engine) Create(ctx context.Context, kind model.Kind, partial any) (any, error) {
	cap, err := e.registry.Get(kind)
	if err != nil {
		return nil, err
	}
	if err := cap.Validate(ctx, partial); err != nil {
		return nil, err
	}
	row, kindKey, err := cap.ToRow(partial)
	if err != nil {
		return nil, err
	}

	existing := cap.NewRow()
	if err := store.ReadByPKInto(ctx, e.gw, cap.Table(), "key", kindKey, existing); err == nil {
		return nil, apierror.AlreadyExistsf("%s %q already exists", kind, kindKey)
	} else if apierror.KindOf(err) != apierror.NotFound {
		return nil, err
	}

	data, err := json.Marshal(partial)
	if err != nil {
		return nil, apierror.Wrap(apierror.Internal, "lifecycle: encode spec", err)
	}

	err = e.gw.WithTx(ctx, func(ctx context.Context) error {
		if err := store.CreateFrom(ctx, e.gw, cap.Table(), cap.InsertColumns(), row); err != nil {
			return err
		}
		if _, err := e.statuses.Create(ctx, kind, kindKey); err != nil {
			return err
		}
		spec, err := e.specs.Append(ctx, kind, kindKey, "1", data, nil)
		if err != nil {
			return err
		}
		return e.setSpecPointer(ctx, cap, kindKey, spec.ID)
	})
	if err != nil {
		return nil, err
	}

	actor := cap.ActorOf(row)
	if _, eerr := e.bus.EmitEvent(ctx, model.EventPartial{
		Kind: model.EventNormal, Action: model.ActionCreate, Actor: &actor,
		ReportingController: reportingController, ReportingNode: e.nodeName,
	}); eerr != nil {
		e.log.WithField("error", eerr).Warn("create: emit event failed")
	}

	e.spawnMaterialise(cap, kindKey, data, actor)

	summary, err := cap.FromRow(row, data)
	if err != nil {
		return nil, err
	}
	e.attachStatus(ctx, summary, kindKey)
	return summary, nil
}

// Put loads the current row, validates the new partial spec, appends it as
// a new version, advances status.wanted to Start, emits Update, and spawns
// a reconciler that tears down existing runtime state and recreates it
// from the new spec.
func (e *Engine) Put(ctx context.Context, kind model.Kind, kindKey string, partial any) (any, error) {
	cap, err := e.registry.Get(kind)
	if err != nil {
		return nil, err
	}
	if err := cap.Validate(ctx, partial); err != nil {
		return nil, err
	}

	row := cap.NewRow()
	if err := store.ReadByPKInto(ctx, e.gw, cap.Table(), "key", kindKey, row); err != nil {
		return nil, err
	}

	data, err := json.Marshal(partial)
	if err != nil {
		return nil, apierror.Wrap(apierror.Internal, "lifecycle: encode spec", err)
	}

	err = e.gw.WithTx(ctx, func(ctx context.Context) error {
		version := "1"
		if latest, lerr := e.specs.Latest(ctx, kindKey); lerr == nil {
			version = nextVersion(latest.Version)
		}
		spec, aerr := e.specs.Append(ctx, kind, kindKey, version, data, nil)
		if aerr != nil {
			return aerr
		}
		if err := e.setSpecPointer(ctx, cap, kindKey, spec.ID); err != nil {
			return err
		}
		return e.statuses.SetWanted(ctx, kindKey, model.StatusStart)
	})
	if err != nil {
		return nil, err
	}

	actor := cap.ActorOf(row)
	if _, eerr := e.bus.EmitEvent(ctx, model.EventPartial{
		Kind: model.EventNormal, Action: model.ActionUpdate, Actor: &actor,
		ReportingController: reportingController, ReportingNode: e.nodeName,
	}); eerr != nil {
		e.log.WithField("error", eerr).Warn("put: emit event failed")
	}

	// Cancel-and-replace: an in-flight reconciler for this key is
	// superseded by the new spec rather than queued behind it (§9 open
	// question resolution).
	if e.tasks.Running(kindKey) {
		e.bus.SpawnEmitEvent(model.EventPartial{
			Kind: model.EventWarning, Action: model.ActionCancelled, Actor: &actor,
			Reason: "superseded by a newer spec",
			ReportingController: reportingController, ReportingNode: e.nodeName,
		})
		_ = e.tasks.Remove(ctx, kindKey)
	}
	e.spawnRecreate(cap, kindKey, data, actor)

	summary, err := cap.FromRow(row, data)
	if err != nil {
		return nil, err
	}
	e.attachStatus(ctx, summary, kindKey)
	return summary, nil
}

// Patch reads the latest spec, deep-merges patch into it (non-null fields
// override, null fields preserve the existing value), and delegates to Put.
func (e *Engine) Patch(ctx context.Context, kind model.Kind, kindKey string, patch json.RawMessage) (any, error) {
	latest, err := e.specs.Latest(ctx, kindKey)
	if err != nil {
		return nil, err
	}
	merged, err := mergeJSON(latest.Data, patch)
	if err != nil {
		return nil, apierror.InvalidInputf("lifecycle: patch: %v", err)
	}
	partial, err := model.NewPartial(kind)
	if err != nil {
		return nil, apierror.Wrap(apierror.Internal, "lifecycle: patch", err)
	}
	if err := json.Unmarshal(merged, partial); err != nil {
		return nil, apierror.InvalidInputf("lifecycle: patch: %v", err)
	}
	return e.Put(ctx, kind, kindKey, partial)
}

// Delete requires the absence of running instances unless force is set,
// advances status.wanted to Destroy, emits Destroying, and spawns a
// reconciler that tears down runtime artefacts then removes the object row
// and its spec history, emitting Destroy.
func (e *Engine) Delete(ctx context.Context, kind model.Kind, kindKey string, force bool) error {
	cap, err := e.registry.Get(kind)
	if err != nil {
		return err
	}

	row := cap.NewRow()
	if err := store.ReadByPKInto(ctx, e.gw, cap.Table(), "key", kindKey, row); err != nil {
		return err
	}

	if !force {
		if counter, ok := cap.(instanceCounter); ok {
			if _, running, cerr := counter.CountInstances(ctx, kindKey); cerr == nil && running > 0 {
				return apierror.Conflictf("%s %q has running instances", kind, kindKey)
			}
		}
	}

	if err := e.statuses.SetWanted(ctx, kindKey, model.StatusDestroy); err != nil {
		return err
	}

	actor := cap.ActorOf(row)
	if _, eerr := e.bus.EmitEvent(ctx, model.EventPartial{
		Kind: model.EventNormal, Action: model.ActionDestroying, Actor: &actor,
		ReportingController: reportingController, ReportingNode: e.nodeName,
	}); eerr != nil {
		e.log.WithField("error", eerr).Warn("delete: emit event failed")
	}

	if e.tasks.Running(kindKey) {
		_ = e.tasks.Remove(ctx, kindKey)
	}

	return e.tasks.Run(context.Background(), kindKey, func(taskCtx context.Context) error {
		return e.reconcileDelete(taskCtx, cap, kindKey, actor, force)
	})
}

// Revert loads the historical spec row, constructs a new partial from its
// data, and delegates to Put; the historical row is never mutated, so
// revert is itself versioned.
func (e *Engine) Revert(ctx context.Context, kind model.Kind, kindKey string, specID uuid.UUID) (any, error) {
	historical, err := e.specs.Get(ctx, specID)
	if err != nil {
		return nil, err
	}
	if historical.KindKey != kindKey {
		return nil, apierror.NotFoundf("spec %s not found for %q", specID, kindKey)
	}
	partial, err := model.NewPartial(kind)
	if err != nil {
		return nil, apierror.Wrap(apierror.Internal, "lifecycle: revert", err)
	}
	if err := json.Unmarshal(historical.Data, partial); err != nil {
		return nil, apierror.Wrap(apierror.Internal, "lifecycle: revert: decode historical spec", err)
	}
	return e.Put(ctx, kind, kindKey, partial)
}

// Inspect joins the object row, its current spec, its status and (where
// the capability supports it) runtime-reported instance counts, without
// acquiring any task-manager lock.
func (e *Engine) Inspect(ctx context.Context, kind model.Kind, kindKey string) (any, error) {
	cap, err := e.registry.Get(kind)
	if err != nil {
		return nil, err
	}
	row := cap.NewRow()
	if err := store.ReadByPKInto(ctx, e.gw, cap.Table(), "key", kindKey, row); err != nil {
		return nil, err
	}
	var data []byte
	if spec, serr := e.specs.Latest(ctx, kindKey); serr == nil {
		data = spec.Data
	}
	summary, err := cap.FromRow(row, data)
	if err != nil {
		return nil, err
	}
	e.attachStatus(ctx, summary, kindKey)
	if counter, ok := cap.(instanceCounter); ok {
		if total, running, cerr := counter.CountInstances(ctx, kindKey); cerr == nil {
			setInstanceCounts(summary, total, running)
		}
	}
	return summary, nil
}

// List reads every row of kind matching filter and projects each into its
// public summary, the same join Inspect does but over a page of rows
// instead of one. Readers are lock-free against writers per SPEC_FULL.md's
// concurrency model: List never touches the task manager or fanout
// registry, only the persistence gateway.
func (e *Engine) List(ctx context.Context, kind model.Kind, filter model.GenericFilter) ([]any, error) {
	cap, err := e.registry.Get(kind)
	if err != nil {
		return nil, err
	}
	rowType := reflect.TypeOf(cap.NewRow()).Elem()
	slicePtr := reflect.New(reflect.SliceOf(reflect.PointerTo(rowType)))
	if err := store.ReadByInto(ctx, e.gw, cap.Table(), insertColumnFields(cap), filter, slicePtr.Interface()); err != nil {
		return nil, err
	}

	rows := slicePtr.Elem()
	out := make([]any, 0, rows.Len())
	for i := 0; i < rows.Len(); i++ {
		row := rows.Index(i).Interface()
		kindKey := reflect.ValueOf(row).Elem().FieldByName("Key").String()

		var data []byte
		if spec, serr := e.specs.Latest(ctx, kindKey); serr == nil {
			data = spec.Data
		}
		summary, ferr := cap.FromRow(row, data)
		if ferr != nil {
			return nil, ferr
		}
		e.attachStatus(ctx, summary, kindKey)
		if counter, ok := cap.(instanceCounter); ok {
			if total, running, cerr := counter.CountInstances(ctx, kindKey); cerr == nil {
				setInstanceCounts(summary, total, running)
			}
		}
		out = append(out, summary)
	}
	return out, nil
}

// Count reports how many rows of kind match filter, for the `/{kind}/count`
// endpoints, without joining spec or runtime state.
func (e *Engine) Count(ctx context.Context, kind model.Kind, filter model.GenericFilter) (int64, error) {
	cap, err := e.registry.Get(kind)
	if err != nil {
		return 0, err
	}
	return store.CountBy(ctx, e.gw, cap.Table(), insertColumnFields(cap), filter)
}

// insertColumnFields derives the set of columns a GenericFilter may
// reference for cap's table: its InsertColumns() plus the columns every
// reconcilable row carries (key, spec_key, created_at, updated_at).
func insertColumnFields(cap registry.Capability) store.FieldSet {
	fields := store.FieldSet{"key": true, "spec_key": true, "created_at": true, "updated_at": true}
	for _, c := range cap.InsertColumns() {
		fields[c] = true
	}
	return fields
}

// instanceCounter is an optional capability extension: kinds with a
// runtime footprint (Cargo, Vm, Job) implement it so Inspect/Delete can
// report/enforce instance counts without the core Capability contract
// every kind (including Resource, Secret) having to carry runtime-shaped
// methods it would only ever no-op.
type instanceCounter interface {
	CountInstances(ctx context.Context, kindKey string) (total, running int, err error)
}

func (e *Engine) setSpecPointer(ctx context.Context, cap registry.Capability, kindKey string, specID uuid.UUID) error {
	row := struct {
		Key       string    `db:"key"`
		SpecKey   string    `db:"spec_key"`
		UpdatedAt time.Time `db:"updated_at"`
	}{Key: kindKey, SpecKey: specID.String(), UpdatedAt: time.Now()}
	return store.UpdateByPK(ctx, e.gw, cap.Table(), "key", kindKey, []string{"spec_key", "updated_at"}, row)
}

func (e *Engine) attachStatus(ctx context.Context, summary any, kindKey string) {
	st, err := e.statuses.Get(ctx, kindKey)
	if err != nil {
		return
	}
	setStatusField(summary, *st)
}

// setStatusField and setInstanceCounts are small reflection helpers: the
// engine is generic over Capability.FromRow's return type, which differs
// per kind (CargoSummary, VmSummary, ... ResourceSummary, which has no
// Status/instance fields at all), so it can only opportunistically fill
// fields that happen to exist rather than addressing them statically.
func setStatusField(summary any, status model.ObjPsStatus) {
	f := summaryField(summary, "Status")
	if f.IsValid() && f.CanSet() && f.Type() == reflect.TypeOf(model.ObjPsStatus{}) {
		f.Set(reflect.ValueOf(status))
	}
}

func setInstanceCounts(summary any, total, running int) {
	if f := summaryField(summary, "InstanceTotal"); f.IsValid() && f.CanSet() && f.Kind() == reflect.Int {
		f.SetInt(int64(total))
	}
	if f := summaryField(summary, "InstanceRunning"); f.IsValid() && f.CanSet() && f.Kind() == reflect.Int {
		f.SetInt(int64(running))
	}
}

func summaryField(summary any, name string) reflect.Value {
	v := reflect.ValueOf(summary)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return reflect.Value{}
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return reflect.Value{}
	}
	return v.FieldByName(name)
}

// nextVersion increments a decimal version string; non-numeric versions
// (never produced by this engine, but defensive against manually inserted
// rows) fall back to appending ".1".
func nextVersion(prev string) string {
	n, err := strconv.Atoi(prev)
	if err != nil {
		return prev + ".1"
	}
	return strconv.Itoa(n + 1)
}
