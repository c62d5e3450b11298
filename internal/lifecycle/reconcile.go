package lifecycle

import (
	"context"
	"time"

	"github.com/nanocl-io/nanocld/internal/apierror"
	"github.com/nanocl-io/nanocld/internal/model"
	"github.com/nanocl-io/nanocld/internal/registry"
	"github.com/nanocl-io/nanocld/internal/store"
)

// spawnMaterialise starts a background reconciler that brings a freshly
// created object's actual state toward Start, per spec.md 4.F's Create
// pipeline ("spawn background reconciler via task manager").
func (e *Engine) spawnMaterialise(cap registry.Capability, kindKey string, specData []byte, actor model.EventActor) {
	if err := e.tasks.Run(context.Background(), kindKey, func(ctx context.Context) error {
		return e.reconcileMaterialise(ctx, cap, kindKey, specData, actor)
	}); err != nil {
		e.log.WithField("error", err).WithField("key", kindKey).Warn("create: reconciler rejected")
	}
}

// spawnRecreate starts a background reconciler that tears down the
// object's existing runtime state before materialising the new spec, per
// spec.md 4.F's Put pipeline.
func (e *Engine) spawnRecreate(cap registry.Capability, kindKey string, specData []byte, actor model.EventActor) {
	if err := e.tasks.Run(context.Background(), kindKey, func(ctx context.Context) error {
		if err := cap.Teardown(ctx, kindKey, true); err != nil {
			e.log.WithField("error", err).WithField("key", kindKey).Warn("put: teardown before recreate failed")
		}
		return e.reconcileMaterialise(ctx, cap, kindKey, specData, actor)
	}); err != nil {
		e.log.WithField("error", err).WithField("key", kindKey).Warn("put: reconciler rejected")
	}
}

// reconcileMaterialise drives a capability's Materialise to success,
// retrying transient failures with exponential backoff and giving up
// immediately on permanent ones, per spec.md 4.F's failure semantics.
func (e *Engine) reconcileMaterialise(ctx context.Context, cap registry.Capability, kindKey string, specData []byte, actor model.EventActor) error {
	e.bus.SpawnEmitEvent(model.EventPartial{
		Kind: model.EventNormal, Action: model.ActionStarting, Actor: &actor,
		ReportingController: reportingController, ReportingNode: e.nodeName,
	})

	backoff := e.reconcile.BackoffBase
	var lastErr error
	for attempt := 1; attempt <= e.reconcile.MaxAttempts; attempt++ {
		start := time.Now()
		err := cap.Materialise(ctx, kindKey, specData)
		if err == nil {
			e.recordReconcile(cap.Kind(), "materialise", "success", time.Since(start))
			_ = e.statuses.SetActual(context.Background(), kindKey, model.StatusStart)
			e.bus.SpawnEmitEvent(model.EventPartial{
				Kind: model.EventNormal, Action: model.ActionStart, Actor: &actor,
				ReportingController: reportingController, ReportingNode: e.nodeName,
			})
			return nil
		}
		lastErr = err
		e.recordReconcile(cap.Kind(), "materialise", "failed", time.Since(start))

		if ctx.Err() != nil {
			e.bus.SpawnEmitEvent(model.EventPartial{
				Kind: model.EventWarning, Action: model.ActionCancelled, Actor: &actor, Note: err.Error(),
				ReportingController: reportingController, ReportingNode: e.nodeName,
			})
			_ = cap.Teardown(context.Background(), kindKey, true)
			return err
		}

		if !isTransient(err) {
			_ = e.statuses.SetActual(context.Background(), kindKey, model.StatusFail)
			e.bus.SpawnEmitEvent(model.EventPartial{
				Kind: model.EventError, Action: model.ActionFail, Actor: &actor, Note: err.Error(),
				ReportingController: reportingController, ReportingNode: e.nodeName,
			})
			return err
		}

		e.bus.SpawnEmitEvent(model.EventPartial{
			Kind: model.EventWarning, Action: model.ActionFail, Actor: &actor,
			Reason: "transient", Note: err.Error(),
			ReportingController: reportingController, ReportingNode: e.nodeName,
		})
		if attempt == e.reconcile.MaxAttempts {
			break
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
		if backoff > e.reconcile.BackoffMax {
			backoff = e.reconcile.BackoffMax
		}
	}

	_ = e.statuses.SetActual(context.Background(), kindKey, model.StatusFail)
	e.bus.SpawnEmitEvent(model.EventPartial{
		Kind: model.EventError, Action: model.ActionFail, Actor: &actor, Note: lastErr.Error(),
		ReportingController: reportingController, ReportingNode: e.nodeName,
	})
	return lastErr
}

// reconcileDelete tears down runtime artefacts, then removes the spec
// history, status row and object row as a single unit of work, per
// spec.md 4.F's Delete pipeline.
func (e *Engine) reconcileDelete(ctx context.Context, cap registry.Capability, kindKey string, actor model.EventActor, force bool) error {
	start := time.Now()
	err := cap.Teardown(ctx, kindKey, force)
	if err != nil {
		e.recordReconcile(cap.Kind(), "teardown", "failed", time.Since(start))
		e.bus.SpawnEmitEvent(model.EventPartial{
			Kind: model.EventError, Action: model.ActionFail, Actor: &actor, Note: err.Error(),
			ReportingController: reportingController, ReportingNode: e.nodeName,
		})
		return err
	}
	e.recordReconcile(cap.Kind(), "teardown", "success", time.Since(start))

	err = e.gw.WithTx(ctx, func(ctx context.Context) error {
		if err := e.specs.DeleteAll(ctx, kindKey); err != nil {
			return err
		}
		if err := e.statuses.Delete(ctx, kindKey); err != nil {
			return err
		}
		return store.DelByPK(ctx, e.gw, cap.Table(), "key", kindKey)
	})
	if err != nil {
		return err
	}

	e.bus.SpawnEmitEvent(model.EventPartial{
		Kind: model.EventNormal, Action: model.ActionDestroy, Actor: &actor,
		ReportingController: reportingController, ReportingNode: e.nodeName,
	})
	return nil
}

// isTransient classifies a runtime-adapter failure (already translated to
// an *apierror.Error by the capability) as retryable. Unavailable covers
// "runtime unreachable"; Timeout covers "image pull timeout" — the two
// examples spec.md 4.F names for the transient case.
func isTransient(err error) bool {
	switch apierror.KindOf(err) {
	case apierror.Unavailable, apierror.Timeout:
		return true
	default:
		return false
	}
}
