// Package httpapi is the REST transport the object lifecycle engine is
// driven through: HTTP handler -> internal/lifecycle -> internal/store +
// internal/spechistory, emitting through internal/eventbus. Per SPEC_FULL.md
// this layer is a replaceable external collaborator (routing + JSON
// serialisation only); none of the reconciliation logic lives here. Routing
// and the middleware stack are grounded in the teacher's
// infrastructure/service (gorilla/mux router + infrastructure/middleware
// chain); handler shape is grounded in original_source/bin/nanocld/src/
// services' per-kind list/inspect/create/put/patch/delete/histories/revert/
// count pattern.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nanocl-io/nanocld/infrastructure/logging"
	"github.com/nanocl-io/nanocld/infrastructure/metrics"
	"github.com/nanocl-io/nanocld/infrastructure/middleware"
	"github.com/nanocl-io/nanocld/internal/eventbus"
	"github.com/nanocl-io/nanocld/internal/lifecycle"
	"github.com/nanocl-io/nanocld/internal/model"
	"github.com/nanocl-io/nanocld/internal/nodestore"
	"github.com/nanocl-io/nanocld/internal/objects/namespace"
	"github.com/nanocl-io/nanocld/internal/runtime"
	"github.com/nanocl-io/nanocld/internal/spechistory"
)

// Server bundles the daemon's HTTP surface: the lifecycle engine every
// per-kind route dispatches through, plus the handful of collaborators
// (event bus, spec history, runtime adapter, namespace/node stores) that
// don't go through it.
type Server struct {
	Engine     *lifecycle.Engine
	Bus        *eventbus.Bus
	Specs      *spechistory.Store
	Namespaces *namespace.Store
	Nodes      *nodestore.Store
	Runtime    runtime.Adapter
	Log        *logging.Logger
	Metrics    *metrics.Metrics
	NodeName   string
	StateDir   string
}

// NewRouter builds the daemon's mux.Router: the middleware chain every
// request passes through (recovery, security headers, CORS, body limit,
// request timeout, logging, metrics, rate limiting), followed by the
// versioned route tree for each object kind plus /events/watch and the
// process verbs.
func NewRouter(s *Server) *mux.Router {
	r := mux.NewRouter()

	recovery := middleware.NewRecoveryMiddleware(s.Log)
	security := middleware.NewSecurityHeadersMiddleware(nil)
	cors := middleware.NewCORSMiddleware(nil)
	bodyLimit := middleware.NewBodyLimitMiddleware(0)
	rateLimiter := middleware.NewRateLimiter(50, 100, s.Log)

	r.Use(recovery.Handler)
	r.Use(security.Handler)
	r.Use(cors.Handler)
	r.Use(middleware.LoggingMiddleware(s.Log))
	if s.Metrics != nil {
		r.Use(middleware.MetricsMiddleware("nanocld", s.Metrics))
	}
	r.Use(bodyLimit.Handler)
	r.Use(rateLimiter.Handler)

	r.HandleFunc("/_ping", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodGet)
	if s.Metrics != nil {
		r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}

	// /events/watch is a long-lived stream and deliberately excluded from
	// the unary request timeout (spec.md 5: "default: infinite for
	// streams, 30s for unary").
	streams := r.PathPrefix("/v1").Subrouter()
	s.mountEvents(streams)

	unary := r.PathPrefix("/v1").Subrouter()
	unary.Use(middleware.NewTimeoutMiddleware(30 * time.Second).Handler)

	s.mountKind(unary, "/cargoes", model.KindCargo)
	s.mountKind(unary, "/vms", model.KindVm)
	s.mountKind(unary, "/jobs", model.KindJob)
	s.mountKind(unary, "/secrets", model.KindSecret)
	s.mountKind(unary, "/resources", model.KindResource)
	s.mountKind(unary, "/resource/kinds", model.KindResourceKind)

	s.mountNamespaces(unary)
	s.mountProcesses(unary)
	s.mountNodes(unary)

	return r
}
