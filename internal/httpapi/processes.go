package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nanocl-io/nanocld/infrastructure/httputil"
	"github.com/nanocl-io/nanocld/internal/apierror"
	"github.com/nanocl-io/nanocld/internal/model"
	"github.com/nanocl-io/nanocld/internal/runtime"
)

// processKinds maps the {kind} path segment to the object kind whose
// reconcilable key the runtime adapter expects, per spec.md section 6's
// `/processes/{kind}/{name}/start|stop|restart|kill` route.
var processKinds = map[string]model.Kind{
	"cargoes": model.KindCargo,
	"vms":     model.KindVm,
	"jobs":    model.KindJob,
}

// mountProcesses wires the start/stop/restart/kill verbs directly against
// the runtime adapter: these act on an already-materialised instance and
// never touch spec history or status.wanted, unlike the Put-driven
// reconciliation the other kind routes trigger.
func (s *Server) mountProcesses(r *mux.Router) {
	r.HandleFunc("/processes/{kind}/{name}/start", s.processAction(processStart)).Methods(http.MethodPost)
	r.HandleFunc("/processes/{kind}/{name}/stop", s.processAction(processStop)).Methods(http.MethodPost)
	r.HandleFunc("/processes/{kind}/{name}/restart", s.processAction(processRestart)).Methods(http.MethodPost)
	r.HandleFunc("/processes/{kind}/{name}/kill", s.processAction(processKill)).Methods(http.MethodPost)
}

type processVerb int

const (
	processStart processVerb = iota
	processStop
	processRestart
	processKill
)

func (s *Server) processAction(verb processVerb) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		kind, ok := processKinds[vars["kind"]]
		if !ok {
			httputil.WriteError(w, http.StatusBadRequest, "unknown process kind "+vars["kind"])
			return
		}
		key := kindKey(r, kind)

		var err error
		switch verb {
		case processStart:
			err = s.Runtime.Start(r.Context(), key)
		case processStop:
			err = s.Runtime.Stop(r.Context(), key, nil)
		case processRestart:
			err = s.Runtime.Restart(r.Context(), key)
		case processKill:
			signal := httputil.QueryString(r, "signal", "SIGKILL")
			err = s.Runtime.Kill(r.Context(), key, signal)
		}
		if err != nil {
			writeAPIErr(w, runtimeErr(err))
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// runtimeErr maps a runtime.Error onto the apierror.Kind taxonomy so
// writeAPIErr picks the right HTTP status for a synchronous process-control
// call, per spec.md section 7: "Runtime-adapter errors in synchronous
// pipelines ... are surfaced."
func runtimeErr(err error) error {
	re, ok := err.(*runtime.Error)
	if !ok {
		return apierror.Wrap(apierror.Internal, "runtime", err)
	}
	switch re.Kind {
	case runtime.ErrNotFound:
		return apierror.Wrap(apierror.NotFound, "runtime", err)
	case runtime.ErrConflict:
		return apierror.Wrap(apierror.Conflict, "runtime", err)
	case runtime.ErrUnavailable:
		return apierror.Wrap(apierror.Unavailable, "runtime", err)
	case runtime.ErrInvalidSpec:
		return apierror.Wrap(apierror.InvalidInput, "runtime", err)
	default:
		return apierror.Wrap(apierror.Internal, "runtime", err)
	}
}
