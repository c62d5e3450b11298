package httpapi

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/nanocl-io/nanocld/infrastructure/httputil"
	"github.com/nanocl-io/nanocld/internal/apierror"
	"github.com/nanocl-io/nanocld/internal/model"
)

// namespacedKinds scope their name by the ?namespace= query parameter, per
// spec.md section 3: "Namespace scopes Cargoes and VMs only."
var namespacedKinds = map[model.Kind]bool{
	model.KindCargo: true,
	model.KindVm:    true,
}

// wildcardNameKinds key by their full "{domain}/{name}" string, so the path
// variable must capture embedded slashes.
var wildcardNameKinds = map[model.Kind]bool{
	model.KindResourceKind: true,
}

// mountKind registers the uniform list/inspect/create/put/patch/delete/
// histories/revert/count route family for one object kind, per spec.md
// section 6's "same pattern applies to ..." note.
func (s *Server) mountKind(r *mux.Router, base string, kind model.Kind) {
	nameParam := "{name}"
	if wildcardNameKinds[kind] {
		nameParam = "{name:.+}"
	}

	r.HandleFunc(base, s.handleList(kind)).Methods(http.MethodGet)
	r.HandleFunc(base, s.handleCreate(kind)).Methods(http.MethodPost)
	r.HandleFunc(base+"/count", s.handleCount(kind)).Methods(http.MethodGet)
	r.HandleFunc(base+"/"+nameParam, s.handlePut(kind)).Methods(http.MethodPut)
	r.HandleFunc(base+"/"+nameParam, s.handlePatch(kind)).Methods(http.MethodPatch)
	r.HandleFunc(base+"/"+nameParam, s.handleDelete(kind)).Methods(http.MethodDelete)
	r.HandleFunc(base+"/"+nameParam+"/inspect", s.handleInspect(kind)).Methods(http.MethodGet)
	r.HandleFunc(base+"/"+nameParam+"/histories", s.handleHistories(kind)).Methods(http.MethodGet)
	r.HandleFunc(base+"/"+nameParam+"/histories/{id}/revert", s.handleRevert(kind)).Methods(http.MethodPatch)
}

// kindKey derives the object's primary key from the path name and, for
// namespace-scoped kinds, the ?namespace= query parameter (defaulting to
// "global" to match internal/objects/cargo and internal/objects/vm's
// ToRow default).
func kindKey(r *http.Request, kind model.Kind) string {
	name := mux.Vars(r)["name"]
	if namespacedKinds[kind] {
		ns := r.URL.Query().Get("namespace")
		if ns == "" {
			ns = "global"
		}
		return model.NamespacedKey(name, ns)
	}
	return name
}

func (s *Server) handleList(kind model.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := decodeFilter(r)
		if err != nil {
			writeAPIErr(w, err)
			return
		}
		if namespacedKinds[kind] {
			if ns := r.URL.Query().Get("namespace"); ns != "" {
				filter = filter.WithEq("namespace", ns)
			}
		}
		out, err := s.Engine.List(r.Context(), kind, filter)
		if err != nil {
			writeAPIErr(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleCount(kind model.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := decodeFilter(r)
		if err != nil {
			writeAPIErr(w, err)
			return
		}
		if namespacedKinds[kind] {
			if ns := r.URL.Query().Get("namespace"); ns != "" {
				filter = filter.WithEq("namespace", ns)
			}
		}
		n, err := s.Engine.Count(r.Context(), kind, filter)
		if err != nil {
			writeAPIErr(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]int64{"count": n})
	}
}

func (s *Server) handleCreate(kind model.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		partial, err := model.NewPartial(kind)
		if err != nil {
			writeAPIErr(w, apierror.Wrap(apierror.Internal, "httpapi", err))
			return
		}
		if !httputil.DecodeJSON(w, r, partial) {
			return
		}
		if namespacedKinds[kind] {
			if ns := r.URL.Query().Get("namespace"); ns != "" {
				setNamespace(partial, ns)
			}
		}
		out, err := s.Engine.Create(r.Context(), kind, partial)
		if err != nil {
			writeAPIErr(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, out)
	}
}

func (s *Server) handlePut(kind model.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		partial, err := model.NewPartial(kind)
		if err != nil {
			writeAPIErr(w, apierror.Wrap(apierror.Internal, "httpapi", err))
			return
		}
		if !httputil.DecodeJSON(w, r, partial) {
			return
		}
		out, err := s.Engine.Put(r.Context(), kind, kindKey(r, kind), partial)
		if err != nil {
			writeAPIErr(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handlePatch(kind model.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := httputil.ReadRawJSON(w, r)
		if !ok {
			return
		}
		out, err := s.Engine.Patch(r.Context(), kind, kindKey(r, kind), body)
		if err != nil {
			writeAPIErr(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleDelete(kind model.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
		if err := s.Engine.Delete(r.Context(), kind, kindKey(r, kind), force); err != nil {
			writeAPIErr(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func (s *Server) handleInspect(kind model.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := s.Engine.Inspect(r.Context(), kind, kindKey(r, kind))
		if err != nil {
			writeAPIErr(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleHistories(kind model.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		specs, err := s.Specs.List(r.Context(), kindKey(r, kind))
		if err != nil {
			writeAPIErr(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, specs)
	}
}

func (s *Server) handleRevert(kind model.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(mux.Vars(r)["id"])
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid history id")
			return
		}
		out, err := s.Engine.Revert(r.Context(), kind, kindKey(r, kind), id)
		if err != nil {
			writeAPIErr(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, out)
	}
}

// writeAPIErr maps an apierror.Error (or any error, defaulting to Internal)
// to the daemon's {"msg": "..."} envelope and matching HTTP status, per
// spec.md section 7.
func writeAPIErr(w http.ResponseWriter, err error) {
	httputil.WriteError(w, apierror.HTTPStatusFor(apierror.KindOf(err)), err.Error())
}

// setNamespace reflects a Namespace field onto a partial payload when the
// caller supplied ?namespace= and the body omitted it, so query and body
// namespaces never silently disagree for Cargo/Vm creation.
func setNamespace(partial any, ns string) {
	switch p := partial.(type) {
	case *model.CargoSpecPartial:
		if p.Namespace == "" {
			p.Namespace = ns
		}
	case *model.VmSpecPartial:
		if p.Namespace == "" {
			p.Namespace = ns
		}
	}
}
