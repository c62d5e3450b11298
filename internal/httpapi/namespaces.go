package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nanocl-io/nanocld/infrastructure/httputil"
	"github.com/nanocl-io/nanocld/internal/model"
)

// mountNamespaces wires /namespaces directly against internal/objects/
// namespace.Store rather than internal/lifecycle: a Namespace has no spec
// history or reconciler (see that package's doc comment), so it never goes
// through the registry.Capability dispatch the other kinds share.
func (s *Server) mountNamespaces(r *mux.Router) {
	r.HandleFunc("/namespaces", s.listNamespaces).Methods(http.MethodGet)
	r.HandleFunc("/namespaces", s.createNamespace).Methods(http.MethodPost)
	r.HandleFunc("/namespaces/count", s.countNamespaces).Methods(http.MethodGet)
	r.HandleFunc("/namespaces/{name}/inspect", s.inspectNamespace).Methods(http.MethodGet)
	r.HandleFunc("/namespaces/{name}", s.deleteNamespace).Methods(http.MethodDelete)
}

func (s *Server) listNamespaces(w http.ResponseWriter, r *http.Request) {
	filter, err := decodeFilter(r)
	if err != nil {
		writeAPIErr(w, err)
		return
	}
	out, err := s.Namespaces.List(r.Context(), filter)
	if err != nil {
		writeAPIErr(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) countNamespaces(w http.ResponseWriter, r *http.Request) {
	filter, err := decodeFilter(r)
	if err != nil {
		writeAPIErr(w, err)
		return
	}
	n, err := s.Namespaces.Count(r.Context(), filter)
	if err != nil {
		writeAPIErr(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int64{"count": n})
}

func (s *Server) createNamespace(w http.ResponseWriter, r *http.Request) {
	var p model.NamespacePartial
	if !httputil.DecodeJSON(w, r, &p) {
		return
	}
	ns, err := s.Namespaces.Create(r.Context(), p.Name)
	if err != nil {
		writeAPIErr(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, ns)
}

func (s *Server) inspectNamespace(w http.ResponseWriter, r *http.Request) {
	ns, err := s.Namespaces.Get(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		writeAPIErr(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ns)
}

func (s *Server) deleteNamespace(w http.ResponseWriter, r *http.Request) {
	if err := s.Namespaces.Delete(r.Context(), mux.Vars(r)["name"]); err != nil {
		writeAPIErr(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
