package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nanocl-io/nanocld/infrastructure/httputil"
	"github.com/nanocl-io/nanocld/internal/hoststats"
	"github.com/nanocl-io/nanocld/internal/model"
)

// mountNodes registers the node-registration list/count/inspect routes.
// Host resource usage (cpu/mem/disk, via shirou/gopsutil/v3) is attached
// only by inspect, and only for the local node; list and count return
// registration rows alone.
func (s *Server) mountNodes(r *mux.Router) {
	r.HandleFunc("/nodes", s.listNodes).Methods(http.MethodGet)
	r.HandleFunc("/nodes/count", s.countNodes).Methods(http.MethodGet)
	r.HandleFunc("/nodes/{name}/inspect", s.inspectNode).Methods(http.MethodGet)
}

func (s *Server) listNodes(w http.ResponseWriter, r *http.Request) {
	filter, err := decodeFilter(r)
	if err != nil {
		writeAPIErr(w, err)
		return
	}
	out, err := s.Nodes.List(r.Context(), filter)
	if err != nil {
		writeAPIErr(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) countNodes(w http.ResponseWriter, r *http.Request) {
	filter, err := decodeFilter(r)
	if err != nil {
		writeAPIErr(w, err)
		return
	}
	n, err := s.Nodes.Count(r.Context(), filter)
	if err != nil {
		writeAPIErr(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int64{"count": n})
}

// inspectNode joins the node's registration row with a freshly-sampled
// host-usage snapshot; usage is never persisted, only reported live.
func (s *Server) inspectNode(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	node, err := s.Nodes.Get(r.Context(), name)
	if err != nil {
		writeAPIErr(w, err)
		return
	}
	type inspectResponse struct {
		model.Node
		Usage hoststats.Usage `json:"usage"`
	}
	resp := inspectResponse{Node: *node}
	if name == s.NodeName {
		resp.Usage = hoststats.Sample(r.Context(), s.StateDir)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
