package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/nanocl-io/nanocld/internal/apierror"
	"github.com/nanocl-io/nanocld/internal/model"
)

// wsUpgrader upgrades GET /events/watch/ws for clients that prefer a framed
// connection over raw chunked streaming (SPEC_FULL.md section 6); origin
// checking is delegated to infrastructure/middleware's CORS layer, which
// already runs ahead of this handler in the chain.
var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// keepAliveInterval is how often a comment line is written to an idle
// /events/watch stream so intermediate proxies don't time out the
// connection, per spec.md section 6's "keep-alive comments every 30 s".
const keepAliveInterval = 30 * time.Second

// mountEvents registers the durable event log's read path (GET /events, a
// plain paginated list) and its live path (GET /events/watch, a
// line-delimited JSON stream fed by internal/eventbus.Bus.Subscribe).
func (s *Server) mountEvents(r *mux.Router) {
	r.HandleFunc("/events", s.listEvents).Methods(http.MethodGet)
	r.HandleFunc("/events/watch", s.watchEvents).Methods(http.MethodGet)
	r.HandleFunc("/events/watch/ws", s.watchEventsWS).Methods(http.MethodGet)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := decodeFilter(r)
	if err != nil {
		writeAPIErr(w, err)
		return
	}
	events, err := s.Bus.List(r.Context(), filter)
	if err != nil {
		writeAPIErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events)
}

// watchEvents streams matching events as they're emitted: one JSON object
// per line, flushed immediately, with a `{}` keep-alive comment line written
// on idle so the connection survives an intermediate proxy's read timeout.
// The stream has no deadline of its own; it ends when the client
// disconnects or the server shuts down (ctx is cancelled).
func (s *Server) watchEvents(w http.ResponseWriter, r *http.Request) {
	condition, err := decodeEventCondition(r)
	if err != nil {
		writeAPIErr(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch, cancel := s.Bus.Subscribe(condition)
	defer cancel()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	enc := json.NewEncoder(w)
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-ch:
			if !open {
				return
			}
			if err := enc.Encode(ev); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := w.Write([]byte("{}\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// watchEventsWS is the framed-connection counterpart to watchEvents, fed by
// the same subscription. A reader goroutine drains client-sent control
// frames (pings, close) purely to detect disconnects, since the protocol is
// server-push only.
func (s *Server) watchEventsWS(w http.ResponseWriter, r *http.Request) {
	condition, err := decodeEventCondition(r)
	if err != nil {
		writeAPIErr(w, err)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch, cancel := s.Bus.Subscribe(condition)
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			return
		case ev, open := <-ch:
			if !open {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// decodeEventCondition decodes the same ?filter= parameter watch uses to
// scope the stream, reusing model.EventCondition's own field names
// (actor_kind, actor_key, actions, kind) rather than GenericFilter's clause
// syntax, since a subscription filter is a single flat match, not a query.
func decodeEventCondition(r *http.Request) (*model.EventCondition, error) {
	raw := r.URL.Query().Get("filter")
	if raw == "" {
		return nil, nil
	}
	var c model.EventCondition
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, apierror.InvalidInputf("filter: %v", err)
	}
	return &c, nil
}
