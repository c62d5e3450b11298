// Package httputil provides common HTTP helpers shared by the nanocld REST handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/nanocl-io/nanocld/infrastructure/logging"
)

// ErrorBody is the JSON envelope returned on every non-2xx response, per
// the daemon's error handling design: {"msg": "..."}.
type ErrorBody struct {
	Msg string `json:"msg"`
}

var defaultLogger = logging.NewFromEnv("httputil")

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		defaultLogger.WithError(err).Warn("write json response")
	}
}

// WriteError writes the standard {"msg": "..."} error envelope.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorBody{Msg: message})
}

// StructuredErrorBody is the envelope the middleware stack's ServiceError
// writes: a stable machine-readable code alongside the message, plus any
// structured context. code may be empty.
type StructuredErrorBody struct {
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// WriteErrorResponse writes a StructuredErrorBody, used by the middleware
// stack (recovery, rate limiting, body limit, timeout, validation) which
// carries a code and structured details alongside the message. REST
// handlers in internal/httpapi use the plainer WriteError envelope instead.
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	WriteJSON(w, status, StructuredErrorBody{Code: code, Message: message, Details: details})
}

// DecodeJSON decodes a JSON request body into v, writing a 400 response on failure.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		if errors.Is(err, io.EOF) {
			WriteError(w, http.StatusBadRequest, "request body is required")
			return false
		}
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

// ReadRawJSON reads and returns the request body verbatim, writing a 400
// response on failure. Used by handlers (e.g. PATCH) that merge the body
// as opaque JSON rather than decoding it into a typed value.
func ReadRawJSON(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return nil, false
	}
	if len(body) == 0 {
		WriteError(w, http.StatusBadRequest, "request body is required")
		return nil, false
	}
	return json.RawMessage(body), true
}

// QueryInt extracts an integer query parameter with a default value.
func QueryInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(val); err == nil {
		return n
	}
	return defaultVal
}

// QueryString extracts a string query parameter with a default value.
func QueryString(r *http.Request, key, defaultVal string) string {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// QueryBool extracts a boolean query parameter with a default value.
func QueryBool(r *http.Request, key string, defaultVal bool) bool {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	return val == "true" || val == "1" || val == "yes"
}

// ClientIP extracts the best-effort client IP address from the request,
// trusting X-Forwarded-For/X-Real-IP only when the direct peer is on a
// private or loopback network (typical of a reverse proxy deployment).
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	remote := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := splitHostPort(remote); err == nil {
		remote = host
	}
	peer := net.ParseIP(strings.Trim(remote, "[]"))
	if peer == nil || !(peer.IsLoopback() || peer.IsPrivate()) {
		return remote
	}
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			if c := strings.TrimSpace(parts[0]); c != "" {
				return c
			}
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return remote
}

func splitHostPort(hostport string) (string, string, error) {
	i := strings.LastIndex(hostport, ":")
	if i < 0 {
		return hostport, "", fmt.Errorf("missing port")
	}
	return hostport[:i], hostport[i+1:], nil
}
