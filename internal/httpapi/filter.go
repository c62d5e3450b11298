package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/nanocl-io/nanocld/internal/apierror"
	"github.com/nanocl-io/nanocld/internal/model"
)

// decodeFilter decodes the ?filter=<URL-encoded JSON> query parameter into
// a GenericFilter, per spec.md section 6. net/http's URL.Query() already
// percent-decodes the raw value, so the result is ready to unmarshal as-is.
// An absent filter is the zero value (match everything); malformed JSON is
// apierror.InvalidInput so it maps to 400.
func decodeFilter(r *http.Request) (model.GenericFilter, error) {
	raw := r.URL.Query().Get("filter")
	if raw == "" {
		return model.GenericFilter{}, nil
	}
	var f model.GenericFilter
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return model.GenericFilter{}, apierror.InvalidInputf("filter: %v", err)
	}
	return f, nil
}
