package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"

	"github.com/heatguard/risk-scoring-api/internal/apperrors"
)

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// errorResponse is the JSON error envelope every failing endpoint
// returns: { "error": <kind>, "detail": <string>, "timestamp": <iso-8601> }.
type errorResponse struct {
	Error     string    `json:"error"`
	Detail    string    `json:"detail"`
	Timestamp time.Time `json:"timestamp"`
}

// writeError translates err's apperrors.Kind to an HTTP status and
// writes the standard error envelope, logging server-side errors. The
// detail text never includes an internal error's wrapped cause, so
// debug information cannot leak into production responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperrors.KindOf(err)
	status := kind.HTTPStatus()
	if status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{
		Error:     string(kind),
		Detail:    apperrors.DetailOf(err),
		Timestamp: time.Now().UTC(),
	})
}

// decodeJSON reads and decodes the request body into v, rejecting
// unknown fields so typos in a client's payload surface immediately.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperrors.Wrap(apperrors.ValidationError, "invalid JSON request body", err)
	}
	return nil
}
