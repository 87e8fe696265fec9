package web

import (
	"encoding/json"
	"io"
	"net/http"

	perr "openshelf/internal/platform/errors"
)

// Envelope is the standard response body for all endpoints
type Envelope struct {
	StatusCode int            `json:"status_code"`
	Status     string         `json:"status"`
	Code       perr.ErrorCode `json:"code,omitempty"`
	Error      string         `json:"error,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Data       any            `json:"data,omitempty"`
}

// JSON writes v as application/json with the given status
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// RespondOK writes a 200 envelope with data
func RespondOK(w http.ResponseWriter, r *http.Request, data any) {
	respond(w, r, http.StatusOK, data)
}

// RespondAccepted writes a 202 envelope with data
func RespondAccepted(w http.ResponseWriter, r *http.Request, data any) {
	respond(w, r, http.StatusAccepted, data)
}

func respond(w http.ResponseWriter, r *http.Request, status int, data any) {
	JSON(w, status, Envelope{
		StatusCode: status,
		Status:     http.StatusText(status),
		RequestID:  RequestID(r.Context()),
		Data:       data,
	})
}

// RespondError maps a project error into an envelope and writes it
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	status := perr.HTTPStatus(err)
	wire := perr.WireFrom(err)
	JSON(w, status, Envelope{
		StatusCode: status,
		Status:     http.StatusText(status),
		Code:       wire.Code,
		Error:      wire.Message,
		RequestID:  RequestID(r.Context()),
	})
}

// DecodeJSON decodes a request body into dst with a size cap
func DecodeJSON(r *http.Request, dst any, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "read body")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "decode body")
	}
	return nil
}
