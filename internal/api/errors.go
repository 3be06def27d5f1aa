package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-presence/internal/location"
	"github.com/nerrad567/gray-logic-presence/internal/monitor"
	"github.com/nerrad567/gray-logic-presence/internal/presence"
)

// Error is the body of every non-2xx response. RequestID matches the
// X-Request-ID response header.
type Error struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Error codes.
const (
	CodeBadRequest    = "bad_request"
	CodeValidation    = "validation_error"
	CodeUnauthorized  = "unauthorised"
	CodeNotFound      = "not_found"
	CodeConflict      = "conflict"
	CodeRegionLimit   = "region_limit"
	CodeScanner       = "scanner_unavailable"
	CodeEngineStopped = "engine_stopped"
	CodeInternal      = "internal_error"
)

// outcome is the response for one class of domain error. An empty message
// reports the error text.
type outcome struct {
	target  error
	status  int
	code    string
	message string
}

// outcomes is checked in order with errors.Is.
var outcomes = []outcome{
	{location.ErrRoomNotFound, http.StatusNotFound, CodeNotFound, "room not found"},
	{location.ErrRoomExists, http.StatusConflict, CodeConflict, ""},
	{location.ErrInvalidRoomID, http.StatusBadRequest, CodeValidation, ""},
	{location.ErrInvalidName, http.StatusBadRequest, CodeValidation, ""},
	{location.ErrInvalidBeacon, http.StatusBadRequest, CodeValidation, ""},
	{monitor.ErrRegionLimit, http.StatusConflict, CodeRegionLimit, ""},
	{monitor.ErrPlatform, http.StatusBadGateway, CodeScanner, "scanner command failed"},
	{presence.ErrStopped, http.StatusServiceUnavailable, CodeEngineStopped, "presence engine stopped"},
}

// writeFailure answers with the outcome mapped for err, or with fallback as
// a 500. Server-side failures are logged with attrs.
func (s *Server) writeFailure(w http.ResponseWriter, err error, fallback string, attrs ...any) {
	res := outcome{status: http.StatusInternalServerError, code: CodeInternal, message: fallback}
	for _, o := range outcomes {
		if errors.Is(err, o.target) {
			res = o
			if res.message == "" {
				res.message = err.Error()
			}
			break
		}
	}
	if res.status >= http.StatusInternalServerError {
		s.logger.Error(fallback, append(attrs, "error", err)...)
	}
	writeError(w, res.status, res.code, res.message)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	//nolint:errcheck // client may have gone away
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: w.Header().Get(headerRequestID),
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, CodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, CodeNotFound, message)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, CodeInternal, message)
}
