// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/spcut/internal/download"
	"github.com/ManuGH/spcut/internal/log"
	"github.com/ManuGH/spcut/internal/service"
)

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId"`
	JobID     string `json:"jobId,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the canonical error body.
func writeError(w http.ResponseWriter, r *http.Request, code int, msg, jobID string) {
	writeJSON(w, code, errorResponse{
		Error:     msg,
		RequestID: log.RequestIDFromContext(r.Context()),
		JobID:     jobID,
	})
}

// writeOperationError maps a service error onto an HTTP status.
func writeOperationError(w http.ResponseWriter, r *http.Request, op, jobID string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error(), jobID)
	case errors.Is(err, download.ErrStatus), errors.Is(err, download.ErrTooLarge):
		writeError(w, r, http.StatusBadRequest, "failed to "+op+" video: "+err.Error(), jobID)
	case errors.Is(err, service.ErrBusy):
		w.Header().Set("Retry-After", "30")
		writeError(w, r, http.StatusServiceUnavailable, "all operation slots are busy, retry later", jobID)
	default:
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Warn().Err(err).
			Str(log.FieldEvent, "operation.failed").
			Str(log.FieldOperation, op).
			Str(log.FieldJobID, jobID).
			Msg("operation failed")
		writeError(w, r, http.StatusInternalServerError, "failed to "+op+" video: "+err.Error(), jobID)
	}
}
