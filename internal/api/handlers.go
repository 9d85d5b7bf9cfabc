// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/spcut/internal/jobs"
	"github.com/ManuGH/spcut/internal/log"
	"github.com/ManuGH/spcut/internal/service"
)

type urlRequest struct {
	URL string `json:"url"`
}

type mergeRequest struct {
	UID      string `json:"uid"`
	LeftURL  string `json:"left_url"`
	RightURL string `json:"right_url"`
}

type outputResponse struct {
	Output string `json:"output"`
	JobID  string `json:"jobId"`
}

type splitResponse struct {
	Left  string `json:"left"`
	Right string `json:"right"`
	JobID string `json:"jobId"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Hello World!"})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	s.handleURLOperation(w, r, service.OpProcess, s.ops.Process)
}

func (s *Server) handleTranscode(w http.ResponseWriter, r *http.Request) {
	s.handleURLOperation(w, r, service.OpTranscode, s.ops.Transcode)
}

func (s *Server) handleURLOperation(w http.ResponseWriter, r *http.Request, op string, run func(context.Context, string) (service.Result, error)) {
	var req urlRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, r, http.StatusBadRequest, "URL not provided", "")
		return
	}

	res, err := run(r.Context(), req.URL)
	if err != nil {
		writeOperationError(w, r, op, res.JobID, err)
		return
	}
	writeJSON(w, http.StatusOK, outputResponse{Output: res.Outputs["output"], JobID: res.JobID})
}

func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, r, http.StatusBadRequest, "URL not provided", "")
		return
	}

	res, err := s.ops.Split(r.Context(), req.URL)
	if err != nil {
		writeOperationError(w, r, service.OpSplit, res.JobID, err)
		return
	}
	writeJSON(w, http.StatusOK, splitResponse{
		Left:  res.Outputs["left"],
		Right: res.Outputs["right"],
		JobID: res.JobID,
	})
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UID == "" || req.LeftURL == "" || req.RightURL == "" {
		writeError(w, r, http.StatusBadRequest, "uid, left_url and right_url are required", "")
		return
	}

	res, err := s.ops.Merge(r.Context(), service.MergeRequest{
		UID:      req.UID,
		LeftURL:  req.LeftURL,
		RightURL: req.RightURL,
	})
	if err != nil {
		writeOperationError(w, r, service.OpMerge, res.JobID, err)
		return
	}
	writeJSON(w, http.StatusOK, outputResponse{Output: res.Outputs["output"], JobID: res.JobID})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.ops.Job(r.Context(), id)
	if errors.Is(err, jobs.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "job not found", "")
		return
	}
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Str(log.FieldEvent, "jobs.get_failed").Str(log.FieldJobID, id).Msg("job lookup failed")
		writeError(w, r, http.StatusInternalServerError, "job lookup failed", "")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// decodeJSON reads a bounded JSON body into v. It writes the error response
// and returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}

	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large", "")
	case errors.Is(err, io.EOF):
		writeError(w, r, http.StatusBadRequest, "request body is empty", "")
	default:
		writeError(w, r, http.StatusBadRequest, "invalid JSON body", "")
	}
	return false
}
