// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api provides the HTTP interface of spcut.
package api

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/spcut/internal/api/middleware"
	"github.com/ManuGH/spcut/internal/health"
	"github.com/ManuGH/spcut/internal/jobs"
	"github.com/ManuGH/spcut/internal/service"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Operations is the service surface the handlers call. *service.Service
// satisfies it.
type Operations interface {
	Process(ctx context.Context, url string) (service.Result, error)
	Split(ctx context.Context, url string) (service.Result, error)
	Merge(ctx context.Context, req service.MergeRequest) (service.Result, error)
	Transcode(ctx context.Context, url string) (service.Result, error)
	Job(ctx context.Context, id string) (jobs.Record, error)
}

// Config configures the router.
type Config struct {
	// ServiceName names the otelhttp server spans. Empty disables tracing.
	ServiceName      string
	RateLimitEnabled bool
	RateLimitRPM     int
}

// Server is the HTTP API server.
type Server struct {
	cfg    Config
	ops    Operations
	health *health.Manager
}

// New returns a Server. health may be nil, in which case the probes report
// healthy without component checks.
func New(cfg Config, ops Operations, hm *health.Manager) *Server {
	if hm == nil {
		hm = health.NewManager("")
	}
	return &Server{cfg: cfg, ops: ops, health: hm}
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:   true,
		TracingService:  s.cfg.ServiceName,
		EnableLogging:   true,
		EnableRateLimit: s.cfg.RateLimitEnabled,
		RateLimitRPM:    s.cfg.RateLimitRPM,
	})

	r.Get("/", s.handleRoot)
	r.Post("/process", s.handleProcess)
	r.Post("/split", s.handleSplit)
	r.Post("/merge", s.handleMerge)
	r.Post("/transcode", s.handleTranscode)
	r.Get("/jobs/{id}", s.handleJob)

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed", "")
	})
	return r
}
