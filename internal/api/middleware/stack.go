// SPDX-License-Identifier: MIT

// Package middleware provides the HTTP ingress middleware stack of the API
// server.
package middleware

import (
	"time"

	"github.com/go-chi/chi/v5"

	spclog "github.com/ManuGH/spcut/internal/log"
)

// StackConfig configures the canonical HTTP ingress middleware stack.
type StackConfig struct {
	// Observability
	EnableMetrics  bool
	TracingService string // empty disables tracing
	EnableLogging  bool

	// Rate limiting (per client IP)
	EnableRateLimit bool
	RateLimitRPM    int
}

// NewRouter constructs a chi router with the canonical middleware stack applied.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	ApplyStack(r, cfg)
	return r
}

// ApplyStack applies the canonical middleware stack to r.
func ApplyStack(r chi.Router, cfg StackConfig) {
	// 1. Recoverer (outermost safety net)
	r.Use(Recoverer)
	// 2. RequestID (correlation early)
	r.Use(RequestID)
	// 3. Metrics (track all requests)
	if cfg.EnableMetrics {
		r.Use(Metrics())
	}
	// 4. Tracing (otelhttp server spans)
	if cfg.TracingService != "" {
		r.Use(OTelHTTP(cfg.TracingService))
	}
	// 5. Logging (wraps handlers, captures full latency)
	if cfg.EnableLogging {
		r.Use(spclog.Middleware())
	}
	// 6. Rate limit
	if cfg.EnableRateLimit && cfg.RateLimitRPM > 0 {
		r.Use(RateLimit(RateLimitConfig{RequestLimit: cfg.RateLimitRPM, WindowSize: time.Minute}))
	}
}
