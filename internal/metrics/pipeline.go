// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics holds the Prometheus collectors exported by spcut.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PipelineRuns counts finished segment pipeline runs by outcome.
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spcut_pipeline_runs_total",
		Help: "Total segment transcode pipeline runs by result",
	}, []string{"result"})

	// PipelinePhaseDuration tracks how long each coordinator phase took.
	PipelinePhaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spcut_pipeline_phase_duration_seconds",
		Help:    "Duration of segment pipeline phases",
		Buckets: prometheus.ExponentialBuckets(0.05, 2.0, 14), // 50ms to ~7min
	}, []string{"phase"})

	// PipelineSegments counts transcoded segments by result.
	PipelineSegments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spcut_pipeline_segments_total",
		Help: "Total segments processed by the transcode pool",
	}, []string{"result"})

	// CleanupWarnings counts intermediate artifacts that could not be removed.
	CleanupWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spcut_cleanup_warnings_total",
		Help: "Total artifacts that failed to be removed during cleanup",
	})
)

// ObservePhase records the duration of a completed pipeline phase.
func ObservePhase(phase string, d time.Duration) {
	PipelinePhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// IncPipelineRun records a finished pipeline run.
func IncPipelineRun(result string) {
	PipelineRuns.WithLabelValues(result).Inc()
}

// IncSegment records one segment transcode attempt.
func IncSegment(result string) {
	PipelineSegments.WithLabelValues(result).Inc()
}

// IncCleanupWarning records a failed artifact removal.
func IncCleanupWarning() {
	CleanupWarnings.Inc()
}
