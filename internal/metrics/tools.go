// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	toolInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spcut_tool_invocations_total",
		Help: "External tool invocations by tool and result (ok, exit_nonzero, timeout, canceled, start_error)",
	}, []string{"tool", "result"})

	toolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spcut_tool_duration_seconds",
		Help:    "Wall-clock duration of external tool invocations",
		Buckets: prometheus.ExponentialBuckets(0.05, 2.0, 16),
	}, []string{"tool"})

	procTerminate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spcut_process_terminations_total",
		Help: "Signals sent to tool process groups by signal and outcome",
	}, []string{"signal", "outcome"})

	procWait = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spcut_process_wait_results_total",
		Help: "Wait results of terminated tool processes",
	}, []string{"result"})
)

// ObserveTool records one finished external tool invocation.
func ObserveTool(tool, result string, d time.Duration) {
	toolInvocations.WithLabelValues(tool, result).Inc()
	toolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// IncProcTerminate records a termination signal sent to a process group.
func IncProcTerminate(signal, outcome string) {
	procTerminate.WithLabelValues(signal, outcome).Inc()
}

// IncProcWait records how a terminated process finally exited.
func IncProcWait(result string) {
	procWait.WithLabelValues(result).Inc()
}
