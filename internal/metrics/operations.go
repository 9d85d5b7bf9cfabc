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
	// Operations counts service operations (process, split, merge, transcode) by result.
	Operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spcut_operations_total",
		Help: "Service operations by operation and result",
	}, []string{"operation", "result"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spcut_operation_duration_seconds",
		Help:    "End-to-end duration of service operations",
		Buckets: prometheus.ExponentialBuckets(0.5, 2.0, 14),
	}, []string{"operation"})

	operationsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spcut_operations_in_flight",
		Help: "Service operations currently holding an admission slot",
	})

	transferBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spcut_transfer_bytes_total",
		Help: "Bytes downloaded from origins and uploaded to object storage",
	}, []string{"direction"})
)

// ObserveOperation records a finished service operation.
func ObserveOperation(operation, result string, d time.Duration) {
	Operations.WithLabelValues(operation, result).Inc()
	operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// OperationStarted increments the in-flight gauge and returns the matching decrement.
func OperationStarted() func() {
	operationsInFlight.Inc()
	return operationsInFlight.Dec
}

// AddTransferBytes records bytes moved in the given direction ("download" or "upload").
func AddTransferBytes(direction string, n int64) {
	if n > 0 {
		transferBytes.WithLabelValues(direction).Add(float64(n))
	}
}
