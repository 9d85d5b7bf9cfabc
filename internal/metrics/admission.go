// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// No job or request IDs in labels.
var (
	// AdmissionAdmitTotal counts operations that obtained an execution slot.
	AdmissionAdmitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spcut_admission_admit_total",
		Help: "Total number of admitted operations, by operation.",
	}, []string{"operation"})

	// AdmissionRejectTotal counts operations turned away before running.
	AdmissionRejectTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spcut_admission_reject_total",
		Help: "Total number of rejected operations, by reason and operation.",
	}, []string{"reason", "operation"})

	// AdmissionSlotsInUse tracks held execution slots.
	AdmissionSlotsInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spcut_admission_slots_in_use",
		Help: "Current number of held operation slots.",
	})
)

// RecordAdmit increments the admission counter for successful admissions.
func RecordAdmit(operation string) {
	AdmissionAdmitTotal.WithLabelValues(operation).Inc()
}

// RecordReject increments the rejection counter.
func RecordReject(reason, operation string) {
	AdmissionRejectTotal.WithLabelValues(reason, operation).Inc()
}

// SetSlotsInUse sets the held slot gauge.
func SetSlotsInUse(n float64) {
	AdmissionSlotsInUse.Set(n)
}
