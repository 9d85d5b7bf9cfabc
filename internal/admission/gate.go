// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package admission bounds the number of service operations that execute at
// the same time.
package admission

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/ManuGH/spcut/internal/metrics"
)

// AdmissionReason is the outcome of an admission attempt. Values are
// lowercase for stable PromQL queries.
type AdmissionReason string

const (
	ReasonAdmitted AdmissionReason = "admitted"
	ReasonPoolFull AdmissionReason = "pool_full"
	ReasonCanceled AdmissionReason = "canceled"
)

// ErrPoolFull is returned when no slot frees up before the caller gives up.
var ErrPoolFull = errors.New("admission: all operation slots are busy")

// Gate is a weighted semaphore with metrics.
type Gate struct {
	sem    *semaphore.Weighted
	max    int64
	active atomic.Int64
}

// NewGate returns a gate admitting up to max concurrent operations.
// Non-positive values fall back to 2.
func NewGate(max int) *Gate {
	if max <= 0 {
		max = 2
	}
	return &Gate{sem: semaphore.NewWeighted(int64(max)), max: int64(max)}
}

// Acquire waits for a slot until ctx ends. On success the returned release
// must be called exactly once; further calls are ignored.
func (g *Gate) Acquire(ctx context.Context, operation string) (release func(), err error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		reason := ReasonPoolFull
		if errors.Is(err, context.Canceled) {
			reason = ReasonCanceled
		}
		metrics.RecordReject(string(reason), operation)
		return nil, fmt.Errorf("%w: %w", ErrPoolFull, err)
	}
	return g.admitted(operation), nil
}

// TryAcquire is Acquire without waiting.
func (g *Gate) TryAcquire(operation string) (release func(), ok bool) {
	if !g.sem.TryAcquire(1) {
		metrics.RecordReject(string(ReasonPoolFull), operation)
		return nil, false
	}
	return g.admitted(operation), true
}

func (g *Gate) admitted(operation string) func() {
	metrics.RecordAdmit(operation)
	metrics.SetSlotsInUse(float64(g.active.Add(1)))

	var once atomic.Bool
	return func() {
		if !once.CompareAndSwap(false, true) {
			return
		}
		metrics.SetSlotsInUse(float64(g.active.Add(-1)))
		g.sem.Release(1)
	}
}

// Active returns the number of held slots.
func (g *Gate) Active() int64 { return g.active.Load() }

// Max returns the slot limit for external inspection.
func (g *Gate) Max() int64 { return g.max }
