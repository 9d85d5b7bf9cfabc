// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package jobs records the status of service operations so clients can poll
// GET /jobs/{id} while an operation runs.
package jobs

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a job ID is unknown or has expired.
var ErrNotFound = errors.New("job not found")

// State is the lifecycle state of a job.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Record is the persisted status of one operation.
type Record struct {
	ID        string            `json:"id"`
	Operation string            `json:"operation"`
	State     State             `json:"state"`
	Phase     string            `json:"phase,omitempty"`
	Error     string            `json:"error,omitempty"`
	Outputs   map[string]string `json:"outputs,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	if r.Outputs != nil {
		out := make(map[string]string, len(r.Outputs))
		for k, v := range r.Outputs {
			out[k] = v
		}
		r.Outputs = out
	}
	return r
}

// Store persists job records. Implementations must be safe for concurrent use.
type Store interface {
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
	// Update applies fn to the stored record atomically and returns the result.
	// UpdatedAt is set by the store.
	Update(ctx context.Context, id string, fn func(*Record) error) (Record, error)
	Ping(ctx context.Context) error
	Close() error
}

var now = time.Now
