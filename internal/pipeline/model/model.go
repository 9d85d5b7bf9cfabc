// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package model holds the value types shared by the segment pipeline stages.
package model

import (
	"fmt"

	"github.com/google/uuid"
)

// RequestID namespaces every intermediate file of one pipeline run.
type RequestID string

// NewRequestID returns a fresh random request ID.
func NewRequestID() RequestID {
	return RequestID(uuid.NewString())
}

func (id RequestID) String() string { return string(id) }

// Validate rejects IDs that could escape the filename namespace or overlap
// another run's glob ("_" separates the ID from the segment index).
func (id RequestID) Validate() error {
	if id == "" {
		return fmt.Errorf("request id is empty")
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
		default:
			return fmt.Errorf("request id %q contains invalid character %q", string(id), r)
		}
	}
	return nil
}

// Segment is one container-copied, time-bounded slice of a source file.
type Segment struct {
	RequestID RequestID
	Index     int // 0-based, dense
	Path      string
}

// TranscodedSegment is the re-encoded counterpart of exactly one Segment.
type TranscodedSegment struct {
	RequestID RequestID
	Index     int
	Path      string
}

// ValidateSequence checks that a sequence is sorted by Index and gap-free starting at 0.
func ValidateSequence(indices []int) error {
	for i, idx := range indices {
		if idx != i {
			return fmt.Errorf("sequence index %d at position %d (want %d)", idx, i, i)
		}
	}
	return nil
}

// SegmentIndices returns the Index of every segment, in slice order.
func SegmentIndices(segs []Segment) []int {
	out := make([]int, len(segs))
	for i, s := range segs {
		out[i] = s.Index
	}
	return out
}

// TranscodedIndices returns the Index of every transcoded segment, in slice order.
func TranscodedIndices(segs []TranscodedSegment) []int {
	out := make([]int, len(segs))
	for i, s := range segs {
		out[i] = s.Index
	}
	return out
}
