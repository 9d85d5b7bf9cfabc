// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"fmt"
	"strings"
)

// SegmentationError reports that the source could not be split into segments.
type SegmentationError struct {
	Diagnostic string
	Err        error
}

func (e *SegmentationError) Error() string {
	return "SegmentationError: " + detail(e.Diagnostic, e.Err)
}

func (e *SegmentationError) Unwrap() error { return e.Err }

// TranscodeError reports a failed transcode of one segment.
type TranscodeError struct {
	Index      int
	Diagnostic string
	Err        error
	// Canceled is set when the segment only failed because the batch was
	// aborted by another segment's failure.
	Canceled bool
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("TranscodeError: segment %d: %s", e.Index, detail(e.Diagnostic, e.Err))
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// ReassemblyError reports a failed concatenation. Path is set when a listed
// input was missing before the concat tool ran.
type ReassemblyError struct {
	Path       string
	Diagnostic string
	Err        error
}

func (e *ReassemblyError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("ReassemblyError: missing input %s", e.Path)
	}
	return "ReassemblyError: " + detail(e.Diagnostic, e.Err)
}

func (e *ReassemblyError) Unwrap() error { return e.Err }

// CleanupWarning records an intermediate that could not be removed. It is
// logged and counted, never returned as a run failure.
type CleanupWarning struct {
	Path string
	Err  error
}

func (w CleanupWarning) Error() string {
	return fmt.Sprintf("CleanupWarning: %s: %v", w.Path, w.Err)
}

func (w CleanupWarning) Unwrap() error { return w.Err }

func detail(diagnostic string, err error) string {
	if d := strings.TrimSpace(diagnostic); d != "" {
		return d
	}
	if err != nil {
		return err.Error()
	}
	return "unknown error"
}
