// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID   = "request_id"
	FieldJobID       = "job_id"
	FieldPipelineRun = "pipeline_run"
	FieldTraceID     = "trace_id"
	FieldSpanID      = "span_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldOperation = "operation"
	FieldTool      = "tool"
	FieldPID       = "pid"
	FieldExitCode  = "exit_code"

	// Media fields
	FieldSegment  = "segment"
	FieldSegments = "segments"
	FieldWorkers  = "workers"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path / URL fields
	FieldPath   = "path"
	FieldSource = "source"
	FieldOutput = "output"
	FieldBucket = "bucket"
	FieldKey    = "key"
	FieldURL    = "url"
)
