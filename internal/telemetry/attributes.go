// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// Pipeline attributes
	PipelineRequestIDKey = "pipeline.request_id"
	PipelinePhaseKey     = "pipeline.phase"
	PipelineSegmentsKey  = "pipeline.segments"
	PipelineWorkersKey   = "pipeline.workers"
	PipelineStateKey     = "pipeline.state"

	// Operation attributes
	OperationNameKey  = "operation.name"
	OperationJobIDKey = "operation.job_id"

	// Storage attributes
	StorageBucketKey = "storage.bucket"
	StorageKeyKey    = "storage.key"
	StorageBytesKey  = "storage.bytes"

	// Tool attributes
	ToolNameKey     = "tool.name"
	ToolExitCodeKey = "tool.exit_code"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// PipelineAttributes creates span attributes for a segment pipeline run.
func PipelineAttributes(requestID string, segments, workers int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(PipelineRequestIDKey, requestID)}
	if segments > 0 {
		attrs = append(attrs, attribute.Int(PipelineSegmentsKey, segments))
	}
	if workers > 0 {
		attrs = append(attrs, attribute.Int(PipelineWorkersKey, workers))
	}
	return attrs
}

// OperationAttributes creates span attributes for a service operation.
func OperationAttributes(operation, jobID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(OperationNameKey, operation),
		attribute.String(OperationJobIDKey, jobID),
	}
}

// StorageAttributes creates span attributes for an object storage transfer.
func StorageAttributes(bucket, key string, bytes int64) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(StorageBucketKey, bucket),
		attribute.String(StorageKeyKey, key),
	}
	if bytes >= 0 {
		attrs = append(attrs, attribute.Int64(StorageBytesKey, bytes))
	}
	return attrs
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
