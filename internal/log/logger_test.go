// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func captureBase(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "spcut-test", Version: "v0.0.0"})
	t.Cleanup(func() { Configure(Config{}) })
	return &buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestConfigure_ServiceAndVersion(t *testing.T) {
	buf := captureBase(t)

	l := WithComponent("pipeline")
	l.Info().Str(FieldEvent, "test.event").Msg("x")

	entry := lastEntry(t, buf)
	assert.Equal(t, "spcut-test", entry["service"])
	assert.Equal(t, "v0.0.0", entry["version"])
	assert.Equal(t, "pipeline", entry[FieldComponent])
	assert.Equal(t, "test.event", entry[FieldEvent])
}

func TestDerive(t *testing.T) {
	buf := captureBase(t)

	l := Derive(nil)
	l.Info().Msg("nil builder")

	l = Derive(func(c *zerolog.Context) {
		*c = c.Str("custom_field", "test_value")
	})
	l.Info().Msg("custom")

	assert.Equal(t, "test_value", lastEntry(t, buf)["custom_field"])
}

func TestWithTraceContext(t *testing.T) {
	buf := captureBase(t)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	l := WithTraceContext(ctx)
	l.Info().Msg("with trace")

	entry := lastEntry(t, buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry[FieldTraceID])
	assert.Equal(t, "00f067aa0ba902b7", entry[FieldSpanID])

	l = WithTraceContext(context.Background())
	l.Info().Msg("without trace")
	_, has := lastEntry(t, buf)[FieldTraceID]
	assert.False(t, has)
}

func TestMiddleware_LogsRequest(t *testing.T) {
	buf := captureBase(t)

	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Debug().Msg("inside handler")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/process", nil)
	req = req.WithContext(ContextWithRequestID(req.Context(), "rid-7"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	entry := lastEntry(t, buf)
	assert.Equal(t, "http.request", entry[FieldEvent])
	assert.Equal(t, "/process", entry[FieldPath])
	assert.Equal(t, float64(http.StatusTeapot), entry["status"])
	assert.Equal(t, float64(5), entry["bytes"])
	assert.Equal(t, "rid-7", entry[FieldRequestID])
	assert.Contains(t, buf.String(), "inside handler")
}
