package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/isolation"
)

func TestNew_JSONWithTraceContext(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "debug", Format: "json", ServiceName: "pinpoint", Output: &buf})

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	ctx = isolation.WithScope(ctx, isolation.Scope{OrganizationID: "org-a"})
	l.DebugContext(ctx, "hello", Permission("issue:view"), OrganizationID("org-a"))
	span.End()

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "pinpoint", rec["service"])
	assert.Equal(t, "issue:view", rec["permission"])
	assert.Equal(t, span.SpanContext().TraceID().String(), rec["trace_id"])
	assert.Equal(t, "org-a", rec["scope_organization_id"])
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "warn", Format: "text", Output: &buf})

	l.Info("dropped")
	assert.Empty(t, buf.String())
	l.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestFanoutHandler(t *testing.T) {
	var a, b bytes.Buffer
	h := NewFanoutHandler(
		slog.NewTextHandler(&a, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	l := slog.New(h).With(Component("test"))

	l.Info("info")
	l.Error("error")

	assert.Contains(t, a.String(), "info")
	assert.Contains(t, a.String(), "component=test")
	assert.NotContains(t, b.String(), "msg=info")
	assert.Contains(t, b.String(), "error")
}
