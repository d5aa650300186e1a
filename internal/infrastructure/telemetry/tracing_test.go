package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/gestao/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// setupTestTracer installs an in-memory recorder as the global tracer provider
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func attrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range s.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)

	ctx, span := telemetry.StartServiceSpan(context.Background(), "agent", "chat",
		telemetry.WithAttribute("conversation_id", "c-1"),
		telemetry.WithAttribute("steps", 2),
		telemetry.WithSpanKind(trace.SpanKindServer),
	)
	assert.NotEmpty(t, telemetry.TraceID(ctx))
	telemetry.SetAttributes(span, "truncated", true, 42, "skipped", "odd")
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "agent.chat", spans[0].Name())
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind())

	a := attrs(spans[0])
	assert.Equal(t, "c-1", a["conversation_id"].AsString())
	assert.Equal(t, int64(2), a["steps"].AsInt64())
	assert.True(t, a["truncated"].AsBool())
	assert.NotContains(t, a, attribute.Key("skipped"))
}

func TestRecordError(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "op")
	telemetry.RecordError(span, nil)
	telemetry.RecordError(span, errors.New("boom"))
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)

	telemetry.RecordError(nil, errors.New("no span"))
}

func TestTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, telemetry.TraceID(context.Background()))
}
