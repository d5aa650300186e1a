package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of application spans (agent loop, tools)
const TracerName = "gestao"

// SpanOption configures a span started by StartSpan
type SpanOption func(*spanConfig)

type spanConfig struct {
	attrs []attribute.KeyValue
	kind  trace.SpanKind
}

// WithAttribute tags the span at start, e.g. WithAttribute("provider", "openai")
func WithAttribute(key string, value any) SpanOption {
	return func(c *spanConfig) { c.attrs = append(c.attrs, attrOf(key, value)) }
}

// WithSpanKind overrides the default internal kind
func WithSpanKind(kind trace.SpanKind) SpanOption {
	return func(c *spanConfig) { c.kind = kind }
}

// StartSpan starts a span on the global provider, so it is a no-op while tracing is off.
// The caller must End it.
func StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, trace.Span) {
	cfg := spanConfig{kind: trace.SpanKindInternal}
	for _, opt := range opts {
		opt(&cfg)
	}
	return otel.Tracer(TracerName).Start(ctx, name,
		trace.WithSpanKind(cfg.kind),
		trace.WithAttributes(cfg.attrs...),
	)
}

// StartServiceSpan names the span "<scope>.<op>": "agent.chat", "agent.tool.listar_registros"
func StartServiceSpan(ctx context.Context, scope, op string, opts ...SpanOption) (context.Context, trace.Span) {
	return StartSpan(ctx, scope+"."+op, opts...)
}

// SetAttributes tags span with alternating key, value arguments. Entries whose key is
// not a string are dropped.
func SetAttributes(span trace.Span, kv ...any) {
	if span == nil {
		return
	}
	var attrs []attribute.KeyValue
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			attrs = append(attrs, attrOf(key, kv[i+1]))
		}
	}
	span.SetAttributes(attrs...)
}

// RecordError adds err as an event and flags the span as failed
func RecordError(span trace.Span, err error, opts ...trace.EventOption) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err, opts...)
	span.SetStatus(codes.Error, err.Error())
}

// TraceID is the hex trace id of the span carried by ctx, empty when there is none
func TraceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

func attrOf(key string, value any) attribute.KeyValue {
	k := attribute.Key(key)
	switch v := value.(type) {
	case string:
		return k.String(v)
	case bool:
		return k.Bool(v)
	case int:
		return k.Int(v)
	case int64:
		return k.Int64(v)
	case float64:
		return k.Float64(v)
	case []string:
		return k.StringSlice(v)
	case fmt.Stringer:
		return k.String(v.String())
	}
	return k.String(fmt.Sprint(value))
}
