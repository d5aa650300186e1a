package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	requestIDKey
	tenantIDKey
	conversationIDKey
)

// WithContext attaches the logger to ctx.
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the attached logger or a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok && l != nil {
		return l
	}
	return zap.NewNop()
}

// WithRequestID stores the request id used for log correlation.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithTenantID stores the tenant id used for log correlation.
func WithTenantID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, tenantIDKey, id)
}

// WithConversationID stores the agent conversation id used for log correlation.
func WithConversationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, conversationIDKey, id)
}

// RequestID returns the request id stored in ctx.
func RequestID(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// TenantID returns the tenant id stored in ctx.
func TenantID(ctx context.Context) string {
	return stringValue(ctx, tenantIDKey)
}

func stringValue(ctx context.Context, key ctxKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

// L returns the context logger enriched with trace, request, tenant and
// conversation identifiers found in ctx.
//
//	logger.L(ctx).Info("registro criado", zap.String("resource", key))
func L(ctx context.Context) *zap.Logger {
	return correlate(ctx, FromContext(ctx))
}

func correlate(ctx context.Context, l *zap.Logger) *zap.Logger {
	fields := make([]zap.Field, 0, 5)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if v := RequestID(ctx); v != "" {
		fields = append(fields, zap.String("request_id", v))
	}
	if v := TenantID(ctx); v != "" {
		fields = append(fields, zap.String("tenant_id", v))
	}
	if v := stringValue(ctx, conversationIDKey); v != "" {
		fields = append(fields, zap.String("conversation_id", v))
	}
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}
