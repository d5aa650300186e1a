package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
	// SkipPaths are not traced, e.g. health checks and the metrics scrape
	SkipPaths []string
}

// Tracing returns the otelgin span middleware followed by a handler that tags the span with
// the request id before the chain runs, and with tenant, user and error status after it.
// Register both: r.Use(middleware.Tracing(cfg)...).
func Tracing(cfg TracingConfig) []gin.HandlerFunc {
	if !cfg.Enabled {
		return nil
	}

	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}
	base := otelgin.Middleware(cfg.ServiceName, otelgin.WithFilter(func(r *http.Request) bool {
		_, skipped := skip[r.URL.Path]
		return !skipped
	}))

	return []gin.HandlerFunc{base, enrichSpan}
}

func enrichSpan(c *gin.Context) {
	span := trace.SpanFromContext(c.Request.Context())
	if !span.IsRecording() {
		c.Next()
		return
	}

	if id := GetRequestID(c); id != "" {
		span.SetAttributes(attribute.String("request_id", id))
	}

	c.Next()

	// set by the tenant middleware further down the chain
	if id := GetTenantID(c); id != "" {
		span.SetAttributes(attribute.String("tenant_id", id))
	}
	if id := GetUserID(c); id != "" {
		span.SetAttributes(attribute.String("user_id", id))
	}
	if status := c.Writer.Status(); status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(status))
	}
	if len(c.Errors) > 0 {
		span.SetAttributes(attribute.StringSlice("gin.errors", c.Errors.Errors()))
	}
}
