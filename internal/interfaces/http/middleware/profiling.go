package middleware

import (
	"context"
	"strings"

	"github.com/erp/gestao/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
)

// ProfilingConfig configures the profiling label middleware
type ProfilingConfig struct {
	Enabled          bool
	SkipPaths        []string
	SkipPathPrefixes []string
}

// DefaultProfilingConfig skips health checks, metrics and the API docs
func DefaultProfilingConfig() ProfilingConfig {
	return ProfilingConfig{
		Enabled:          true,
		SkipPaths:        []string{"/health", "/ready", "/metrics"},
		SkipPathPrefixes: []string{"/swagger"},
	}
}

// Profiling labels the goroutine serving a request with its route pattern, method,
// tenant and catalog resource, so CPU and allocation profiles can be filtered by them.
// It must run after Tenant to see the tenant id.
func Profiling(cfg ProfilingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, p := range cfg.SkipPaths {
			if path == p {
				c.Next()
				return
			}
		}
		for _, prefix := range cfg.SkipPathPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		labels := map[string]string{
			telemetry.ProfilingLabelMethod:   c.Request.Method,
			telemetry.ProfilingLabelRoute:    c.FullPath(),
			telemetry.ProfilingLabelTenantID: GetTenantID(c),
		}
		if module, resource := c.Param("module"), c.Param("resource"); module != "" && resource != "" {
			labels[telemetry.ProfilingLabelResource] = module + "/" + resource
		}

		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}
