package middleware

import (
	"net/http"
	"strconv"

	"github.com/erp/gestao/internal/infrastructure/ratelimit"
	"github.com/erp/gestao/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// KeyFunc picks the rate limit bucket of a request
type KeyFunc func(*gin.Context) string

// ByClientIP keys requests by client address
func ByClientIP(c *gin.Context) string {
	return c.ClientIP()
}

// ByTenant keys requests by tenant, falling back to the client address before the
// tenant middleware ran
func ByTenant(c *gin.Context) string {
	if id := GetTenantID(c); id != "" {
		return "tenant:" + id
	}
	return "ip:" + c.ClientIP()
}

// RateLimit rejects requests over the limiter's budget with 429 and reports the budget
// in X-RateLimit-* headers. A nil limiter disables the middleware.
func RateLimit(limiter *ratelimit.Keyed, key KeyFunc) gin.HandlerFunc {
	if limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		k := key(c)
		allowed := limiter.Allow(k)
		SetRateLimitHeaders(c, limiter, k)
		if !allowed {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeRateLimited, "Muitas requisições, tente novamente mais tarde", GetRequestID(c)))
			return
		}
		c.Next()
	}
}

// SetRateLimitHeaders reports the budget left for key
func SetRateLimitHeaders(c *gin.Context, limiter *ratelimit.Keyed, key string) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(key)))
}
