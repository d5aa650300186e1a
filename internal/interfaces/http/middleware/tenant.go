package middleware

import (
	"github.com/erp/gestao/internal/infrastructure/logger"
	"github.com/erp/gestao/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Tenant context keys
const (
	TenantIDKey     = "tenant_id"
	UserIDKey       = "user_id"
	TenantHeaderKey = "X-Tenant-ID"
	UserHeaderKey   = "X-User-ID"
)

// TenantConfig holds configuration for tenant middleware
type TenantConfig struct {
	// HeaderEnabled accepts X-Tenant-ID when no verified token identified the tenant
	HeaderEnabled bool
	Logger        *zap.Logger
}

// Tenant resolves the tenant of the request. Extraction order: verified JWT claim, then
// the X-Tenant-ID header. Requests without a tenant are rejected with 401.
func Tenant(cfg TenantConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tenantID, userID, method string

		if v := c.GetString(JWTTenantIDKey); v != "" {
			tenantID, method = v, "jwt"
			userID = c.GetString(JWTUserIDKey)
		} else if cfg.HeaderEnabled {
			if v := c.GetHeader(TenantHeaderKey); v != "" {
				tenantID, method = v, "header"
				userID = c.GetHeader(UserHeaderKey)
			}
		}

		if tenantID == "" {
			respondUnauthorized(c, dto.ErrCodeTenantMissing, "Identificação do tenant obrigatória")
			return
		}
		if err := uuid.Validate(tenantID); err != nil {
			respondUnauthorized(c, dto.ErrCodeTenantMissing, "Formato de tenant inválido")
			return
		}

		c.Set(TenantIDKey, tenantID)
		if userID != "" {
			c.Set(UserIDKey, userID)
		}
		c.Request = c.Request.WithContext(logger.WithTenantID(c.Request.Context(), tenantID))

		if cfg.Logger != nil {
			cfg.Logger.Debug("tenant identified",
				zap.String("tenant_id", tenantID),
				zap.String("method", method),
			)
		}
		c.Next()
	}
}

// GetTenantID returns the tenant set by Tenant, or "" outside tenant routes
func GetTenantID(c *gin.Context) string {
	return c.GetString(TenantIDKey)
}

// GetUserID returns the caller id, from the token subject or the X-User-ID header
func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
