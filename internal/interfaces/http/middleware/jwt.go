package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/erp/gestao/internal/infrastructure/auth"
	"github.com/erp/gestao/internal/infrastructure/logger"
	"github.com/erp/gestao/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// JWT context keys
const (
	JWTClaimsKey   = "jwt_claims"
	JWTUserIDKey   = "jwt_user_id"
	JWTTenantIDKey = "jwt_tenant_id"
	AuthHeaderKey  = "Authorization"
	BearerPrefix   = "Bearer "
)

// JWTConfig configures bearer token handling
type JWTConfig struct {
	Verifier *auth.Verifier
	// Required rejects requests without a bearer token. When false a missing token
	// lets the request through so the tenant header can identify it.
	Required bool
}

// JWTAuth verifies the bearer token, when present, and stores its claims in the context.
// A present but invalid token is always rejected.
func JWTAuth(cfg JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(AuthHeaderKey)
		if header == "" {
			if cfg.Required {
				respondUnauthorized(c, dto.ErrCodeUnauthorized, "Token de acesso ausente")
				return
			}
			c.Next()
			return
		}

		if !cfg.Verifier.Enabled() {
			// tokens cannot be checked, the header path still applies
			c.Next()
			return
		}

		token, ok := strings.CutPrefix(header, BearerPrefix)
		if !ok || token == "" {
			respondUnauthorized(c, dto.ErrCodeTokenInvalid, "Cabeçalho Authorization inválido")
			return
		}

		claims, err := cfg.Verifier.Verify(token)
		if err != nil {
			logger.L(c.Request.Context()).Debug("bearer token rejected", zap.Error(err))
			code, msg := dto.ErrCodeTokenInvalid, "Token inválido"
			if errors.Is(err, auth.ErrExpiredToken) {
				code, msg = dto.ErrCodeTokenExpired, "Token expirado"
			}
			respondUnauthorized(c, code, msg)
			return
		}

		c.Set(JWTClaimsKey, claims)
		c.Set(JWTTenantIDKey, claims.TenantID)
		c.Set(JWTUserIDKey, claims.UserID())
		c.Next()
	}
}

// GetClaims returns the verified claims, or nil for header-identified requests
func GetClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(JWTClaimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

func respondUnauthorized(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		dto.NewErrorResponseWithRequestID(code, message, GetRequestID(c)))
}
