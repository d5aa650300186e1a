package auth

import (
	"errors"
	"time"

	"github.com/erp/gestao/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Common errors
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrMissingTenantID  = errors.New("missing tenant_id in claims")
	ErrVerifierDisabled = errors.New("token verification is not configured")
)

// Claims are the claims read from bearer tokens issued by the identity provider.
// The user is the standard subject claim.
type Claims struct {
	jwt.RegisteredClaims
	TenantID string `json:"tenant_id"`
	Email    string `json:"email,omitempty"`
}

// UserID returns the subject of the token
func (c *Claims) UserID() string {
	return c.Subject
}

// TenantUUID parses the tenant claim
func (c *Claims) TenantUUID() (uuid.UUID, error) {
	return uuid.Parse(c.TenantID)
}

// RemainingTTL returns the time left until the token expires, zero when expired or unset
func (c *Claims) RemainingTTL() time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	if remaining := time.Until(c.ExpiresAt.Time); remaining > 0 {
		return remaining
	}
	return 0
}

// Verifier checks HMAC signed tokens. Tokens are issued elsewhere; this service only reads them.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier creates a verifier. An empty secret yields a disabled verifier.
func NewVerifier(cfg config.JWTConfig) *Verifier {
	return &Verifier{secret: []byte(cfg.Secret), issuer: cfg.Issuer}
}

// Enabled reports whether a secret is configured
func (v *Verifier) Enabled() bool {
	return v != nil && len(v.secret) > 0
}

// Verify parses tokenString and returns its claims.
// The issuer is checked only when one is configured.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	if !v.Enabled() {
		return nil, ErrVerifierDisabled
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrTokenNotYetValid
		default:
			return nil, ErrInvalidToken
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.TenantID == "" {
		return nil, ErrMissingTenantID
	}
	if _, err := claims.TenantUUID(); err != nil {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}

// Sign issues a token for claims with the configured secret. Used by local tooling and tests.
func (v *Verifier) Sign(claims *Claims) (string, error) {
	if !v.Enabled() {
		return "", ErrVerifierDisabled
	}
	if claims.Issuer == "" {
		claims.Issuer = v.issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
