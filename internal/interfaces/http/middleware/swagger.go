package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/erp/gestao/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// SwaggerConfig controls access to the API documentation
type SwaggerConfig struct {
	Enabled     bool
	RequireAuth bool     // run the JWT middleware in front of the docs
	AllowedIPs  []string // single addresses or CIDR ranges, empty allows all
}

// SwaggerProtection guards the documentation routes. Disabled docs answer 404,
// callers outside AllowedIPs get 403 and RequireAuth delegates to jwt.
func SwaggerProtection(cfg SwaggerConfig, jwt gin.HandlerFunc) gin.HandlerFunc {
	var nets []*net.IPNet
	var ips []net.IP
	for _, entry := range cfg.AllowedIPs {
		if strings.Contains(entry, "/") {
			if _, network, err := net.ParseCIDR(entry); err == nil {
				nets = append(nets, network)
			}
			continue
		}
		if ip := net.ParseIP(entry); ip != nil {
			ips = append(ips, ip)
		}
	}

	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.AbortWithStatusJSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeNotFound, "Documentação da API indisponível", GetRequestID(c)))
			return
		}
		if len(cfg.AllowedIPs) > 0 && !ipAllowed(clientIP(c), ips, nets) {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeForbidden, "Acesso à documentação restrito", GetRequestID(c)))
			return
		}
		if cfg.RequireAuth && jwt != nil {
			jwt(c)
			if c.IsAborted() {
				return
			}
		}
		c.Next()
	}
}

func clientIP(c *gin.Context) net.IP {
	if ip := net.ParseIP(c.ClientIP()); ip != nil {
		return ip
	}
	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		host = c.Request.RemoteAddr
	}
	return net.ParseIP(host)
}

func ipAllowed(ip net.IP, ips []net.IP, nets []*net.IPNet) bool {
	if ip == nil {
		return false
	}
	for _, allowed := range ips {
		if allowed.Equal(ip) {
			return true
		}
	}
	for _, network := range nets {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
