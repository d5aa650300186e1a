package middleware

import (
	"net/http"

	"github.com/erp/gestao/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// BodyLimit caps request bodies at maxBytes. Routes listed in overrides, keyed by their
// registered path (c.FullPath), get their own cap; the drive upload route uses this.
func BodyLimit(maxBytes int64, overrides map[string]int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := maxBytes
		if v, ok := overrides[c.FullPath()]; ok {
			limit = v
		}
		if limit <= 0 {
			c.Next()
			return
		}

		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				dto.NewErrorResponseWithRequestID(dto.ErrCodeRequestTooLarge,
					"Corpo da requisição excede o tamanho máximo permitido", GetRequestID(c)))
			return
		}

		// chunked bodies have no length up front
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
