package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erp/gestao/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func okHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func TestRequestID(t *testing.T) {
	t.Run("generates when absent", func(t *testing.T) {
		var fromCtx string
		r := gin.New()
		r.Use(RequestID())
		r.GET("/t", func(c *gin.Context) {
			fromCtx = logger.RequestID(c.Request.Context())
			okHandler(c)
		})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/t", nil))

		id := w.Header().Get(RequestIDHeader)
		assert.Len(t, id, 36)
		assert.Equal(t, id, fromCtx)
	})

	t.Run("reuses and truncates client id", func(t *testing.T) {
		r := gin.New()
		r.Use(RequestID())
		r.GET("/t", okHandler)

		req := httptest.NewRequest(http.MethodGet, "/t", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))

		req = httptest.NewRequest(http.MethodGet, "/t", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("x", 500))
		w = httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Len(t, w.Header().Get(RequestIDHeader), MaxRequestIDLength)
	})
}

func TestCORSWithConfig(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowOrigins = []string{"https://app.gestao.com.br"}

	r := gin.New()
	r.Use(CORSWithConfig(cfg))
	r.GET("/t", okHandler)

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantOrigin string
	}{
		{"allowed origin", http.MethodGet, "https://app.gestao.com.br", http.StatusOK, "https://app.gestao.com.br"},
		{"unknown origin", http.MethodGet, "https://evil.example", http.StatusOK, ""},
		{"preflight allowed", http.MethodOptions, "https://app.gestao.com.br", http.StatusNoContent, "https://app.gestao.com.br"},
		{"preflight unknown origin", http.MethodOptions, "https://evil.example", http.StatusNoContent, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/t", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			if tt.wantOrigin != "" {
				assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
				assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), TenantHeaderKey)
			}
		})
	}
}

func TestCORSWithConfig_Wildcard(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowOrigins = []string{"*"}

	r := gin.New()
	r.Use(CORSWithConfig(cfg))
	r.GET("/t", okHandler)

	req := httptest.NewRequest(http.MethodGet, "/t", nil)
	req.Header.Set("Origin", "https://qualquer.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestSecure(t *testing.T) {
	r := gin.New()
	r.Use(Secure(true))
	r.GET("/t", okHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/t", nil))

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestBodyLimit(t *testing.T) {
	newRouter := func() *gin.Engine {
		r := gin.New()
		r.Use(BodyLimit(100, map[string]int64{"/upload": 1000}))
		read := func(c *gin.Context) {
			if _, err := io.ReadAll(c.Request.Body); err != nil {
				c.String(http.StatusRequestEntityTooLarge, "too large")
				return
			}
			c.String(http.StatusOK, "ok")
		}
		r.POST("/t", read)
		r.POST("/upload", read)
		return r
	}

	t.Run("within limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		newRouter().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/t", strings.NewReader("pequeno")))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("content length over limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		newRouter().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/t", strings.NewReader(strings.Repeat("x", 200))))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Contains(t, w.Body.String(), "ERR_REQUEST_TOO_LARGE")
	})

	t.Run("chunked body is cut by the reader", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/t", bytes.NewReader(bytes.Repeat([]byte("x"), 200)))
		req.ContentLength = -1
		w := httptest.NewRecorder()
		newRouter().ServeHTTP(w, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("route override", func(t *testing.T) {
		w := httptest.NewRecorder()
		newRouter().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(strings.Repeat("x", 500))))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
