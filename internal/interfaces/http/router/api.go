package router

import (
	"errors"
	"net/http"

	"github.com/erp/gestao/internal/infrastructure/auth"
	"github.com/erp/gestao/internal/infrastructure/config"
	"github.com/erp/gestao/internal/infrastructure/logger"
	"github.com/erp/gestao/internal/infrastructure/ratelimit"
	"github.com/erp/gestao/internal/infrastructure/telemetry"
	"github.com/erp/gestao/internal/interfaces/http/dto"
	"github.com/erp/gestao/internal/interfaces/http/handler"
	"github.com/erp/gestao/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// DriveFilesRoute is the drive upload route, whose body cap is the upload size.
// File content is served below it at /:id/content.
const DriveFilesRoute = "/api/v1/drive/files"

// Config holds everything the engine needs. Handlers are required; the rest may be zero.
type Config struct {
	Logger         *zap.Logger
	HTTP           config.HTTPConfig
	ServiceName    string
	TracingEnabled bool
	HSTS           bool
	Verifier       *auth.Verifier
	RequireToken   bool
	MeterProvider  *telemetry.MeterProvider
	// IPLimiter throttles every request per client address; nil disables it
	IPLimiter *ratelimit.Keyed
	// Swagger guards /swagger; the generated docs package must be linked in
	Swagger middleware.SwaggerConfig
	// Profiling labels API requests for the continuous profiler
	Profiling bool

	Records    *handler.RecordHandler
	Dashboards *handler.DashboardHandler
	Agent      *handler.AgentHandler
	Drive      *handler.DriveHandler
	System     *handler.SystemHandler
}

// New builds the engine with the middleware chain, the health routes and every API route
func New(cfg Config) (*gin.Engine, error) {
	if cfg.Records == nil || cfg.Dashboards == nil || cfg.Agent == nil || cfg.Drive == nil || cfg.System == nil {
		return nil, errors.New("router: every handler is required")
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			return nil, err
		}
	}

	metrics, err := middleware.HTTPMetrics(cfg.MeterProvider)
	if err != nil {
		return nil, err
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	engine.Use(middleware.RequestID(), logger.GinMiddleware(log), logger.Recovery(log))
	engine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName: cfg.ServiceName,
		Enabled:     cfg.TracingEnabled,
		SkipPaths:   []string{"/health", "/ready", "/metrics"},
	})...)
	engine.Use(
		middleware.CORSWithConfig(cors),
		middleware.Secure(cfg.HSTS),
		metrics,
		middleware.RateLimit(cfg.IPLimiter, middleware.ByClientIP),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize, map[string]int64{DriveFilesRoute: cfg.HTTP.MaxUploadSize}),
	)

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeNotFound, "Rota não encontrada", middleware.GetRequestID(c)))
	})
	engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeBadRequest, "Método não permitido", middleware.GetRequestID(c)))
	})

	engine.GET("/health", cfg.System.Health)
	engine.GET("/ready", cfg.System.Ready)
	if cfg.MeterProvider != nil && cfg.MeterProvider.IsEnabled() {
		engine.GET("/metrics", gin.WrapH(cfg.MeterProvider.Handler()))
	}

	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(cfg.Swagger,
			middleware.JWTAuth(middleware.JWTConfig{Verifier: cfg.Verifier, Required: true})),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	profiling := middleware.DefaultProfilingConfig()
	profiling.Enabled = cfg.Profiling
	NewRouter(engine, WithGroupMiddleware(
		middleware.JWTAuth(middleware.JWTConfig{Verifier: cfg.Verifier, Required: cfg.RequireToken}),
		middleware.Tenant(middleware.TenantConfig{HeaderEnabled: !cfg.RequireToken, Logger: log}),
		middleware.Profiling(profiling),
	)).Register(
		systemRoutes(cfg.System),
		dashboardRoutes(cfg.Dashboards),
		agentRoutes(cfg.Agent),
		driveRoutes(cfg.Drive),
		// generic resource routes last; static prefixes above take precedence
		recordRoutes(cfg.Records),
	).Setup()

	return engine, nil
}

func systemRoutes(h *handler.SystemHandler) *DomainGroup {
	return NewDomainGroup("system", "/system").
		GET("/integrations", h.Integrations)
}

func dashboardRoutes(h *handler.DashboardHandler) *DomainGroup {
	return NewDomainGroup("dashboards", "/dashboards").
		GET("", h.List).
		POST("", h.Create).
		POST("/parse", h.Parse).
		GET("/:id", h.Get).
		PUT("/:id", h.Update).
		DELETE("/:id", h.Delete).
		POST("/:id/patches", h.Patch).
		GET("/:id/render", h.Render).
		GET("/:id/export.pdf", h.ExportPDF)
}

func agentRoutes(h *handler.AgentHandler) *DomainGroup {
	return NewDomainGroup("agent", "/agent").
		POST("/chat", h.Chat).
		GET("/tools", h.Tools).
		DELETE("/conversations/:id", h.DeleteConversation)
}

func driveRoutes(h *handler.DriveHandler) *DomainGroup {
	return NewDomainGroup("drive", "/drive").
		GET("/files", h.List).
		POST("/files", h.Upload).
		GET("/files/:id/download", h.Download).
		GET("/files/:id/content", h.Content).
		DELETE("/files/:id", h.Delete)
}

func recordRoutes(h *handler.RecordHandler) *DomainGroup {
	return NewDomainGroup("records", "").
		GET("/catalog", h.Catalog).
		GET("/:module/:resource", h.List).
		POST("/:module/:resource", h.Create).
		GET("/:module/:resource/aggregate", h.Aggregate).
		GET("/:module/:resource/:id", h.Get).
		PATCH("/:module/:resource/:id", h.Update).
		DELETE("/:module/:resource/:id", h.Delete)
}
