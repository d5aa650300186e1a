package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/erp/gestao/docs"
	agentapp "github.com/erp/gestao/internal/application/agent"
	dashboardapp "github.com/erp/gestao/internal/application/dashboard"
	driveapp "github.com/erp/gestao/internal/application/drive"
	recordsapp "github.com/erp/gestao/internal/application/records"
	"github.com/erp/gestao/internal/domain/catalog"
	"github.com/erp/gestao/internal/domain/dashboard"
	"github.com/erp/gestao/internal/domain/drive"
	"github.com/erp/gestao/internal/infrastructure/auth"
	"github.com/erp/gestao/internal/infrastructure/cache"
	"github.com/erp/gestao/internal/infrastructure/config"
	"github.com/erp/gestao/internal/infrastructure/export"
	"github.com/erp/gestao/internal/infrastructure/llm"
	"github.com/erp/gestao/internal/infrastructure/logger"
	"github.com/erp/gestao/internal/infrastructure/persistence"
	"github.com/erp/gestao/internal/infrastructure/ratelimit"
	"github.com/erp/gestao/internal/infrastructure/storage"
	"github.com/erp/gestao/internal/infrastructure/telemetry"
	"github.com/erp/gestao/internal/interfaces/http/handler"
	"github.com/erp/gestao/internal/interfaces/http/middleware"
	"github.com/erp/gestao/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const (
	shutdownTimeout     = 30 * time.Second
	widgetConcurrency   = 4
	widgetTimeout       = 10 * time.Second
	limiterSweepEvery   = time.Minute
	bucketCheckDeadline = 10 * time.Second
)

//	@title						Gestão API
//	@version					1.0
//	@description				Multi-tenant ERP backend: catalog records, dashboards, assistant and drive.
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.App.Name,
		Env:     cfg.App.Env,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting gestao API",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	serviceName := cfg.Telemetry.ServiceName
	if serviceName == "" {
		serviceName = cfg.App.Name
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:              cfg.Profiling.Enabled,
		ServerAddress:        cfg.Profiling.ServerAddress,
		ApplicationName:      serviceName,
		BasicAuthUser:        cfg.Profiling.BasicAuthUser,
		BasicAuthPassword:    cfg.Profiling.BasicAuthPassword,
		MutexProfileFraction: cfg.Profiling.MutexProfileFraction,
		BlockProfileRate:     cfg.Profiling.BlockProfileRate,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}

	tracer, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       serviceName,
		Insecure:          cfg.Telemetry.Insecure,
		Profiling:         profiler.IsEnabled(),
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	meter, err := telemetry.NewMeterProvider(telemetry.MetricsConfig{
		Enabled:     cfg.Telemetry.MetricsEnabled,
		ServiceName: serviceName,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	appMetrics, err := telemetry.NewAppMetrics(meter.Meter(serviceName))
	if err != nil {
		log.Fatal("Failed to create application metrics", zap.Error(err))
	}

	db, err := persistence.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	dbTracing := telemetry.DefaultDBTracingConfig()
	dbTracing.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
	dbTracing.LogFullSQL = !cfg.App.IsProduction()
	if cfg.Database.DBName != "" {
		dbTracing.DBName = cfg.Database.DBName
	}
	if err := telemetry.RegisterDBTracing(db.DB, dbTracing, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Records
	registry := catalog.DefaultRegistry()
	recordService := recordsapp.NewService(registry, persistence.NewGormRecordRepository(db.DB)).
		WithObserver(appMetrics)

	// Dashboards
	var pdf export.PDFRenderer
	var chrome *export.ChromeRenderer
	if cfg.Export.Enabled {
		chrome = export.NewChromeRenderer(cfg.Export, log)
		pdf = chrome
	} else {
		log.Info("PDF export disabled")
	}
	renderer := dashboard.NewRenderer(
		dashboard.WithConcurrency(widgetConcurrency),
		dashboard.WithWidgetTimeout(widgetTimeout),
	)
	dashboardService := dashboardapp.NewService(
		persistence.NewGormDashboardRepository(db.DB),
		recordService,
		renderer,
		pdf,
	).WithObserver(appMetrics)

	// Drive
	objects := newObjectStorage(ctx, cfg, log)
	driveService := driveapp.NewService(
		persistence.NewGormDriveFileRepository(db.DB),
		objects,
		cfg.HTTP.MaxUploadSize,
		cfg.Storage.PresignExpiration,
	)
	if _, inMemory := objects.(*storage.MemoryObjectStorage); inMemory {
		driveService.WithContentURL(router.DriveFilesRoute)
	}

	// Agent
	providers := llm.NewProviders(cfg.LLM, log)
	conversations, err := cache.NewConversationStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.App.IsProduction()),
	).CreateStore()
	if err != nil {
		log.Fatal("Failed to create conversation store", zap.Error(err))
	}
	tools, err := agentapp.NewToolRegistry(recordService, dashboardService)
	if err != nil {
		log.Fatal("Failed to register agent tools", zap.Error(err))
	}
	chatService := agentapp.NewChatService(providers, tools, conversations, registry, cfg.Agent, cfg.LLM).
		WithMetrics(appMetrics)
	go chatService.Limiter().Run(ctx, limiterSweepEvery)

	var ipLimiter *ratelimit.Keyed
	if cfg.HTTP.RatePerMinute > 0 {
		ipLimiter = ratelimit.NewKeyed(cfg.HTTP.RatePerMinute, cfg.HTTP.RateBurst)
		go ipLimiter.Run(ctx, limiterSweepEvery)
	}

	// HTTP
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	checks := []handler.ReadinessCheck{{Name: "database", Ping: db.Ping}}
	if redisStore, ok := conversations.(*cache.RedisConversationStore); ok {
		checks = append(checks, handler.ReadinessCheck{Name: "redis", Ping: redisStore.Ping})
	}

	verifier := auth.NewVerifier(cfg.JWT)
	engine, err := router.New(router.Config{
		Logger:         log,
		HTTP:           cfg.HTTP,
		ServiceName:    serviceName,
		TracingEnabled: tracer.IsEnabled(),
		HSTS:           cfg.App.IsProduction(),
		Verifier:       verifier,
		RequireToken:   cfg.App.IsProduction() && verifier.Enabled(),
		MeterProvider:  meter,
		IPLimiter:      ipLimiter,
		Swagger: middleware.SwaggerConfig{
			Enabled:     cfg.Swagger.Enabled,
			RequireAuth: cfg.Swagger.RequireAuth,
			AllowedIPs:  cfg.Swagger.AllowedIPs,
		},
		Profiling:  profiler.IsEnabled(),
		Records:    handler.NewRecordHandler(recordService),
		Dashboards: handler.NewDashboardHandler(dashboardService),
		Agent:      handler.NewAgentHandler(chatService),
		Drive:      handler.NewDriveHandler(driveService),
		System: handler.NewSystemHandler(cfg.App.Name, version,
			handler.NewIntegrationsStatus(cfg, providers.Names()),
			checks...,
		),
	})
	if err != nil {
		log.Fatal("Failed to build router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if chrome != nil {
		if err := chrome.Close(); err != nil {
			log.Warn("Error closing PDF renderer", zap.Error(err))
		}
	}
	if err := conversations.Close(); err != nil {
		log.Warn("Error closing conversation store", zap.Error(err))
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down tracer", zap.Error(err))
	}
	if err := meter.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down meter", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Warn("Error stopping profiler", zap.Error(err))
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// newObjectStorage returns S3 storage when credentials are configured, memory otherwise
func newObjectStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) drive.ObjectStorage {
	if !cfg.Storage.Enabled() {
		log.Warn("Object storage not configured, drive files are kept in memory and served by the API")
		return storage.NewMemoryObjectStorage("http://localhost:" + cfg.App.Port + router.DriveFilesRoute)
	}

	s3, err := storage.NewS3ObjectStorage(&cfg.Storage,
		storage.WithLogger(log),
		storage.WithPresignExpiration(cfg.Storage.PresignExpiration),
	)
	if err != nil {
		log.Fatal("Failed to create object storage", zap.Error(err))
	}

	checkCtx, cancel := context.WithTimeout(ctx, bucketCheckDeadline)
	defer cancel()
	if err := s3.EnsureBucket(checkCtx); err != nil {
		log.Warn("Bucket check failed, uploads may fail", zap.String("bucket", s3.Bucket()), zap.Error(err))
	}
	return s3
}
