package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/erp/gestao/internal/infrastructure/config"
	"github.com/erp/gestao/internal/infrastructure/logger"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Database owns the shared connection pool
type Database struct {
	DB *gorm.DB
}

// Option customizes the GORM session before the pool is returned
type Option func(*gorm.DB) error

// WithPlugin registers a GORM plugin, e.g. tracing
func WithPlugin(p gorm.Plugin) Option {
	return func(db *gorm.DB) error {
		return db.Use(p)
	}
}

// Open connects to Postgres, retrying with a linearly growing delay, and configures the pool
func Open(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger, opts ...Option) (*Database, error) {
	gcfg := &gorm.Config{
		Logger:                 logger.NewGormLogger(log, cfg.LogLevel, cfg.SlowQuery),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	}

	var db *gorm.DB
	err := Retry(ctx, cfg.ConnectAttempts, cfg.ConnectDelay, func(attempt int) error {
		var err error
		db, err = gorm.Open(postgres.Open(cfg.DSN()), gcfg)
		if err == nil {
			err = pingContext(ctx, db)
		}
		if err != nil {
			log.Warn("database not reachable", zap.Int("attempt", attempt), zap.Error(err))
		}
		if fatalConnectError(err) {
			return backoff.Permanent(err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return configure(db, cfg, opts...)
}

// New wraps an already opened GORM handle, used by tests and tools
func New(db *gorm.DB, cfg config.DatabaseConfig, opts ...Option) (*Database, error) {
	return configure(db, cfg, opts...)
}

func configure(db *gorm.DB, cfg config.DatabaseConfig, opts ...Option) (*Database, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	for _, opt := range opts {
		if err := opt(db); err != nil {
			return nil, err
		}
	}
	return &Database{DB: db}, nil
}

func pingContext(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the pool
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks the pool can reach the server
func (d *Database) Ping(ctx context.Context) error {
	return pingContext(ctx, d.DB)
}

// ConnectionStats is a JSON-friendly view of sql.DBStats
type ConnectionStats struct {
	MaxOpenConnections int           `json:"max_open_connections"`
	OpenConnections    int           `json:"open_connections"`
	InUse              int           `json:"in_use"`
	Idle               int           `json:"idle"`
	WaitCount          int64         `json:"wait_count"`
	WaitDuration       time.Duration `json:"wait_duration"`
}

// Stats returns pool statistics
func (d *Database) Stats() (ConnectionStats, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return ConnectionStats{}, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	s := sqlDB.Stats()
	return ConnectionStats{
		MaxOpenConnections: s.MaxOpenConnections,
		OpenConnections:    s.OpenConnections,
		InUse:              s.InUse,
		Idle:               s.Idle,
		WaitCount:          s.WaitCount,
		WaitDuration:       s.WaitDuration,
	}, nil
}
