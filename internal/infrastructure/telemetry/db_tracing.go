package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled bool
	// LogFullSQL keeps bound variables in db.statement; leave off outside development
	LogFullSQL      bool
	SlowQueryThresh time.Duration
	DBName          string
}

// DefaultDBTracingConfig returns the defaults: disabled, variables hidden, 200ms slow threshold.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThresh: 200 * time.Millisecond,
		DBName:          "gestao",
	}
}

type queryStartKey struct{}

// RegisterDBTracing installs otelgorm on db plus callbacks that tag spans with the
// table, affected rows and a slow_query flag. Slow queries are also logged.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = DefaultDBTracingConfig().SlowQueryThresh
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	before := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartKey{}, time.Now())
		}
	}
	after := func(tx *gorm.DB) {
		afterQuery(tx, cfg.SlowQueryThresh, logger)
	}

	// after hooks run ahead of otelgorm's, which ends the span
	cb := db.Callback()
	registrations := []func() error{
		func() error { return cb.Create().Before("gorm:create").Register("gestao_timing:before_create", before) },
		func() error { return cb.Query().Before("gorm:query").Register("gestao_timing:before_query", before) },
		func() error { return cb.Update().Before("gorm:update").Register("gestao_timing:before_update", before) },
		func() error { return cb.Delete().Before("gorm:delete").Register("gestao_timing:before_delete", before) },
		func() error { return cb.Row().Before("gorm:row").Register("gestao_timing:before_row", before) },
		func() error { return cb.Raw().Before("gorm:raw").Register("gestao_timing:before_raw", before) },
		func() error { return cb.Create().After("gorm:create").Before("otel:after:create").Register("gestao_timing:after_create", after) },
		func() error { return cb.Query().After("gorm:query").Before("otel:after:query").Register("gestao_timing:after_query", after) },
		func() error { return cb.Update().After("gorm:update").Before("otel:after:update").Register("gestao_timing:after_update", after) },
		func() error { return cb.Delete().After("gorm:delete").Before("otel:after:delete").Register("gestao_timing:after_delete", after) },
		func() error { return cb.Row().After("gorm:row").Before("otel:after:row").Register("gestao_timing:after_row", after) },
		func() error { return cb.Raw().After("gorm:raw").Before("otel:after:raw").Register("gestao_timing:after_raw", after) },
	}
	for _, register := range registrations {
		if err := register(); err != nil {
			return err
		}
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
	)
	return nil
}

func afterQuery(tx *gorm.DB, threshold time.Duration, logger *zap.Logger) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	recording := span.IsRecording()

	if recording {
		span.SetAttributes(attribute.Int64("db.rows_affected", tx.Statement.RowsAffected))
		if tx.Statement.Table != "" {
			span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
		}
		if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			RecordError(span, tx.Error)
		}
	}

	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}
	elapsed := time.Since(start)
	if elapsed <= threshold {
		return
	}
	if recording {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
	}
	logger.Warn("slow query",
		zap.String("table", tx.Statement.Table),
		zap.Duration("elapsed", elapsed),
		zap.String("trace_id", TraceID(ctx)),
	)
}
