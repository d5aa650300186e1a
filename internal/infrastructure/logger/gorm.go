package logger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger routes GORM statements into zap, correlated with the request context.
type GormLogger struct {
	base          *zap.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

// NewGormLogger creates a GORM logger. A zero slow threshold disables slow query warnings.
func NewGormLogger(base *zap.Logger, level string, slow time.Duration) *GormLogger {
	return &GormLogger{
		base:          base.Named("sql"),
		level:         ParseGormLevel(level),
		slowThreshold: slow,
	}
}

// ParseGormLevel maps silent/error/warn/info onto GORM levels, defaulting to warn.
func ParseGormLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

func (g *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *g
	clone.level = level
	return &clone
}

func (g *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if g.level >= gormlogger.Info {
		correlate(ctx, g.base).Sugar().Infof(msg, data...)
	}
}

func (g *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if g.level >= gormlogger.Warn {
		correlate(ctx, g.base).Sugar().Warnf(msg, data...)
	}
}

func (g *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if g.level >= gormlogger.Error {
		correlate(ctx, g.base).Sugar().Errorf(msg, data...)
	}
}

// Trace logs failed statements at error, slow statements at warn and the rest at debug.
// Not-found results are expected on lookups and are never logged as errors.
func (g *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	stmt, rows := fc()
	l := correlate(ctx, g.base)
	fields := []zap.Field{
		zap.String("sql", stmt),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
	}

	switch {
	case err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound) && g.level >= gormlogger.Error:
		l.Error("sql failed", append(fields, zap.Error(err))...)
	case g.slowThreshold > 0 && elapsed > g.slowThreshold && g.level >= gormlogger.Warn:
		l.Warn("slow sql", append(fields, zap.Duration("threshold", g.slowThreshold))...)
	case g.level >= gormlogger.Info:
		l.Debug("sql", fields...)
	}
}
