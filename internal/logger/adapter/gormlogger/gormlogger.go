// Package gormlogger routes gorm's logging through zerolog.
package gormlogger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/voxguild/permengine/internal/logger"
)

// Logger implements gorm's logger.Interface.
type Logger struct {
	log           zerolog.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
	traceQueries  bool
}

// New returns a gorm logger writing to l with component=gorm.
func New(l zerolog.Logger, cfg logger.SQL) *Logger {
	return &Logger{
		log:           l.With().Str("component", "gorm").Logger(),
		level:         gormlogger.Warn,
		slowThreshold: time.Duration(cfg.SlowThreshold) * time.Millisecond,
		traceQueries:  cfg.TraceQueries,
	}
}

// LogMode implements logger.Interface.
func (l *Logger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *l
	c.level = level

	return &c
}

// Info implements logger.Interface.
func (l *Logger) Info(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Info {
		l.log.Info().Msg(fmt.Sprintf(msg, args...))
	}
}

// Warn implements logger.Interface.
func (l *Logger) Warn(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Warn {
		l.log.Warn().Msg(fmt.Sprintf(msg, args...))
	}
}

// Error implements logger.Interface.
func (l *Logger) Error(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Error {
		l.log.Error().Msg(fmt.Sprintf(msg, args...))
	}
}

// Trace implements logger.Interface. Record not found is not an error here.
func (l *Logger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)

	var ev *zerolog.Event

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		ev = l.log.Error().Err(err)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		ev = l.log.Warn().Dur("threshold", l.slowThreshold)
	case l.traceQueries:
		ev = l.log.Trace()
	default:
		return
	}

	sql, rows := fc()
	ev.Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("query")
}
