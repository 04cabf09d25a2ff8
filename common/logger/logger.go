package logger

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides a unified logging interface for the pipeline.
// Package-level helpers write through a process-wide zap logger that tests
// can swap with an observer core.

// LogLevel represents log severity levels
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	mu    sync.RWMutex
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	base  = newDefault(level)
)

func newDefault(lvl zap.AtomicLevel) *zap.SugaredLogger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = lvl
	cfg.DisableStacktrace = true
	cfg.OutputPaths = []string{"stderr"}
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

// Init rebuilds the process logger. format is "json" or "console".
func Init(levelName, format string) error {
	lvl, err := ParseLevel(levelName)
	if err != nil {
		return err
	}
	var cfg zap.Config
	if strings.EqualFold(format, "json") {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = level
	cfg.DisableStacktrace = true
	cfg.OutputPaths = []string{"stderr"}
	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	SetLevel(lvl)
	Replace(l)
	return nil
}

// Replace swaps the underlying zap logger.
func Replace(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = l.Sugar()
}

// L returns the current sugared logger.
func L() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Sync flushes buffered entries.
func Sync() {
	_ = L().Sync()
}

// ParseLevel maps a config string to a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// SetLevel sets the minimum log level
func SetLevel(l LogLevel) {
	level.SetLevel(toZap(l))
}

func toZap(l LogLevel) zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Debugf logs a debug message
func Debugf(format string, args ...interface{}) { L().Debugf(format, args...) }

// Infof logs an info message
func Infof(format string, args ...interface{}) { L().Infof(format, args...) }

// Warnf logs a warning message
func Warnf(format string, args ...interface{}) { L().Warnf(format, args...) }

// Errorf logs an error message
func Errorf(format string, args ...interface{}) { L().Errorf(format, args...) }

// ContextLogger carries request-scoped fields such as the request id.
type ContextLogger struct {
	s *zap.SugaredLogger
}

// WithContext creates a new logger with context
func WithContext(fields map[string]interface{}) *ContextLogger {
	kv := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return &ContextLogger{s: L().With(kv...)}
}

// With returns a logger carrying alternating key/value pairs.
func With(kv ...interface{}) *ContextLogger {
	return &ContextLogger{s: L().With(kv...)}
}

// Debugf logs with context
func (c *ContextLogger) Debugf(format string, args ...interface{}) { c.s.Debugf(format, args...) }

// Infof logs with context
func (c *ContextLogger) Infof(format string, args ...interface{}) { c.s.Infof(format, args...) }

// Warnf logs with context
func (c *ContextLogger) Warnf(format string, args ...interface{}) { c.s.Warnf(format, args...) }

// Errorf logs with context
func (c *ContextLogger) Errorf(format string, args ...interface{}) { c.s.Errorf(format, args...) }

type ctxKey struct{}

// NewContext returns ctx carrying l, so stages can log with the request's
// fields without threading a logger through every call.
func NewContext(ctx context.Context, l *ContextLogger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored by NewContext, or one without
// extra fields.
func FromContext(ctx context.Context) *ContextLogger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*ContextLogger); ok && l != nil {
			return l
		}
	}
	return &ContextLogger{s: L()}
}
