// Package obs provides the structured logging and metrics sinks shared by
// every component. There is no event-emitter singleton: callers are handed
// a Logger explicitly, with one process-wide default created at startup.
package obs

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is a structured logging field. It is a type alias so callers never
// need to import zap directly.
type Field = zap.Field

// String, Int, Int64, Float64, Err, and Duration build Fields without
// callers reaching for zap directly.
func String(key, val string) Field           { return zap.String(key, val) }
func Int(key string, val int) Field          { return zap.Int(key, val) }
func Int64(key string, val int64) Field      { return zap.Int64(key, val) }
func Float64(key string, val float64) Field  { return zap.Float64(key, val) }
func Err(err error) Field                    { return zap.Error(err) }
func Duration(key string, val time.Duration) Field { return zap.Duration(key, val) }

// Logger is the structured logging surface every component depends on.
// Implementations must never log secret material (keys, tokens, signatures).
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

type zapLogger struct {
	l *zap.Logger
}

func (z *zapLogger) Debug(msg string, fields ...Field) { z.l.Debug(msg, fields...) }
func (z *zapLogger) Info(msg string, fields ...Field)  { z.l.Info(msg, fields...) }
func (z *zapLogger) Warn(msg string, fields ...Field)  { z.l.Warn(msg, fields...) }
func (z *zapLogger) Error(msg string, fields ...Field) { z.l.Error(msg, fields...) }
func (z *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{l: z.l.With(fields...)}
}

// NewZapLogger wraps a configured *zap.Logger.
func NewZapLogger(l *zap.Logger) Logger {
	return &zapLogger{l: l}
}

// NewStdoutLogger builds a production-style JSON logger writing to stdout,
// filtered at level.
func NewStdoutLogger(level zapcore.Level) Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stdout"}
	l, err := cfg.Build()
	if err != nil {
		return NewNoOpLogger()
	}
	return NewZapLogger(l)
}

type noOpLogger struct{}

func (noOpLogger) Debug(string, ...Field)    {}
func (noOpLogger) Info(string, ...Field)     {}
func (noOpLogger) Warn(string, ...Field)     {}
func (noOpLogger) Error(string, ...Field)    {}
func (n noOpLogger) With(...Field) Logger    { return n }

// NewNoOpLogger returns a logger that discards everything; useful in tests
// and as a safe zero value.
func NewNoOpLogger() Logger { return noOpLogger{} }

// MemoryLogger records every record in-process, for test assertions.
type MemoryLogger struct {
	mu      sync.Mutex
	Records []Record
	fields  []Field
}

// Record is one captured log line.
type Record struct {
	Level   string
	Message string
	Fields  []Field
	At      time.Time
}

func NewMemoryLogger() *MemoryLogger { return &MemoryLogger{} }

func (m *MemoryLogger) append(level, msg string, fields ...Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records = append(m.Records, Record{Level: level, Message: msg, Fields: append(append([]Field{}, m.fields...), fields...), At: time.Now()})
}

func (m *MemoryLogger) Debug(msg string, fields ...Field) { m.append("debug", msg, fields...) }
func (m *MemoryLogger) Info(msg string, fields ...Field)  { m.append("info", msg, fields...) }
func (m *MemoryLogger) Warn(msg string, fields ...Field)  { m.append("warn", msg, fields...) }
func (m *MemoryLogger) Error(msg string, fields ...Field) { m.append("error", msg, fields...) }
func (m *MemoryLogger) With(fields ...Field) Logger {
	return &MemoryLogger{fields: append(append([]Field{}, m.fields...), fields...)}
}

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger = NewNoOpLogger()
)

// SetDefault installs the process-wide default logger that Default
// returns. Call once at startup. Components that receive no explicit
// Logger use a no-op logger, not this default.
func SetDefault(l Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// Default returns the process-wide default logger.
func Default() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}
