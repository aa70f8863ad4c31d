// Package debug provides logging and signal inspection for the host.
//
// Logging is backed by zap. The global logger is used by every package that
// runs on the main thread; nothing in this package may be called from the
// audio thread.
package debug

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	// LogLevelDebug is for detailed debugging information.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is for general informational messages.
	LogLevelInfo
	// LogLevelWarn is for warning messages.
	LogLevelWarn
	// LogLevelError is for error messages.
	LogLevelError
	// LogLevelOff disables all logging.
	LogLevelOff
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "debug"
	case LogLevelInfo:
		return "info"
	case LogLevelWarn:
		return "warn"
	case LogLevelError:
		return "error"
	case LogLevelOff:
		return "off"
	default:
		return "unknown"
	}
}

// ParseLevel parses a level name as accepted by -log-level.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug, nil
	case "", "info":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	case "off", "none":
		return LogLevelOff, nil
	}
	return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
}

func (l LogLevel) zap() zapcore.Level {
	switch l {
	case LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelInfo:
		return zapcore.InfoLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	default:
		// Above every level zap emits through a core.
		return zapcore.FatalLevel + 1
	}
}

// Options configures a Logger.
type Options struct {
	Level LogLevel
	JSON  bool
	// Color enables level colors in console output.
	Color bool
}

// Logger is a leveled zap logger whose level can be changed at runtime.
type Logger struct {
	*zap.Logger
	level zap.AtomicLevel
}

// New creates a logger writing to w.
func New(w io.Writer, opts Options) *Logger {
	level := zap.NewAtomicLevelAt(opts.Level.zap())

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if opts.JSON {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		if opts.Color {
			encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		encCfg.EncodeCaller = zapcore.ShortCallerEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(w), level)
	return &Logger{
		Logger: zap.New(core, zap.AddCaller()),
		level:  level,
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{
		Logger: zap.NewNop(),
		level:  zap.NewAtomicLevelAt(LogLevelOff.zap()),
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level LogLevel) {
	l.level.SetLevel(level.zap())
}

// Enabled reports whether messages at level are written.
func (l *Logger) Enabled(level LogLevel) bool {
	return level != LogLevelOff && l.level.Enabled(level.zap())
}

// With returns a child logger carrying fields. The level stays shared.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...), level: l.level}
}

// Named returns a child logger with name appended to the logger name.
func (l *Logger) Named(name string) *Logger {
	return &Logger{Logger: l.Logger.Named(name), level: l.level}
}

var defaultLogger atomic.Pointer[Logger]

func init() {
	defaultLogger.Store(New(os.Stderr, Options{Level: LogLevelInfo}))
}

// Default returns the global logger.
func Default() *Logger {
	return defaultLogger.Load()
}

// SetDefault replaces the global logger and returns the previous one.
func SetDefault(l *Logger) *Logger {
	if l == nil {
		l = Nop()
	}
	return defaultLogger.Swap(l)
}

// SetLevel sets the minimum level of the global logger.
func SetLevel(level LogLevel) {
	Default().SetLevel(level)
}

// Sync flushes the global logger.
func Sync() {
	_ = Default().Sync()
}

// Debug logs a debug message using the global logger.
func Debug(msg string, fields ...zap.Field) {
	Default().Debug(msg, fields...)
}

// Info logs an informational message using the global logger.
func Info(msg string, fields ...zap.Field) {
	Default().Info(msg, fields...)
}

// Warn logs a warning using the global logger.
func Warn(msg string, fields ...zap.Field) {
	Default().Warn(msg, fields...)
}

// Error logs an error using the global logger.
func Error(msg string, fields ...zap.Field) {
	Default().Error(msg, fields...)
}
