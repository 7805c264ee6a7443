// Package log provides structured logging for go-rover, wrapping slog
// with a runtime-adjustable level so --verbose and ROVER_LOG_LEVEL both
// land on the same knob.
package log

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	logger   *slog.Logger
	levelVar slog.LevelVar
	once     sync.Once
)

// ParseLevel maps a level name to a slog level. Unknown names fall back
// to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init initializes the global logger. The level argument (typically from
// the --verbose flag) loses to an explicit ROVER_LOG_LEVEL so a deployed
// rover can be quieted or opened up without changing the unit file.
// Output is JSON when ROVER_LOG_FORMAT=json or GO_ENV=production, text
// otherwise.
func Init(level string) {
	once.Do(func() {
		if env := os.Getenv("ROVER_LOG_LEVEL"); env != "" {
			level = env
		}
		levelVar.Set(ParseLevel(level))

		opts := &slog.HandlerOptions{
			Level: &levelVar,
		}

		var handler slog.Handler
		if os.Getenv("ROVER_LOG_FORMAT") == "json" || os.Getenv("GO_ENV") == "production" {
			handler = slog.NewJSONHandler(os.Stdout, opts)
		} else {
			handler = slog.NewTextHandler(os.Stdout, opts)
		}

		logger = slog.New(handler)
		slog.SetDefault(logger)
	})
}

// SetLevel adjusts the level of the running logger. Safe to call at any
// time; later Init calls do not override it.
func SetLevel(level string) {
	levelVar.Set(ParseLevel(level))
}

// L returns the global logger instance.
func L() *slog.Logger {
	if logger == nil {
		Init("info")
	}
	return logger
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	L().Error(msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}
