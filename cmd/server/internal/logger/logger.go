package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	defaultLogger *slog.Logger
	once          sync.Once
)

// Init initializes the global logger based on environment variables.
// DEBUG=true enables debug level logging, LOG_FORMAT=json selects the JSON handler.
func Init() {
	once.Do(func() {
		defaultLogger = New(os.Stdout, os.Getenv("DEBUG") == "true", os.Getenv("LOG_FORMAT"))
		slog.SetDefault(defaultLogger)
	})
}

// New builds a logger writing to w. It does not touch the global logger.
func New(w io.Writer, debug bool, format string) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Default returns the global logger, initializing it on first use.
func Default() *slog.Logger {
	Init()
	return defaultLogger
}

// Debug logs at Debug level.
func Debug(msg string, args ...any) {
	Default().Debug(msg, args...)
}

// Info logs at Info level.
func Info(msg string, args ...any) {
	Default().Info(msg, args...)
}

// Warn logs at Warn level.
func Warn(msg string, args ...any) {
	Default().Warn(msg, args...)
}

// Error logs at Error level.
func Error(msg string, args ...any) {
	Default().Error(msg, args...)
}

// Fatal logs at Error level and then exits.
func Fatal(msg string, args ...any) {
	Default().Error(msg, args...)
	os.Exit(1)
}

// With returns a new logger with the given attributes.
func With(args ...any) *slog.Logger {
	return Default().With(args...)
}
