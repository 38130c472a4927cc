package logging

import (
	"log/slog"
	"os"
	"sync"
)

// LoggingService owns the process logger and the rotating file behind it
type LoggingService struct {
	Logger  *slog.Logger
	rotator *RotatingLogger
}

var (
	DefaultLoggingService *LoggingService
	mu                    sync.RWMutex
)

// InitLogger initializes the global logger. An empty logDir logs to the
// console only.
func InitLogger(logDir string) {
	InitLoggerWithOptions(Options{LogDir: logDir})
}

// InitLoggerWithOptions initializes the global logger with explicit levels,
// retention and file size limits
func InitLoggerWithOptions(opts Options) {
	logger, rotator := SetupLogger(opts)

	mu.Lock()
	previous := DefaultLoggingService
	DefaultLoggingService = &LoggingService{Logger: logger, rotator: rotator}
	mu.Unlock()

	if previous != nil && previous.rotator != nil {
		_ = previous.rotator.Close()
	}
	slog.SetDefault(logger)
}

// Close flushes and closes the rotating log file, if any
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if DefaultLoggingService == nil || DefaultLoggingService.rotator == nil {
		return nil
	}
	err := DefaultLoggingService.rotator.Close()
	DefaultLoggingService.rotator = nil
	return err
}

// Logger returns the global logger, or a console fallback before InitLogger
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return DefaultLoggingService.Logger
}

// Package-level functions for direct access

func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}

func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}
