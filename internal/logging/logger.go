package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	debugEnabled = os.Getenv("DEBUG") == "true"

	mu     sync.RWMutex
	sugar  *zap.SugaredLogger
	closer func() error
)

func init() {
	var logger *zap.Logger
	var err error
	if debugEnabled {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		logger = zap.NewNop()
	}
	sugar = logger.Sugar()
	closer = logger.Sync
}

// SetLogger replaces the underlying logger (tests use zap.NewNop)
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	sugar = l.Sugar()
	closer = l.Sync
}

// Sync flushes buffered log entries
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	return closer()
}

func logger(subsystem string) *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar.With("ns", subsystem)
}

// Info logs an informational message (always shown)
func Info(subsystem, format string, args ...any) {
	logger(subsystem).Info(line(subsystem, format, args))
}

// Debug logs a debug message (only shown if DEBUG=true)
func Debug(subsystem, format string, args ...any) {
	if debugEnabled {
		logger(subsystem).Debug(line(subsystem, format, args))
	}
}

// Warn logs a recoverable problem
func Warn(subsystem, format string, args ...any) {
	logger(subsystem).Warn(line(subsystem, format, args))
}

// Error logs a failure that was handled by skipping work
func Error(subsystem, format string, args ...any) {
	logger(subsystem).Error(line(subsystem, format, args))
}

func line(subsystem, format string, args []any) string {
	return fmt.Sprintf("[%s] "+format, append([]any{subsystem}, args...)...)
}

// Truncate truncates a string to maxLen and adds ellipsis
func Truncate(s string, maxLen int) string {
	// Replace newlines with spaces for one-line logs
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
