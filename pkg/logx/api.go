package logx

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
)

var defaultLogger atomic.Pointer[Logger]

func init() {
	defaultLogger.Store(NewLogger(LoadFromEnv()))
}

func std() *Logger { return defaultLogger.Load() }

// SetDefaultLogger replaces the process wide logger
func SetDefaultLogger(logger *Logger) {
	defaultLogger.Store(logger)
}

// GetDefaultLogger returns the process wide logger
func GetDefaultLogger() *Logger {
	return std()
}

// SetLevel sets the log level for the default logger
func SetLevel(level Level) {
	std().SetLevel(level)
}

// SetOutput sets the output for the default logger
func SetOutput(w io.Writer) {
	std().SetOutput(w)
}

func Trace(msg string) { std().log(LevelTrace, msg, nil, nil, nil) }
func Debug(msg string) { std().log(LevelDebug, msg, nil, nil, nil) }
func Info(msg string)  { std().log(LevelInfo, msg, nil, nil, nil) }
func Warn(msg string)  { std().log(LevelWarn, msg, nil, nil, nil) }
func Error(msg string) { std().log(LevelError, msg, nil, nil, nil) }

// Fatal logs a fatal level message and exits
func Fatal(msg string) { std().log(LevelFatal, msg, nil, nil, nil) }

func Debugf(format string, args ...any) {
	std().log(LevelDebug, fmt.Sprintf(format, args...), nil, nil, nil)
}

func Infof(format string, args ...any) {
	std().log(LevelInfo, fmt.Sprintf(format, args...), nil, nil, nil)
}

func Warnf(format string, args ...any) {
	std().log(LevelWarn, fmt.Sprintf(format, args...), nil, nil, nil)
}

func Errorf(format string, args ...any) {
	std().log(LevelError, fmt.Sprintf(format, args...), nil, nil, nil)
}

// Fatalf logs a formatted fatal message and exits
func Fatalf(format string, args ...any) {
	std().log(LevelFatal, fmt.Sprintf(format, args...), nil, nil, nil)
}

// WithFields creates a new logger entry with fields
func WithFields(fields Fields) *Entry {
	return std().WithFields(fields)
}

// WithField creates a new logger entry with a single field
func WithField(key string, value any) *Entry {
	return std().WithField(key, value)
}

// WithContext creates a new logger entry carrying the request fields of ctx
func WithContext(ctx context.Context) *Entry {
	return newEntry(std()).WithContext(ctx)
}

// WithError creates a new logger entry with an error field
func WithError(err error) *Entry {
	return std().WithError(err)
}

// WithStruct creates a new logger entry with structured data
func WithStruct(data any) *Entry {
	return std().WithStruct(data)
}
