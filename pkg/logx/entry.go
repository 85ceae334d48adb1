package logx

import (
	"context"
	"fmt"
)

// Fields is a map of structured data
type Fields map[string]any

type ctxFieldsKey struct{}

// ContextWithFields returns a context whose entries built via WithContext carry fields.
// Middlewares use it for request scoped values such as request_id or user_id.
func ContextWithFields(ctx context.Context, fields Fields) context.Context {
	merged := Fields{}
	if prev, ok := ctx.Value(ctxFieldsKey{}).(Fields); ok {
		for k, v := range prev {
			merged[k] = v
		}
	}
	for k, v := range fields {
		merged[k] = v
	}
	return context.WithValue(ctx, ctxFieldsKey{}, merged)
}

// Entry allows for building up log entries with multiple fields
type Entry struct {
	logger *Logger
	fields Fields
	data   any
	err    error
}

func newEntry(logger *Logger) *Entry {
	return &Entry{
		logger: logger,
		fields: make(Fields),
	}
}

// WithField adds a field to the entry (chainable)
func (e *Entry) WithField(key string, value any) *Entry {
	e.fields[key] = value
	return e
}

// WithFields adds multiple fields to the entry (chainable)
func (e *Entry) WithFields(fields Fields) *Entry {
	for k, v := range fields {
		e.fields[k] = v
	}
	return e
}

// WithError attaches an error (chainable)
func (e *Entry) WithError(err error) *Entry {
	e.err = err
	return e
}

// WithContext copies the request scoped fields stored in ctx (chainable)
func (e *Entry) WithContext(ctx context.Context) *Entry {
	if ctx == nil {
		return e
	}
	if fields, ok := ctx.Value(ctxFieldsKey{}).(Fields); ok {
		e.WithFields(fields)
	}
	return e
}

// WithStruct adds structured data (chainable)
func (e *Entry) WithStruct(data any) *Entry {
	e.data = data
	return e
}

func (e *Entry) Trace(msg string) { e.logger.log(LevelTrace, msg, e.fields, e.data, e.err) }
func (e *Entry) Debug(msg string) { e.logger.log(LevelDebug, msg, e.fields, e.data, e.err) }
func (e *Entry) Info(msg string)  { e.logger.log(LevelInfo, msg, e.fields, e.data, e.err) }
func (e *Entry) Warn(msg string)  { e.logger.log(LevelWarn, msg, e.fields, e.data, e.err) }
func (e *Entry) Error(msg string) { e.logger.log(LevelError, msg, e.fields, e.data, e.err) }
func (e *Entry) Fatal(msg string) { e.logger.log(LevelFatal, msg, e.fields, e.data, e.err) }

func (e *Entry) Debugf(format string, args ...any) {
	e.logger.log(LevelDebug, fmt.Sprintf(format, args...), e.fields, e.data, e.err)
}

func (e *Entry) Infof(format string, args ...any) {
	e.logger.log(LevelInfo, fmt.Sprintf(format, args...), e.fields, e.data, e.err)
}

func (e *Entry) Warnf(format string, args ...any) {
	e.logger.log(LevelWarn, fmt.Sprintf(format, args...), e.fields, e.data, e.err)
}

func (e *Entry) Errorf(format string, args ...any) {
	e.logger.log(LevelError, fmt.Sprintf(format, args...), e.fields, e.data, e.err)
}

func (e *Entry) Fatalf(format string, args ...any) {
	e.logger.log(LevelFatal, fmt.Sprintf(format, args...), e.fields, e.data, e.err)
}
