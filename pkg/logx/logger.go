package logx

import (
	"io"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the main logger instance. It keeps the logx API on top of a zap core.
type Logger struct {
	mu       sync.RWMutex
	config   *Config
	atom     zap.AtomicLevel
	z        *zap.Logger
	exitFunc func(int)
}

// NewLogger creates a new logger with the given config
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Output == nil {
		config.Output = os.Stdout
	}

	l := &Logger{
		config:   config,
		atom:     zap.NewAtomicLevelAt(config.Level.zap()),
		exitFunc: os.Exit,
	}
	l.z = l.build(config.Output)
	return l
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	cfg := DefaultConfig()
	cfg.Level = LevelOff
	cfg.Output = io.Discard
	return NewLogger(cfg)
}

func (l *Logger) build(w io.Writer) *zap.Logger {
	var enc zapcore.Encoder
	if l.config.Format == FormatJSON {
		ec := zap.NewProductionEncoderConfig()
		ec.TimeKey = "timestamp"
		ec.MessageKey = "message"
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(ec)
	} else {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		if l.config.EnableColors {
			ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		enc = zapcore.NewConsoleEncoder(ec)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(w), l.atom)

	opts := []zap.Option{zap.WithFatalHook(exitHook{l})}
	if l.config.EnableCaller {
		// log -> Entry/api helper -> caller
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(2))
	}

	z := zap.New(core, opts...)
	if len(l.config.Fields) > 0 {
		z = z.With(toZap(l.config.Fields)...)
	}
	return z
}

// SetLevel sets the log level
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.config.Level = level
	l.atom.SetLevel(level.zap())
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config.Level
}

// SetOutput sets the output writer
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.config.Output = w
	l.z = l.build(w)
}

// Zap exposes the underlying zap logger for libraries that want one
func (l *Logger) Zap() *zap.Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.z
}

// Sync flushes buffered entries
func (l *Logger) Sync() error {
	return l.Zap().Sync()
}

func (l *Logger) log(level Level, msg string, fields Fields, data any, err error) {
	if level == LevelOff || !l.GetLevel().Enabled(level) {
		return
	}

	zf := toZap(fields)
	if data != nil {
		zf = append(zf, zap.Any("data", data))
	}
	if err != nil {
		zf = append(zf, zap.Error(err))
	}

	z := l.Zap()
	switch level {
	case LevelTrace, LevelDebug:
		z.Debug(msg, zf...)
	case LevelInfo:
		z.Info(msg, zf...)
	case LevelWarn:
		z.Warn(msg, zf...)
	case LevelError:
		z.Error(msg, zf...)
	case LevelFatal:
		z.Fatal(msg, zf...)
	}
}

// WithField creates a new entry with a field
func (l *Logger) WithField(key string, value any) *Entry {
	return newEntry(l).WithField(key, value)
}

// WithFields creates a new entry with fields
func (l *Logger) WithFields(fields Fields) *Entry {
	return newEntry(l).WithFields(fields)
}

// WithError creates a new entry with an error
func (l *Logger) WithError(err error) *Entry {
	return newEntry(l).WithError(err)
}

// WithStruct creates a new entry with structured data
func (l *Logger) WithStruct(data any) *Entry {
	return newEntry(l).WithStruct(data)
}

type exitHook struct{ l *Logger }

func (h exitHook) OnWrite(*zapcore.CheckedEntry, []zapcore.Field) {
	h.l.exitFunc(1)
}

func toZap(fields Fields) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}
