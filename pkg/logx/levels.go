package logx

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// Level orders log severities from the most verbose upwards
type Level uint8

const (
	LevelTrace Level = iota // reported as debug by zap
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal // exits after writing
	LevelOff
)

var levelNames = [...]string{
	LevelTrace: "TRACE",
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
	LevelOff:   "OFF",
}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "UNKNOWN"
}

// ParseLevel reads LOG_LEVEL style names. Anything unknown is info.
func ParseLevel(level string) Level {
	name := strings.ToUpper(strings.TrimSpace(level))
	if name == "WARNING" {
		return LevelWarn
	}
	for l, n := range levelNames {
		if n == name {
			return Level(l)
		}
	}
	return LevelInfo
}

// Enabled reports whether a message at target passes a logger set to l
func (l Level) Enabled(target Level) bool {
	return l <= target
}

func (l Level) zap() zapcore.Level {
	if l <= LevelDebug {
		return zapcore.DebugLevel
	}
	if l >= LevelOff {
		return zapcore.FatalLevel + 1
	}
	// info, warn and error are consecutive in both
	switch l {
	case LevelFatal:
		return zapcore.FatalLevel
	default:
		return zapcore.Level(int8(l) - int8(LevelInfo) + int8(zapcore.InfoLevel))
	}
}
