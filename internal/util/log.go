package util

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel orders severities from trace up to error.
type LogLevel int32

const (
	LevelTrace LogLevel = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

// levelTags doubles as the print prefix table and the parse table.
var levelTags = [...]string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR"}

// ParseLogLevel maps a level name to its LogLevel, case-insensitively.
// Unrecognized names fall back to info.
func ParseLogLevel(s string) LogLevel {
	name := strings.TrimSpace(s)
	for i, tag := range levelTags {
		if strings.EqualFold(name, tag) {
			return LogLevel(i)
		}
	}
	return LevelInfo
}

// Logger filters timestamped lines by severity. The level can change at
// runtime; writes funnel through one log.Logger so concurrent callers
// never interleave partial lines.
type Logger struct {
	level atomic.Int32
	out   *log.Logger
}

// NewLogger returns a logger writing to stderr.
func NewLogger(level LogLevel) *Logger {
	return NewLoggerWithWriter(level, os.Stderr)
}

// NewLoggerWithWriter returns a logger writing to w. Tests pass a buffer
// here to capture output.
func NewLoggerWithWriter(level LogLevel, w io.Writer) *Logger {
	l := &Logger{out: log.New(w, "", log.LstdFlags|log.Lmsgprefix)}
	l.SetLevel(level)
	return l
}

// SetLevel adjusts the minimum severity that gets written.
func (l *Logger) SetLevel(level LogLevel) { l.level.Store(int32(level)) }

// Level reports the current minimum severity.
func (l *Logger) Level() LogLevel { return LogLevel(l.level.Load()) }

// Enabled reports whether lines at the given level would be written,
// letting callers skip expensive field formatting for suppressed levels.
func (l *Logger) Enabled(level LogLevel) bool {
	return level >= LogLevel(l.level.Load())
}

func (l *Logger) logf(level LogLevel, format string, args ...any) {
	if !l.Enabled(level) {
		return
	}
	l.out.Printf("[%s] %s", levelTags[level], fmt.Sprintf(format, args...))
}

func (l *Logger) Tracef(format string, args ...any) { l.logf(LevelTrace, format, args...) }
func (l *Logger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }
