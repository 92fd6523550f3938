// Package logging provides the minimal printf-style logging contract used
// across sage. Components accept a Logger and never write to the standard
// logger directly, so callers decide where lifecycle and failure events go.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Logger defines a minimal, printf-style logging contract.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Level controls which messages a standard logger emits.
type Level int

const (
	// LevelDebug emits everything.
	LevelDebug Level = iota
	// LevelInfo emits info and above.
	LevelInfo
	// LevelWarn emits warnings and errors.
	LevelWarn
	// LevelError emits errors only.
	LevelError
)

// ParseLevel maps a config string to a Level. Unknown strings map to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards all output.
func Nop() Logger {
	return nopLogger{}
}

// OrNop returns logger when non-nil, otherwise a no-op logger.
func OrNop(logger Logger) Logger {
	if logger == nil {
		return Nop()
	}
	return logger
}

// StdLogger writes levelled, component-prefixed lines through the standard
// library logger.
type StdLogger struct {
	level     Level
	component string
	out       *log.Logger
	mu        sync.Mutex
}

// New creates a StdLogger writing to stderr.
func New(level Level, component string) *StdLogger {
	return NewWithWriter(level, component, os.Stderr)
}

// NewWithWriter creates a StdLogger writing to the given writer.
func NewWithWriter(level Level, component string, w io.Writer) *StdLogger {
	return &StdLogger{
		level:     level,
		component: component,
		out:       log.New(w, "", log.LstdFlags),
	}
}

// WithComponent returns a logger with the same sink scoped to another component.
func (l *StdLogger) WithComponent(component string) *StdLogger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &StdLogger{level: l.level, component: component, out: l.out}
}

func (l *StdLogger) logf(level Level, tag, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if l.component != "" {
		l.out.Printf("%s [%s] %s", tag, l.component, msg)
		return
	}
	l.out.Printf("%s %s", tag, msg)
}

// Debug logs at debug level.
func (l *StdLogger) Debug(format string, args ...any) {
	l.logf(LevelDebug, "DEBUG", format, args...)
}

// Info logs at info level.
func (l *StdLogger) Info(format string, args ...any) {
	l.logf(LevelInfo, "INFO", format, args...)
}

// Warn logs at warn level.
func (l *StdLogger) Warn(format string, args ...any) {
	l.logf(LevelWarn, "WARN", format, args...)
}

// Error logs at error level.
func (l *StdLogger) Error(format string, args ...any) {
	l.logf(LevelError, "ERROR", format, args...)
}
