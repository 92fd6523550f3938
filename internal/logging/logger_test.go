package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"info":    LevelInfo,
		"warn":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"bogus":   LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestStdLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(LevelWarn, "test", &buf)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("expected debug and info to be suppressed, got %q", out)
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Errorf("expected warn and error to be emitted, got %q", out)
	}
}

func TestStdLoggerComponentPrefix(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(LevelInfo, "coordinator", &buf)

	logger.Info("hello %s", "world")

	if !strings.Contains(buf.String(), "[coordinator] hello world") {
		t.Errorf("expected component prefix, got %q", buf.String())
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("expected non-nil logger for nil input")
	}
	logger := New(LevelInfo, "x")
	if OrNop(logger) != Logger(logger) {
		t.Error("expected OrNop to return the given logger")
	}
}
