package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := New(h)

	logger.Info("test message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Errorf("expected output to contain 'test message', got: %s", output)
	}
	if !strings.Contains(output, "key=value") {
		t.Errorf("expected output to contain 'key=value', got: %s", output)
	}
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		name     string
		logFunc  func(Logger)
		level    slog.Level
		contains string
	}{
		{"Debug", func(l Logger) { l.Debug("debug msg") }, slog.LevelDebug, "debug msg"},
		{"Info", func(l Logger) { l.Info("info msg") }, slog.LevelInfo, "info msg"},
		{"Warn", func(l Logger) { l.Warn("warn msg") }, slog.LevelWarn, "warn msg"},
		{"Error", func(l Logger) { l.Error("error msg") }, slog.LevelError, "error msg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: tt.level})
			logger := New(h)
			tt.logFunc(logger)

			if !strings.Contains(buf.String(), tt.contains) {
				t.Errorf("expected output to contain %q, got: %s", tt.contains, buf.String())
			}
		})
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := New(h).With("component", "resolver")

	logger.Info("resolving")

	if !strings.Contains(buf.String(), "component=resolver") {
		t.Errorf("expected output to contain component=resolver, got: %s", buf.String())
	}
}

func TestNoop(t *testing.T) {
	l := NewNoop()
	l.Debug("x")
	l.Info("x")
	l.Warn("x")
	l.Error("x")
	if l.With("k", "v") == nil {
		t.Error("With should never return nil")
	}
}

func TestDefault(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	var buf bytes.Buffer
	SetDefault(New(slog.NewTextHandler(&buf, nil)))
	Default().Warn("hello")

	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("expected default logger to be used, got: %s", buf.String())
	}
}

func TestCLIHandlerDebugIncludesSource(t *testing.T) {
	var buf bytes.Buffer
	h := newCLIHandler(&buf, slog.LevelDebug)
	New(h).Debug("probe")
	if !strings.Contains(buf.String(), "source=") {
		t.Errorf("expected debug output to include source, got: %s", buf.String())
	}
}

func TestCLIHandlerWarnOmitsTime(t *testing.T) {
	var buf bytes.Buffer
	h := newCLIHandler(&buf, slog.LevelWarn)
	New(h).Warn("probe")
	if strings.Contains(buf.String(), "time=") {
		t.Errorf("expected warn output to omit time, got: %s", buf.String())
	}
}
