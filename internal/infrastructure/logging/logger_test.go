package logging

import (
	"log/slog"
	"testing"

	"github.com/nerrad567/gray-bus-tools/internal/infrastructure/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tc := range tests {
		if got := parseLevel(tc.in); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestVerbosity(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "warn"},
		{1, "info"},
		{2, "debug"},
		{5, "debug"},
		{-1, "warn"},
	}
	for _, tc := range tests {
		if got := Verbosity(tc.n); got != tc.want {
			t.Errorf("Verbosity(%d) = %q, want %q", tc.n, got, tc.want)
		}
	}
}

func TestNewDoesNotPanic(t *testing.T) {
	for _, format := range []string{"text", "json", ""} {
		l := New(config.LoggingConfig{Level: "debug", Format: format, Output: "stderr"}, "test", "dev")
		if l == nil {
			t.Fatalf("New() returned nil for format %q", format)
		}
		l.Debug("hello", "k", "v")
	}
}

func TestWithAddsAttrs(t *testing.T) {
	l := Default().With("component", "test")
	if l == nil {
		t.Fatal("With() returned nil")
	}
	l.Info("still works")
}
