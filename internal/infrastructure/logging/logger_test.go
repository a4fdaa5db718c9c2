package logging

import (
	"log/slog"
	"testing"

	"github.com/lockerhub/lockerhub-core/internal/infrastructure/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewDoesNotPanic(t *testing.T) {
	for _, format := range []string{"json", "text", ""} {
		logger := New(config.LoggingConfig{Level: "debug", Format: format}, "test")
		if logger == nil {
			t.Fatalf("New() returned nil for format %q", format)
		}
		logger.Debug("probe", "format", format)
	}
}

func TestWithPreservesLogger(t *testing.T) {
	logger := Default()
	derived := logger.With("component", "test")
	if derived == nil || derived.Logger == nil {
		t.Fatal("With() returned nil logger")
	}
	derived.Info("derived logger works")
}
