package observability

import (
	"testing"

	"log/slog"

	"cexarb/internal/config"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.in); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNewLoggerDoesNotPanicForEitherFormat(t *testing.T) {
	t.Parallel()
	for _, format := range []string{"json", "text", ""} {
		logger := NewLogger(config.LoggingConfig{Level: "info", Format: format})
		if logger == nil {
			t.Fatalf("NewLogger(%q) = nil", format)
		}
	}
}
