package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInitWriter_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := InitWriter("warn", &buf)

	l.Info("hidden")
	l.Warn("shown", "distance_cm", 20.0)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "distance_cm=20") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	InitWriter("debug", &buf)

	Component("capture").Debug("bound")

	if !strings.Contains(buf.String(), "component=capture") {
		t.Errorf("component attribute missing: %q", buf.String())
	}
}
