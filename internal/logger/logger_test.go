package logger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/ConvoSphere/convosphere/internal/config"
)

func TestNewReturnsUsableLogger(t *testing.T) {
	l, closer := New(config.Logging{Level: "debug", Service: "convosphere-test"})
	defer closer.Close()

	if l == nil {
		t.Fatal("New() returned nil logger")
	}
	if !l.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug level not enabled despite config")
	}
}

func TestNewAsyncCloserFlushes(t *testing.T) {
	l, closer := New(config.Logging{Level: "info", Service: "convosphere-test", Async: true})
	if l == nil {
		t.Fatal("New() returned nil logger")
	}
	l.Info("about to close")
	closer.Close()
}

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
		{"garbage", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := context.Background()

	if got := RequestID(ctx); got != "" {
		t.Errorf("RequestID on bare context = %q, want empty", got)
	}

	ctx = WithRequestID(ctx, "req-123")
	if got := RequestID(ctx); got != "req-123" {
		t.Errorf("RequestID = %q, want req-123", got)
	}
}
