package util

import (
	"context"
	"log/slog"
	"testing"
)

func TestLoggerFromContextFallsBackToDefault(t *testing.T) {
	if got := LoggerFromContext(context.Background()); got != slog.Default() {
		t.Fatal("expected default logger for empty context")
	}
}

func TestContextWithLoggerRoundTrip(t *testing.T) {
	logger := slog.Default().With("request_id", "abc")
	ctx := ContextWithLogger(context.Background(), logger)
	if got := LoggerFromContext(ctx); got != logger {
		t.Fatal("expected stored logger back from context")
	}
}
