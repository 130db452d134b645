package types

import (
	"context"
	"testing"
)

type noopLogger struct{}

func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (l noopLogger) With(args ...any) Logger     { return l }

// TestRequestIDRoundTrip verifies the request ID survives context storage.
func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")

	if got := GetRequestID(ctx); got != "req-123" {
		t.Errorf("GetRequestID = %q, want %q", got, "req-123")
	}
}

// TestRequestIDMissing verifies the zero value when no ID was stored.
func TestRequestIDMissing(t *testing.T) {
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID on empty context = %q, want empty", got)
	}
}

// TestLoggerRoundTrip verifies logger storage and retrieval.
func TestLoggerRoundTrip(t *testing.T) {
	logger := noopLogger{}
	ctx := WithLogger(context.Background(), logger)

	if got := LoggerFromContext(ctx); got != logger {
		t.Errorf("LoggerFromContext = %v, want the stored logger", got)
	}
}

// TestLoggerMissing verifies nil when no logger was stored.
func TestLoggerMissing(t *testing.T) {
	if got := LoggerFromContext(context.Background()); got != nil {
		t.Errorf("LoggerFromContext on empty context = %v, want nil", got)
	}
}
