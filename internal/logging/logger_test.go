package logging_test

import (
	"context"
	"testing"

	"github.com/septivank/waterlevel-monitor/internal/logging"
)

func TestNewLogger_Level(t *testing.T) {
	logger, err := logging.NewLogger("waterlevel-monitor", "debug")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if ce := logger.Check(-1, "debug"); ce == nil {
		t.Error("Expected debug level to be enabled")
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	if _, err := logging.NewLogger("waterlevel-monitor", "loud"); err == nil {
		t.Error("Expected error for unknown level")
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := logging.ContextWithRequestID(context.Background(), "req-42")
	if got := logging.RequestIDFromContext(ctx); got != "req-42" {
		t.Errorf("Expected req-42, got %q", got)
	}
	if got := logging.RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("Expected empty id, got %q", got)
	}
}
