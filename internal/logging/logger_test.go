package logging

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// TestNewDevelopmentLogger confirms the development logger builds and logs.
func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(true)
	if err != nil {
		t.Fatalf("New(true) error = %v", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	if !logger.Core().Enabled(zap.DebugLevel) {
		t.Fatal("expected development logger to emit debug")
	}
}

// TestNewProductionLogger ensures the production logger skips debug output.
func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(false)
	if err != nil {
		t.Fatalf("New(false) error = %v", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	if logger.Core().Enabled(zap.DebugLevel) {
		t.Fatal("expected production logger to drop debug")
	}
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	scoped := zap.New(core).With(zap.String("request_id", "abc"))
	ctx := WithContext(context.Background(), scoped)

	FromContext(ctx, zap.NewNop()).Info("hello")
	if logs.Len() != 1 || logs.All()[0].ContextMap()["request_id"] != "abc" {
		t.Fatalf("expected scoped logger, got %+v", logs.All())
	}

	if FromContext(context.Background(), nil) == nil {
		t.Fatal("expected nop logger fallback")
	}
}
