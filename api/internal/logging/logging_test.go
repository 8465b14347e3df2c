package logging

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestNewLevels(t *testing.T) {
	l, err := New("development", "debug")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !l.Desugar().Core().Enabled(zap.DebugLevel) {
		t.Fatalf("debug level not enabled")
	}

	l, err = New("production", "nonsense")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if l.Desugar().Core().Enabled(zap.DebugLevel) || !l.Desugar().Core().Enabled(zap.InfoLevel) {
		t.Fatalf("unknown level should fall back to info")
	}
}

func TestFromContext(t *testing.T) {
	fallback := zap.NewNop().Sugar()
	if got := FromContext(context.Background(), fallback); got != fallback {
		t.Fatalf("FromContext() without logger should return fallback")
	}
	scoped := fallback.With("request_id", "abc")
	if got := FromContext(WithContext(context.Background(), scoped), fallback); got != scoped {
		t.Fatalf("FromContext() did not return the stored logger")
	}
	if FromContext(context.Background(), nil) == nil {
		t.Fatalf("FromContext() returned nil")
	}
}
