package main

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/af-corp/prediction-orchestrator/internal/config"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, config.TelemetryConfig{LogLevel: "warn", LogFormat: "json"})

	logger.Info("hidden")
	logger.Warn("shown", "model_id", "m1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info should be filtered at warn level")
	}
	if !strings.Contains(out, `"model_id":"m1"`) {
		t.Errorf("expected json output, got %q", out)
	}
}

func TestNewLogger_TextAndDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, config.TelemetryConfig{LogLevel: "bogus", LogFormat: "TEXT"})

	if !logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("unknown level should default to info")
	}
	logger.Info("hello", "k", "v")
	if !strings.Contains(buf.String(), "k=v") {
		t.Errorf("expected text output, got %q", buf.String())
	}
}
