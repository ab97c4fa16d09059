package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "warn", Output: &buf})

	logger.Info().Msg("should be filtered")
	logger.Warn().Msg("should appear")

	out := buf.String()
	if strings.Contains(out, "should be filtered") {
		t.Errorf("info message was not filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Errorf("warn message missing: %s", out)
	}
}

func TestNewWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithComponent(Config{Level: "info", Output: &buf}, "pool")

	logger.Info().Msg("hello")

	if !strings.Contains(buf.String(), `"component":"pool"`) {
		t.Errorf("component field missing: %s", buf.String())
	}
}

func TestDefaultConfigTargetsStderr(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Output == nil {
		t.Fatal("default output must be set")
	}
	if cfg.Pretty {
		t.Error("default output must be machine-parseable")
	}
}
