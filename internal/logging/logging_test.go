package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/satriahrh/schedula/internal/config"
)

func TestNewWritesCombinedAndErrorLogs(t *testing.T) {
	dir := t.TempDir()
	cfg := config.LogConfig{Dir: dir, Level: "info", MaxSizeMB: 1}

	logger, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	logger.Debug("Hidden detail")
	logger.Info("Session started", zap.String("sessionID", "s-1"))
	logger.Error("Chat request failed", zap.String("sessionID", "s-1"))
	_ = logger.Sync()

	combined, err := os.ReadFile(filepath.Join(dir, "combined.log"))
	if err != nil {
		t.Fatalf("Failed to read combined log: %v", err)
	}
	if !strings.Contains(string(combined), "Session started") || !strings.Contains(string(combined), "Chat request failed") {
		t.Errorf("Combined log missing records: %s", combined)
	}
	if strings.Contains(string(combined), "Hidden detail") {
		t.Error("Debug records must be filtered at info level")
	}

	errorsOnly, err := os.ReadFile(filepath.Join(dir, "error.log"))
	if err != nil {
		t.Fatalf("Failed to read error log: %v", err)
	}
	if strings.Contains(string(errorsOnly), "Session started") {
		t.Error("Error log must not contain info records")
	}
	if !strings.Contains(string(errorsOnly), "Chat request failed") {
		t.Errorf("Error log missing error record: %s", errorsOnly)
	}
}

func TestNewConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LogConfig{Level: "debug"}, zapcore.AddSync(&buf))
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	logger.Debug("Listening started")

	if !strings.Contains(buf.String(), "Listening started") {
		t.Errorf("Expected console output, got %q", buf.String())
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(config.LogConfig{Level: "chatty"}, nil); err == nil {
		t.Error("Expected error for unknown level")
	}
}
