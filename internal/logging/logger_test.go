package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"steelrain/sim/internal/config"
)

func newFileLogger(t *testing.T, level string) (*Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "simcore.log")
	logger, err := New(config.LoggingConfig{
		Level:      level,
		Path:       path,
		MaxSizeMB:  1,
		MaxBackups: 2,
		Compress:   false,
	})
	if err != nil {
		t.Fatalf("logger construction failed: %v", err)
	}
	return logger, path
}

func readEntries(t *testing.T, path string) []map[string]any {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log file: %v", err)
	}
	defer file.Close()
	var entries []map[string]any
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("log line is not JSON: %v", err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLoggerWritesStructuredJSON(t *testing.T) {
	logger, path := newFileLogger(t, "info")
	logger.Info("round started", String("round", "1"), Int("tanks", 4))
	if err := logger.Sync(); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	entries := readEntries(t, path)
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	entry := entries[0]
	//1.- Every entry carries the service tag, level, message and fields.
	if entry["service"] != "simcore" || entry["level"] != "info" {
		t.Fatalf("missing standard fields: %v", entry)
	}
	if entry["message"] != "round started" || entry["round"] != "1" {
		t.Fatalf("payload fields lost: %v", entry)
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Fatalf("timestamp missing: %v", entry)
	}
}

func TestLoggerFiltersBelowLevel(t *testing.T) {
	logger, path := newFileLogger(t, "warn")
	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Warn("visible")
	_ = logger.Sync()

	entries := readEntries(t, path)
	if len(entries) != 1 || entries[0]["message"] != "visible" {
		t.Fatalf("level filter broken: %v", entries)
	}
}

func TestWithAddsFieldsWithoutMutatingParent(t *testing.T) {
	logger, path := newFileLogger(t, "info")
	child := logger.With(String("tank", "t1"))
	child.Info("aimed")
	logger.Info("idle")
	_ = logger.Sync()

	entries := readEntries(t, path)
	if len(entries) != 2 {
		t.Fatalf("expected two entries, got %d", len(entries))
	}
	//1.- The child carries the extra field, the parent does not.
	if entries[0]["tank"] != "t1" {
		t.Fatalf("child field missing: %v", entries[0])
	}
	if _, ok := entries[1]["tank"]; ok {
		t.Fatalf("parent logger inherited the child's field: %v", entries[1])
	}
}

func TestParseLevelRejectsGarbage(t *testing.T) {
	if _, err := parseLevel("verbose"); err == nil {
		t.Fatalf("expected unknown level to fail")
	}
	if level, err := parseLevel(""); err != nil || level != InfoLevel {
		t.Fatalf("empty level must default to info")
	}
}

func TestNewRequiresPath(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "info", Path: "  ", MaxSizeMB: 1})
	if err == nil || !strings.Contains(err.Error(), "path") {
		t.Fatalf("expected missing path to fail, got %v", err)
	}
}
