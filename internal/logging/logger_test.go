package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kingrea/texloop/internal/config"
)

func TestPrintfAppendsAndMirrors(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{ProjectDir: dir, StateDir: filepath.Join(dir, config.StateDirName)}
	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	var mirror bytes.Buffer
	logger.Printf("first %d", 1)
	logger.Mirror(&mirror)
	logger.Printf("second\n")
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(cfg.LogsDir(), "texloop.log"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 || !strings.HasSuffix(lines[0], "first 1") || !strings.HasSuffix(lines[1], "second") {
		t.Fatalf("unexpected log contents: %q", data)
	}
	if mirror.String() != "second\n" {
		t.Fatalf("mirror = %q", mirror.String())
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	logger.Printf("ignored")
	logger.Mirror(nil)
	if err := logger.Close(); err != nil {
		t.Fatalf("close nil: %v", err)
	}
}
