package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func resetState() {
	CloseAll()
	loggersMu.Lock()
	loggers = make(map[Category]*Logger)
	loggersMu.Unlock()
	logsDir = ""
	cfg = Config{}
}

func TestInitializeDisabledByDefault(t *testing.T) {
	resetState()
	tempDir := t.TempDir()

	if err := Initialize(tempDir, Config{}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if IsDebugMode() {
		t.Fatal("expected debug mode disabled by default")
	}

	Discovery("should not be written")
	if _, err := os.Stat(filepath.Join(tempDir, "logs")); !os.IsNotExist(err) {
		t.Fatal("expected no logs directory when debug_mode is false")
	}
}

func TestCategoryLogsToOwnFile(t *testing.T) {
	resetState()
	tempDir := t.TempDir()

	err := Initialize(tempDir, Config{
		DebugMode:  true,
		Level:      "debug",
		Categories: map[string]bool{"depdb": true, "pool": false},
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer CloseAll()

	DepDB("rewrote dependency database")
	PoolWarn("replacement exhausted")

	entries, err := os.ReadDir(filepath.Join(tempDir, "logs"))
	if err != nil {
		t.Fatalf("read logs dir: %v", err)
	}

	var sawDepDB, sawPool bool
	for _, e := range entries {
		if strings.Contains(e.Name(), "depdb") {
			sawDepDB = true
		}
		if strings.Contains(e.Name(), "pool") {
			sawPool = true
		}
	}
	if !sawDepDB {
		t.Error("expected a depdb log file")
	}
	if sawPool {
		t.Error("pool category disabled explicitly; should not have created a log file")
	}
}

func TestJSONFormat(t *testing.T) {
	resetState()
	tempDir := t.TempDir()

	if err := Initialize(tempDir, Config{DebugMode: true, Level: "info", JSONFormat: true}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer CloseAll()

	Cache("cache discarded: schema mismatch")

	data, err := os.ReadFile(findLogFile(t, tempDir, "cache"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"cat":"cache"`) {
		t.Errorf("expected JSON log entry, got: %s", data)
	}
}

func findLogFile(t *testing.T, root, category string) string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(root, "logs"))
	if err != nil {
		t.Fatalf("read logs dir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), category) {
			return filepath.Join(root, "logs", e.Name())
		}
	}
	t.Fatalf("no log file for category %s", category)
	return ""
}
