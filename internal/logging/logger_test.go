package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesJSONToFile(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "logs", "textdeckd.log")

	logger, err := New(logPath, "main")
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("store initialized")
	_ = logger.Sync()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	if !strings.Contains(line, `"msg":"store initialized"`) {
		t.Errorf("log line %q missing message", line)
	}
	if !strings.Contains(line, `"session":"main"`) {
		t.Errorf("log line %q missing session field", line)
	}
}

func TestNewCreatesLogDir(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "nested", "deep", "d.log")

	if _, err := New(logPath, "main"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Dir(logPath)); err != nil {
		t.Errorf("log dir not created: %v", err)
	}
}
