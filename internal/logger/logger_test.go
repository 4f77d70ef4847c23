package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestInitParsesLevel(t *testing.T) {
	if err := Init("debug", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if Log.GetLevel() != logrus.DebugLevel {
		t.Errorf("expected debug level, got %s", Log.GetLevel())
	}

	if err := Init("nonsense", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if Log.GetLevel() != logrus.InfoLevel {
		t.Errorf("expected fallback to info level, got %s", Log.GetLevel())
	}
}

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "reviewguide.log")
	if err := Init("INFO", path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { Init("INFO", "") })

	WithProduct("Galaxy S25").Info("guide ready")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "guide ready") || !strings.Contains(string(data), "Galaxy S25") {
		t.Errorf("expected message and product field in log file, got %q", string(data))
	}
}
