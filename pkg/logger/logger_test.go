package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"", LevelInfo},
		{"warning", LevelWarn},
		{" error ", LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got: %s", tt.want, got)
			}
		})
	}

	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("Expected error for unknown level")
	}
}

func TestInitJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(Config{Level: LevelWarn, Format: "json", Output: &buf}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer InitDev()

	Info("hidden")
	LogRewrite("getlex", "findpropstrict x")
	Warn("shown", "method", "main")

	out := buf.String()
	if strings.Contains(out, "hidden") || strings.Contains(out, "Peephole") {
		t.Errorf("Expected records below warn to be dropped, got: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"method":"main"`) {
		t.Errorf("Expected JSON record, got: %s", out)
	}
}

func TestInitLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "abcopt.log")
	cfg := DefaultConfig()
	cfg.LogFile = path
	if err := Init(cfg); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer InitDev()

	LogPhase("optimize")
	if err := Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file, got: %v", err)
	}
	if !strings.Contains(string(data), "phase=optimize") {
		t.Errorf("Expected phase record, got: %s", data)
	}
}

func TestInitProd(t *testing.T) {
	dir := t.TempDir()
	if err := InitProd(dir); err != nil {
		t.Fatalf("InitProd failed: %v", err)
	}
	defer InitDev()

	Info("ready", "workers", 4)
	if err := Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "abcopt.log"))
	if err != nil {
		t.Fatalf("Expected log file, got: %v", err)
	}
	if !strings.Contains(string(data), `"workers":4`) {
		t.Errorf("Expected JSON record, got: %s", data)
	}
}
