package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "info", false},
		{"debug", "debug", false},
		{"WARN", "warn", false},
		{"error", "error", false},
		{"loud", "info", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			lvl, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if lvl.String() != tt.want {
				t.Errorf("ParseLevel(%q) = %s, want %s", tt.in, lvl, tt.want)
			}
		})
	}
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xrmodel.log")

	l, err := New("warn", FileConfig{Path: path, MaxSizeMB: 1}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("hidden")
	l.Warn("shown", zap.Float64("scale", 2))
	_ = l.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 entry, got %d: %q", len(lines), data)
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("entry is not json: %v", err)
	}
	if entry["msg"] != "shown" || entry["level"] != "WARN" || entry["scale"] != 2.0 {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestNewConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	l, err := New("debug", FileConfig{}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Debug("model loaded")
	_ = l.Sync()

	if !strings.Contains(buf.String(), "model loaded") {
		t.Errorf("console output missing message: %q", buf.String())
	}
}

func TestNewWithoutSinks(t *testing.T) {
	l, err := New("info", FileConfig{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if l.Core().Enabled(zap.ErrorLevel) {
		t.Error("logger without sinks should be a no-op")
	}
}

func TestDefaultFileConfig(t *testing.T) {
	cfg := DefaultFileConfig("/tmp/xrmodel.log")
	if cfg.Path != "/tmp/xrmodel.log" {
		t.Errorf("expected path /tmp/xrmodel.log, got %s", cfg.Path)
	}
	if cfg.MaxSizeMB != 20 || cfg.MaxBackups != 3 || cfg.MaxAgeDays != 14 || !cfg.Compress {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestInitWithFileConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "xrmodel.log")
	prev := Log
	defer func() { Log = prev }()

	if err := InitWithFileConfig("info", DefaultFileConfig(path), false); err != nil {
		t.Fatalf("InitWithFileConfig: %v", err)
	}
	Debug("dropped")
	Info("kept")
	Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if strings.Contains(string(data), "dropped") {
		t.Error("debug entry written at info level")
	}
	if !strings.Contains(string(data), "kept") {
		t.Error("info entry missing")
	}
}

func TestInitInvalidLevel(t *testing.T) {
	prev := Log
	defer func() { Log = prev }()

	if err := Init("verbose", ""); err == nil {
		t.Error("expected error for unknown level")
	}
	if Log != prev {
		t.Error("failed Init replaced the logger")
	}
}
