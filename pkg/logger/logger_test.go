package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLogger_BasicLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "text", Output: &buf})

	log.Debug("dbg", String("k", "v"))
	log.Info("info", Int("n", 42))
	log.Warn("warn", Bool("ok", true))
	log.Error("err", Error(nil))

	out := buf.String()
	// Expect all levels present (debug is the lowest configured)
	for _, s := range []string{"[DEBUG] dbg k=v", "[INFO] info n=42", "[WARN] warn ok=true", "[ERROR] err error=nil"} {
		if !strings.Contains(out, s) {
			t.Fatalf("expected output to contain %q, got: %s", s, out)
		}
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})

	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info message should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("expected warn message, got: %s", out)
	}
}

func TestLogger_WithComponentPrefix(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: "info", Output: &buf})
	comp := base.WithComponent("pulse")

	comp.Info("started")

	out := buf.String()
	if !strings.Contains(out, "[pulse]") {
		t.Fatalf("expected component prefix in output, got: %s", out)
	}
	if !strings.Contains(out, "[INFO] started") {
		t.Fatalf("expected info message in output, got: %s", out)
	}
}

func TestLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf}).WithComponent("sync")

	log.Info("Time synchronized", Int("hour", 9), Duration("jitter", 3*time.Millisecond))

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["msg"] != "Time synchronized" || entry["level"] != "info" || entry["component"] != "sync" {
		t.Errorf("unexpected entry %v", entry)
	}
	if entry["hour"] != float64(9) {
		t.Errorf("expected hour=9, got %v", entry["hour"])
	}
	if entry["jitter"] != "3ms" {
		t.Errorf("expected jitter=3ms, got %v", entry["jitter"])
	}
	if _, err := time.Parse(time.RFC3339, entry["time"].(string)); err != nil {
		t.Errorf("time is not RFC 3339: %v", entry["time"])
	}
}

func TestLogger_JSONLevelFilteringAndLines(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Format: "json", Output: &buf})

	log.Info("hidden")
	log.Warn("first", Uint64("dropped", 2))
	log.Error("second", Error(errors.New("boom")), Any("bits", []int{1, 0}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %s", len(lines), buf.String())
	}
	var warn, errEntry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &warn); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &errEntry); err != nil {
		t.Fatal(err)
	}
	if warn["level"] != "warn" || warn["dropped"] != float64(2) {
		t.Errorf("unexpected warn entry %v", warn)
	}
	if errEntry["level"] != "error" || errEntry["error"] != "boom" {
		t.Errorf("unexpected error entry %v", errEntry)
	}
	if _, ok := errEntry["component"]; ok {
		t.Error("root logger should not carry a component")
	}
}

func TestLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wwvb.log")
	log := New(Config{Level: "info", File: path, MaxSize: 1})

	log.Info("to file")
	if err := log.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Fatalf("expected message in log file, got: %s", data)
	}
	if err := New(Config{}).Close(); err != nil {
		t.Errorf("Close on stdout logger returned %v", err)
	}
}
