package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.input)
		if err != nil {
			t.Errorf("ParseLevel(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}

	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNewTextFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New("warn", "text", &buf)

	log.Info("hidden")
	log.Warn("shown", "key", "libraries/a.jar")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record written at warn level: %q", out)
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "key=libraries/a.jar") {
		t.Errorf("unexpected text output: %q", out)
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New("debug", "json", &buf)
	log.Debug("file downloaded", "bytes", 42)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "file downloaded" || rec["bytes"] != float64(42) {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestWithRun(t *testing.T) {
	var buf bytes.Buffer
	log, id := WithRun(New("info", "json", &buf))
	if id == "" {
		t.Fatal("empty run id")
	}
	log.Info("hello")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if rec["run"] != id {
		t.Errorf("run = %v, want %s", rec["run"], id)
	}

	_, other := WithRun(New("info", "json", &buf))
	if other == id {
		t.Error("run ids must differ between runs")
	}
}

func TestValidFormat(t *testing.T) {
	for _, f := range []string{"", "text", "json"} {
		if !ValidFormat(f) {
			t.Errorf("ValidFormat(%q) = false", f)
		}
	}
	if ValidFormat("xml") {
		t.Error("ValidFormat(xml) = true")
	}
}
