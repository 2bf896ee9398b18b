package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetLevelFromString(t *testing.T) {
	defer SetLevel(slog.LevelInfo)

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
	}
	for _, tt := range tests {
		SetLevelFromString(tt.in)
		if got := Level(); got != tt.want {
			t.Fatalf("SetLevelFromString(%q) level = %v, want %v", tt.in, got, tt.want)
		}
	}

	SetLevelFromString("bogus")
	if got := Level(); got != slog.LevelInfo {
		t.Fatalf("unknown level should be ignored, got %v", got)
	}
}

func TestInitStructuredJSON(t *testing.T) {
	defer InitStructured("text", "info")

	var buf bytes.Buffer
	InitStructuredTo(&buf, "json", "info")
	OpWithTrace("abc", "def").Info("invocation completed", "id", "1")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if line["trace_id"] != "abc" || line["span_id"] != "def" || line["id"] != "1" {
		t.Fatalf("missing attributes in %v", line)
	}
}

func TestInvocationLogDisabledByDefault(t *testing.T) {
	l := &Logger{}
	if l.Enabled() {
		t.Fatal("logger should be disabled without outputs")
	}
	l.Log(&InvocationLog{ID: "x"})
}

func TestInvocationLogOutputs(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "invocations.log")

	l := &Logger{}
	l.SetConsole(&console)
	if err := l.SetOutput(path); err != nil {
		t.Fatalf("SetOutput: %v", err)
	}

	l.Log(&InvocationLog{ID: "a", Operation: "add", X: 2, Y: 3, Result: 5, Success: true})
	l.Log(&InvocationLog{ID: "b", Operation: "add", Error: "boom"})
	l.Close()

	out := console.String()
	if !strings.Contains(out, "✓ a add(2, 3) = 5") {
		t.Fatalf("unexpected console output: %q", out)
	}
	if !strings.Contains(out, "error: boom") {
		t.Fatalf("missing error line: %q", out)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var entry InvocationLog
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		if entry.Timestamp.IsZero() {
			t.Fatal("timestamp should be set")
		}
		ids = append(ids, entry.ID)
	}
	if strings.Join(ids, ",") != "a,b" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}
