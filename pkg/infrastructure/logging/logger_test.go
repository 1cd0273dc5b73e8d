package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug": DebugLevel,
		"info":  InfoLevel,
		"warn":  WarnLevel,
		"error": ErrorLevel,
	}
	for s, want := range cases {
		got, err := ParseLogLevel(s)
		if err != nil {
			t.Errorf("ParseLogLevel(%q): %v", s, err)
		}
		if got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", s, got, want)
		}
	}
	if _, err := ParseLogLevel("verbose"); err == nil {
		t.Error("unknown level should fail")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: WarnLevel, Format: TextFormat, Output: &buf})

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("below-threshold messages logged: %q", out)
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Errorf("threshold messages missing: %q", out)
	}
}

func TestComponentField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: InfoLevel, Format: TextFormat, Output: &buf})

	logger.WithComponent("searcher").Info("ready")
	if !strings.Contains(buf.String(), "component=searcher") {
		t.Errorf("component missing: %q", buf.String())
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: InfoLevel, Format: JSONFormat, Output: &buf, Component: "index"})

	logger.Info("indexed", map[string]interface{}{"count": 7})

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry.Level != "INFO" || entry.Message != "indexed" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.Fields["component"] != "index" {
		t.Errorf("fields = %v", entry.Fields)
	}
	if entry.Fields["count"] != float64(7) {
		t.Errorf("count = %v", entry.Fields["count"])
	}
}

func TestTokenRedaction(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: InfoLevel, Format: TextFormat, Output: &buf, EnableSanitizing: true})

	logger.Info("auth attempt", map[string]interface{}{
		"token": "short",
		"user":  "alice",
	})
	out := buf.String()
	if strings.Contains(out, "short") {
		t.Errorf("token field value not redacted: %q", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Errorf("missing redaction marker: %q", out)
	}
	if !strings.Contains(out, "alice") {
		t.Errorf("innocent field redacted: %q", out)
	}

	buf.Reset()
	logger.Info("got value", map[string]interface{}{
		"session": "abcdefghijklmnopqrstuvwxyz0123456789",
	})
	if !strings.Contains(buf.String(), "[TOKEN-REDACTED]") {
		t.Errorf("token-shaped value not redacted: %q", buf.String())
	}
}

func TestFieldLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: InfoLevel, Format: TextFormat, Output: &buf})

	logger.WithField("uri", "/a/doc1").WithField("attempt", 2).Info("retrying")
	out := buf.String()
	if !strings.Contains(out, "uri=/a/doc1") || !strings.Contains(out, "attempt=2") {
		t.Errorf("fields missing: %q", out)
	}
}

func TestIsEnabled(t *testing.T) {
	logger := NewLogger(&Config{Level: InfoLevel})
	if logger.IsEnabled(DebugLevel) {
		t.Error("debug should be disabled at info level")
	}
	if !logger.IsEnabled(ErrorLevel) {
		t.Error("error should be enabled at info level")
	}
	logger.SetLevel(DebugLevel)
	if !logger.IsEnabled(DebugLevel) {
		t.Error("debug should be enabled after SetLevel")
	}
}

func TestGlobalLogger(t *testing.T) {
	if GetGlobalLogger() == nil {
		t.Fatal("global logger must never be nil")
	}
	var buf bytes.Buffer
	InitGlobalLogger(&Config{Level: InfoLevel, Format: TextFormat, Output: &buf})
	GetGlobalLogger().Info("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("global logger output = %q", buf.String())
	}
}
