package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLevelString(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{TraceLevel, "TRACE"},
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{Level(999), "UNKNOWN"},
	}

	for _, test := range tests {
		if result := test.level.String(); result != test.expected {
			t.Errorf("Level.String() = %v, expected %v", result, test.expected)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"trace", TraceLevel, false},
		{"DEBUG", DebugLevel, false},
		{"", InfoLevel, false},
		{" warn ", WarnLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"loud", InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInitialize(t *testing.T) {
	if err := Initialize(Config{Level: InfoLevel, Component: "test"}); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	if defaultLogger == nil || defaultLogger.config.Component != "test" {
		t.Fatal("Initialize() did not set defaultLogger")
	}
	if err := Initialize(Config{Level: Level(42)}); err == nil {
		t.Error("Initialize() accepted an invalid level")
	}
}

func TestLoggerPrettyFormatting(t *testing.T) {
	l := New(Config{Level: InfoLevel, Component: "test", Output: &bytes.Buffer{}})

	entry := LogEntry{
		Time:      time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		Level:     "INFO",
		Message:   "test message",
		Component: "test",
		Fields:    map[string]interface{}{"b": 2, "a": "x", "c": true},
	}

	result := l.formatPretty(entry)
	want := "2025-01-01 12:00:00 [INFO] test: test message {a=x, b=2, c=true}"
	if result != want {
		t.Errorf("formatPretty() = %q, want %q", result, want)
	}
}

func TestLoggerNoOpMarker(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: InfoLevel, NoOp: true, Output: &buf})
	l.Log(InfoLevel, "would save")
	if !strings.Contains(buf.String(), "[NO-OP] would save") {
		t.Errorf("missing no-op marker: %q", buf.String())
	}
}

func TestLoggerJSONFormatting(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: InfoLevel, JSON: true, Component: "test", Output: &buf})

	l.Log(InfoLevel, "test message", String("key", "value"), Int("n", 3))

	var parsed LogEntry
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &parsed); err != nil {
		t.Fatalf("Log() produced invalid JSON: %v\nOutput: %s", err, buf.String())
	}
	if parsed.Message != "test message" || parsed.Level != "INFO" || parsed.Component != "test" {
		t.Errorf("unexpected entry: %+v", parsed)
	}
	if parsed.Fields["key"] != "value" {
		t.Errorf("fields = %v", parsed.Fields)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: WarnLevel, Output: &buf})

	l.Log(InfoLevel, "info message")
	l.Log(DebugLevel, "debug message")
	l.Log(WarnLevel, "warn message")
	l.Log(ErrorLevel, "error message")

	output := buf.String()
	for _, hidden := range []string{"info message", "debug message"} {
		if strings.Contains(output, hidden) {
			t.Errorf("%q should be filtered out", hidden)
		}
	}
	for _, shown := range []string{"warn message", "error message"} {
		if !strings.Contains(output, shown) {
			t.Errorf("%q should appear", shown)
		}
	}
}

func TestFieldConstructors(t *testing.T) {
	if f := String("key", "value"); f.Key != "key" || f.Value != "value" {
		t.Errorf("String() = %+v", f)
	}
	if f := Int("count", 42); f.Key != "count" || f.Value != 42 {
		t.Errorf("Int() = %+v", f)
	}
	if f := Bool("enabled", true); f.Key != "enabled" || f.Value != true {
		t.Errorf("Bool() = %+v", f)
	}
	if f := Err(errors.New("boom")); f.Key != "error" || f.Value != "boom" {
		t.Errorf("Err() = %+v", f)
	}
	if f := Err(nil); f.Value != "<nil>" {
		t.Errorf("Err(nil) = %+v", f)
	}
}

func TestConvenienceFunctions(t *testing.T) {
	var buf bytes.Buffer
	if err := Initialize(Config{Level: InfoLevel, Output: &buf}); err != nil {
		t.Fatal(err)
	}

	Info("test info message")
	Debug("test debug message")
	Trace("test trace message")
	Warn("test warn message")
	Error("test error message")

	output := buf.String()
	for _, want := range []string{"test info message", "test warn message", "test error message"} {
		if !strings.Contains(output, want) {
			t.Errorf("missing %q in %q", want, output)
		}
	}
	if strings.Contains(output, "debug message") || strings.Contains(output, "trace message") {
		t.Errorf("debug/trace should be filtered: %q", output)
	}
}

func TestSetOutput(t *testing.T) {
	if err := Initialize(Config{Level: InfoLevel}); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	SetOutput(&buf)

	Info("output test message")

	if !strings.Contains(buf.String(), "output test message") {
		t.Errorf("SetOutput() did not redirect output: %s", buf.String())
	}
}

func TestFallbackLogging(t *testing.T) {
	original := defaultLogger
	defaultLogger = nil
	defer func() { defaultLogger = original }()

	// must not panic before Initialize
	Info("fallback info")
	Error("fallback error")
}
