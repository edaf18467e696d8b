package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected LogLevel
	}{
		{name: "Debug", input: "debug", expected: LevelDebug},
		{name: "Info", input: "info", expected: LevelInfo},
		{name: "Warn", input: "warn", expected: LevelWarn},
		{name: "Warning alias", input: "warning", expected: LevelWarn},
		{name: "Error", input: "error", expected: LevelError},
		{name: "Case insensitive", input: "DEBUG", expected: LevelDebug},
		{name: "Surrounding space", input: "  error ", expected: LevelError},
		{name: "Empty defaults to info", input: "", expected: LevelInfo},
		{name: "Unknown defaults to info", input: "verbose", expected: LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLogLevelConstants(t *testing.T) {
	levels := []LogLevel{LevelDebug, LevelInfo, LevelWarn, LevelError}
	for i := 0; i < len(levels)-1; i++ {
		if levels[i] >= levels[i+1] {
			t.Errorf("Log levels should be in ascending order: %v >= %v", levels[i], levels[i+1])
		}
	}
}

func TestSetOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "json")
	t.Cleanup(func() { SetOutput(&bytes.Buffer{}, "console") })

	Error("stream failed for %s", "player-1")

	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("Expected a log line, got nothing")
	}

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("Expected JSON output, got %q: %v", line, err)
	}
	if entry["level"] != "error" {
		t.Errorf("Expected level=error, got %v", entry["level"])
	}
	if entry["message"] != "stream failed for player-1" {
		t.Errorf("Expected formatted message, got %v", entry["message"])
	}
}

func TestSetOutputConsole(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "console")
	t.Cleanup(func() { SetOutput(&bytes.Buffer{}, "console") })

	Printf("always %d", 1)
	Println("always", 2)

	out := buf.String()
	if !strings.Contains(out, "always 1") {
		t.Errorf("Expected Printf output, got %q", out)
	}
	if !strings.Contains(out, "always 2") {
		t.Errorf("Expected Println output, got %q", out)
	}
}

// TestLoggingFunctions tests that logging functions don't panic
func TestLoggingFunctions(t *testing.T) {
	SetOutput(&bytes.Buffer{}, "console")

	tests := []struct {
		name string
		fn   func()
	}{
		{name: "Debug", fn: func() { Debug("test message") }},
		{name: "Info", fn: func() { Info("test message") }},
		{name: "Warn", fn: func() { Warn("test message") }},
		{name: "Error", fn: func() { Error("test message") }},
		{name: "Debug with args", fn: func() { Debug("test %s %d", "message", 123) }},
		{name: "Info with args", fn: func() { Info("test %s %d", "message", 123) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("Function panicked: %v", r)
				}
			}()
			tt.fn()
		})
	}
}

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{LogLevel(99), "unknown(99)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			got := tt.level.String()
			if got != tt.expected {
				t.Errorf("LogLevel.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}
