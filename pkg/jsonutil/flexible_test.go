package jsonutil

import (
	"encoding/json"
	"testing"
)

func TestFlexibleStringValue(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{"string", `"hello"`, "hello"},
		{"integer", `42`, "42"},
		{"float", `3.14`, "3.14"},
		{"boolean", `true`, "true"},
		{"null", `null`, ""},
		{"empty", ``, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FlexibleStringValue(json.RawMessage(tt.raw))
			if result != tt.expected {
				t.Errorf("FlexibleStringValue(%q) = %q, want %q", tt.raw, result, tt.expected)
			}
		})
	}
}

func TestFlexibleFloat(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected float64
	}{
		{"nil", nil, 0.0},
		{"float64", 0.05, 0.05},
		{"int", 42, 42.0},
		{"int64", int64(7), 7.0},
		{"plain string", "12.5", 12.5},
		{"percent string", "12.5%", 12.5},
		{"comma grouped", "1,024.50", 1024.50},
		{"currency", "$99.99", 99.99},
		{"whitespace", "  3.2% ", 3.2},
		{"malformed", "n/a", 0.0},
		{"empty string", "", 0.0},
		{"bool is not numeric", true, 0.0},
		{"json number", json.Number("2.5"), 2.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FlexibleFloat(tt.input)
			if result != tt.expected {
				t.Errorf("FlexibleFloat(%v) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

// Parsing already-parsed values must be a no-op: the pipeline re-parses metric
// bags that may round-trip through JSON.
func TestFlexibleFloat_Idempotent(t *testing.T) {
	inputs := []any{"12.5%", "1,024.50", nil, "garbage", 0.07}
	for _, in := range inputs {
		once := FlexibleFloat(in)
		twice := FlexibleFloat(once)
		if once != twice {
			t.Errorf("FlexibleFloat not idempotent for %v: %v != %v", in, once, twice)
		}
	}
}
