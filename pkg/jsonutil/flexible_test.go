package jsonutil

import "testing"

func TestString(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"nil", nil, ""},
		{"string", "ACTIVE", "ACTIVE"},
		{"whole number", float64(12345), "12345"},
		{"fractional number", 2.5, "2.5"},
		{"int", 42, "42"},
		{"bool", true, "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := String(tt.input); got != tt.expected {
				t.Errorf("String(%v) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFloat(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected float64
		ok       bool
	}{
		{"nil", nil, 0, false},
		{"float", 485000.0, 485000, true},
		{"int", 42, 42, true},
		{"plain string", "485000", 485000, true},
		{"comma formatted", "485,000", 485000, true},
		{"currency formatted", "$485,000.50", 485000.50, true},
		{"empty string", "", 0, false},
		{"garbage string", "n/a", 0, false},
		{"bool", true, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Float(tt.input)
			if ok != tt.ok || got != tt.expected {
				t.Errorf("Float(%v) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.expected, tt.ok)
			}
		})
	}
}
