package sync

import (
	"testing"
)

func TestFieldEquals(t *testing.T) {
	tests := []struct {
		name     string
		existing any
		new      any
		want     bool
	}{
		{"equal strings", "abc", "abc", true},
		{"different strings", "abc", "def", false},
		{"nil vs empty string", nil, "", true},
		{"empty string vs nil", "", nil, true},
		{"nil vs zero", nil, 0, true},
		{"float64 vs int equal", float64(5), 5, true},
		{"float64 vs int different", float64(5), 6, false},
		{"int vs float64 equal", 5, float64(5), true},
		{"bool equal", true, true, true},
		{"bool different", true, false, false},
		{"sqlite bool as float", float64(1), true, true},
		{"sqlite false as float", float64(0), false, true},
		{"sqlite false vs true", float64(0), true, false},
		{"date with tz vs bare", "2025-10-03 00:00:00.000Z", "2025-10-03 00:00:00", true},
		{"date T-separator", "2025-10-03T18:30:00Z", "2025-10-03 18:30:00", true},
		{"bare date vs midnight timestamp", "2025-10-03 00:00:00", "2025-10-03", true},
		{"different dates", "2025-10-03 00:00:00", "2025-10-04 00:00:00", false},
		{"relation sets same order", []string{"a", "b"}, []string{"a", "b"}, true},
		{"relation sets reordered", []string{"a", "b"}, []string{"b", "a"}, true},
		{"relation sets different", []string{"a"}, []string{"a", "b"}, false},
		{"relation any-slice vs strings", []any{"a", "b"}, []string{"b", "a"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FieldEquals(tt.existing, tt.new); got != tt.want {
				t.Errorf("FieldEquals(%v, %v) = %v, want %v", tt.existing, tt.new, got, tt.want)
			}
		})
	}
}

func TestIsEmptyValue(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{"nil", nil, true},
		{"empty string", "", true},
		{"nonempty string", "x", false},
		{"empty slice", []string{}, true},
		{"nil slice", []string(nil), true},
		{"nonempty slice", []string{"a"}, false},
		{"zero int", 0, false},
		{"false", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isEmptyValue(tt.value); got != tt.want {
				t.Errorf("isEmptyValue(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestNormalizeDateValue(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2025-10-03T18:30:00.000Z", "2025-10-03 18:30:00"},
		{"2025-10-03 18:30:00+00:00", "2025-10-03 18:30:00"},
		{"2025-10-03 00:00:00", "2025-10-03"},
		{"2025-10-03", "2025-10-03"},
	}
	for _, tt := range tests {
		if got := normalizeDateValue(tt.in); got != tt.want {
			t.Errorf("normalizeDateValue(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
