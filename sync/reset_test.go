package sync

import (
	"bytes"
	"strings"
	"testing"
)

func TestConfirmReset_YesFlag(t *testing.T) {
	var out bytes.Buffer
	ok, err := ConfirmReset(strings.NewReader(""), &out, false, true)
	if err != nil {
		t.Fatalf("ConfirmReset: %v", err)
	}
	if !ok {
		t.Error("--yes should confirm without prompting")
	}
	if out.Len() != 0 {
		t.Error("--yes should not print a prompt")
	}
}

func TestConfirmReset_NonInteractiveWithoutYes(t *testing.T) {
	var out bytes.Buffer
	ok, err := ConfirmReset(strings.NewReader(""), &out, false, false)
	if err == nil {
		t.Fatal("non-interactive input without --yes must refuse")
	}
	if ok {
		t.Error("refusal must not confirm")
	}
}

func TestConfirmReset_InteractivePrompt(t *testing.T) {
	tests := []struct {
		answer string
		want   bool
	}{
		{"y\n", true},
		{"Y\n", true},
		{"yes\n", true},
		{"n\n", false},
		{"no\n", false},
		{"\n", false},
		{"", false}, // EOF
	}

	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			var out bytes.Buffer
			ok, err := ConfirmReset(strings.NewReader(tt.answer), &out, true, false)
			if err != nil {
				t.Fatalf("ConfirmReset: %v", err)
			}
			if ok != tt.want {
				t.Errorf("answer %q confirmed = %v, want %v", tt.answer, ok, tt.want)
			}
			if !strings.Contains(out.String(), "Continue?") {
				t.Error("interactive path should print a prompt")
			}
		})
	}
}

func TestResetOrder(t *testing.T) {
	// Join and snapshot rows must clear before the entities they reference
	indexOf := func(name string) int {
		for i, c := range resetOrder {
			if c == name {
				return i
			}
		}
		t.Fatalf("collection %s missing from reset order", name)
		return -1
	}

	if indexOf("event_signups") > indexOf("volunteers") {
		t.Error("event_signups must clear before volunteers")
	}
	if indexOf("event_signups") > indexOf("events") {
		t.Error("event_signups must clear before events")
	}
	if indexOf("volunteers") > indexOf("groups") {
		t.Error("volunteers must clear before groups they reference")
	}
}
