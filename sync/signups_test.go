package sync

import (
	"testing"
)

func TestSignupKey(t *testing.T) {
	if signupKey("vol1", "evt1") != "vol1|evt1" {
		t.Errorf("signupKey = %q", signupKey("vol1", "evt1"))
	}
	if signupKey("vol1", "evt1") == signupKey("vol1", "evt2") {
		t.Error("different events must yield different keys")
	}
	if signupKey("vol1", "evt1") == signupKey("vol2", "evt1") {
		t.Error("different volunteers must yield different keys")
	}
}

func TestBuildSignupData(t *testing.T) {
	row := map[string]string{
		"task":       "Chainsaw Alley",
		"slot_row":   "3",
		"start_time": "18:00",
		"end_time":   "23:30",
		"hours":      "5.5",
		"points":     "2",
		"signed_in":  "true",
		"waitlist":   "false",
		"under_18":   "true",
	}

	data := buildSignupData(row)

	if data["task"] != "Chainsaw Alley" {
		t.Errorf("task = %v", data["task"])
	}
	if data["hours"] != 5.5 {
		t.Errorf("hours = %v (%T), want float 5.5", data["hours"], data["hours"])
	}
	if data["points"] != 2 {
		t.Errorf("points = %v, want int 2", data["points"])
	}
	if data["signed_in"] != true {
		t.Errorf("signed_in = %v, want bool true", data["signed_in"])
	}
	if data["waitlist"] != false {
		t.Errorf("waitlist = %v, want bool false", data["waitlist"])
	}
	if data["under_18"] != true {
		t.Errorf("under_18 = %v, want bool true", data["under_18"])
	}
}

func TestBuildSignupData_RelationsNotSet(t *testing.T) {
	// Parent relations are resolved by the loader, never read off rows
	row := map[string]string{
		"email":      "a@example.com",
		"event_name": "Opening Night",
		"volunteer":  "bogus-id",
		"event":      "bogus-id",
	}

	data := buildSignupData(row)

	if _, ok := data["volunteer"]; ok {
		t.Error("volunteer relation must not come from row data")
	}
	if _, ok := data["event"]; ok {
		t.Error("event relation must not come from row data")
	}
}

func TestBuildSignupData_BadHoursOmitted(t *testing.T) {
	data := buildSignupData(map[string]string{"hours": "a few"})
	if _, ok := data["hours"]; ok {
		t.Error("unparseable hours should be omitted")
	}
}
