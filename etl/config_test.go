package etl

import (
	"os"
	"path/filepath"
	"testing"
)

const testConfigYAML = `header_mapping:
  volunteers:
    "Email": email
    "First Name": first_name
    "Last Name": last_name
  events:
    "Event": name
    "Date": date

static_groups:
  - name: "Makeup Crew"
    points: 2
  - name: actors
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "etl_config.yaml")
	if err := os.WriteFile(path, []byte(testConfigYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeTestConfig(t))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	mapping, err := cfg.MappingFor("volunteers")
	if err != nil {
		t.Fatalf("MappingFor: %v", err)
	}
	if mapping["Email"] != "email" {
		t.Errorf("mapping[Email] = %q, want email", mapping["Email"])
	}
	if mapping["First Name"] != "first_name" {
		t.Errorf("mapping[First Name] = %q", mapping["First Name"])
	}

	if _, err := cfg.MappingFor("phantoms"); err == nil {
		t.Error("expected error for unknown report kind")
	}
}

func TestLoadConfig_StaticGroups(t *testing.T) {
	cfg, err := LoadConfig(writeTestConfig(t))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if len(cfg.StaticGroups) != 2 {
		t.Fatalf("StaticGroups = %d, want 2", len(cfg.StaticGroups))
	}

	// Names normalized, zero points defaulted to 1
	if cfg.StaticGroups[0].Name != "makeup_crew" {
		t.Errorf("group 0 name = %q, want makeup_crew", cfg.StaticGroups[0].Name)
	}
	if cfg.StaticGroups[0].Points != 2 {
		t.Errorf("group 0 points = %d, want 2", cfg.StaticGroups[0].Points)
	}
	if cfg.StaticGroups[1].Points != 1 {
		t.Errorf("group 1 points = %d, want default 1", cfg.StaticGroups[1].Points)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadConfig_NoMappingSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etl_config.yaml")
	if err := os.WriteFile(path, []byte("static_groups: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for config without header_mapping")
	}
}

func TestNormalizeGroupName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Makeup Crew", "makeup_crew"},
		{"  Set   Design ", "set_design"},
		{"ACTORS", "actors"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeGroupName(tt.in); got != tt.want {
			t.Errorf("NormalizeGroupName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
