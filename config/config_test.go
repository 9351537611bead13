package config

import "testing"

func TestGetEnv(t *testing.T) {
	t.Setenv("HAUNTSYNC_TEST_STRING", "portal")
	if got := GetEnv("HAUNTSYNC_TEST_STRING", "fallback"); got != "portal" {
		t.Errorf("GetEnv = %q, want portal", got)
	}
	if got := GetEnv("HAUNTSYNC_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("GetEnv = %q, want fallback", got)
	}

	t.Setenv("HAUNTSYNC_TEST_EMPTY", "")
	if got := GetEnv("HAUNTSYNC_TEST_EMPTY", "fallback"); got != "fallback" {
		t.Errorf("GetEnv on empty = %q, want fallback", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value    string
		fallback bool
		want     bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"on", false, true},
		{"TRUE", false, true},
		{"false", true, false},
		{"0", true, false},
		{"off", true, false},
		{"", true, true},
		{"", false, false},
		{"maybe", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.value+"/fallback", func(t *testing.T) {
			t.Setenv("HAUNTSYNC_TEST_BOOL", tt.value)
			if got := GetEnvBool("HAUNTSYNC_TEST_BOOL", tt.fallback); got != tt.want {
				t.Errorf("GetEnvBool(%q, %v) = %v, want %v", tt.value, tt.fallback, got, tt.want)
			}
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("HAUNTSYNC_TEST_INT", "42")
	if got := GetEnvInt("HAUNTSYNC_TEST_INT", 7); got != 42 {
		t.Errorf("GetEnvInt = %d, want 42", got)
	}

	t.Setenv("HAUNTSYNC_TEST_INT", "not a number")
	if got := GetEnvInt("HAUNTSYNC_TEST_INT", 7); got != 7 {
		t.Errorf("GetEnvInt on junk = %d, want fallback 7", got)
	}
}

func TestPipelineFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"ETL_CONFIG", "PIPELINE_OUT_DIR", "PIPELINE_LOCK_DIR", "PIPELINE_LOG_DIR", "PIPELINE_HEADLESS"} {
		t.Setenv(key, "")
	}

	p := PipelineFromEnv()
	if p.ConfigPath != "etl_config.yaml" {
		t.Errorf("ConfigPath = %q", p.ConfigPath)
	}
	if p.OutDir != "pb_data/exports" {
		t.Errorf("OutDir = %q", p.OutDir)
	}
	if !p.Headless {
		t.Error("Headless should default to true")
	}
}

func TestPipelineFromEnv_Overrides(t *testing.T) {
	t.Setenv("ETL_CONFIG", "/etc/hauntsync/etl.yaml")
	t.Setenv("PIPELINE_HEADLESS", "false")

	p := PipelineFromEnv()
	if p.ConfigPath != "/etc/hauntsync/etl.yaml" {
		t.Errorf("ConfigPath = %q", p.ConfigPath)
	}
	if p.Headless {
		t.Error("Headless override not applied")
	}
}
