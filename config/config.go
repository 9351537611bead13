// Package config loads process configuration from the environment, with
// an optional .env file for local development. Portal credentials stay
// in the environment and are read by the portal package itself.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Load reads a .env file from the working directory when one exists.
// Variables already set in the environment win over file values.
func Load() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	if err := godotenv.Load(); err != nil {
		slog.Warn("Failed to load .env file", "error", err)
	}
}

// GetEnv returns the environment value for key, or fallback when unset
// or empty
func GetEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// GetEnvBool parses a boolean environment value, accepting the usual
// true/false spellings plus on/off
func GetEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return fallback
	}
	switch value {
	case "on":
		return true
	case "off":
		return false
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		slog.Warn("Invalid boolean environment value", "key", key, "value", value)
		return fallback
	}
	return parsed
}

// GetEnvInt parses an integer environment value
func GetEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("Invalid integer environment value", "key", key, "value", value)
		return fallback
	}
	return parsed
}

// Pipeline holds the filesystem and ETL settings shared by the CLI
// commands and the scheduler
type Pipeline struct {
	ConfigPath string
	OutDir     string
	LockDir    string
	LogDir     string
	Headless   bool
}

// PipelineFromEnv builds the pipeline settings from the environment
func PipelineFromEnv() Pipeline {
	return Pipeline{
		ConfigPath: GetEnv("ETL_CONFIG", "etl_config.yaml"),
		OutDir:     GetEnv("PIPELINE_OUT_DIR", "pb_data/exports"),
		LockDir:    GetEnv("PIPELINE_LOCK_DIR", "pb_data/locks"),
		LogDir:     GetEnv("PIPELINE_LOG_DIR", "pb_data/logs"),
		Headless:   GetEnvBool("PIPELINE_HEADLESS", true),
	}
}
