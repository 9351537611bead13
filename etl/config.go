// Package etl normalizes raw portal exports into the canonical schema.
package etl

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// DefaultConfigPath is where the mapping file lives unless overridden
const DefaultConfigPath = "etl_config.yaml"

// Config is the declarative ETL configuration: per-report header mappings
// plus the static group list.
type Config struct {
	// HeaderMappings maps report kind -> original header -> canonical field
	HeaderMappings map[string]map[string]string `mapstructure:"header_mapping"`
	// StaticGroups is the hand-maintained group list for `load groups --config`
	StaticGroups []StaticGroup `mapstructure:"static_groups"`
}

// StaticGroup is one entry of the static group list
type StaticGroup struct {
	Name   string `mapstructure:"name"`
	Points int    `mapstructure:"points"`
}

// LoadConfig reads the YAML mapping file
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read etl config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse etl config %s: %w", path, err)
	}

	if len(cfg.HeaderMappings) == 0 {
		return nil, fmt.Errorf("etl config %s has no header_mapping section", path)
	}

	for i := range cfg.StaticGroups {
		cfg.StaticGroups[i].Name = NormalizeGroupName(cfg.StaticGroups[i].Name)
		if cfg.StaticGroups[i].Points == 0 {
			cfg.StaticGroups[i].Points = 1
		}
	}

	return &cfg, nil
}

// MappingFor returns the header mapping for a report kind
func (c *Config) MappingFor(kind string) (map[string]string, error) {
	mapping, ok := c.HeaderMappings[kind]
	if !ok {
		return nil, fmt.Errorf("no header mapping for report kind %q", kind)
	}
	return mapping, nil
}

// NormalizeGroupName folds a group name to its canonical form: trimmed,
// lower-cased, inner whitespace collapsed to single underscores.
func NormalizeGroupName(name string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(name)))
	return strings.Join(fields, "_")
}
