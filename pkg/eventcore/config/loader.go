package config

// File loading for the event subsystem. Deployments normally drive the
// subsystem through environment flags (FromEnv); files exist for local
// development and tests, where a yaml snippet is easier to keep in
// version control than a dozen env vars.

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FromFile reads a config file into a Config, choosing the parser from
// the file extension. Accepts .yaml, .yml, and .json.
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	default:
		return Config{}, fmt.Errorf("unsupported config file extension: %s", filepath.Ext(path))
	}
}

// FromYAML parses a YAML document into a Config.
func FromYAML(data []byte) (Config, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return New(m), nil
}

// FromJSON parses a JSON document into a Config.
func FromJSON(data []byte) (Config, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return New(m), nil
}

// SettingsFromFile resolves Settings straight from a config file:
// load, apply defaults for missing keys, then normalize. The returned
// warnings are the normalization corrections, which callers should
// log the way System does for env-derived settings.
func SettingsFromFile(path string) (Settings, []string, error) {
	cfg, err := FromFile(path)
	if err != nil {
		return Settings{}, nil, err
	}
	s := FromConfig(cfg)
	warnings := s.Normalize()
	return s, warnings, nil
}
