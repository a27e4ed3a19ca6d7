// Package dlp masks identifiers in prediction outcomes before they leave the
// process (event bus, audit log).
package dlp

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Rule struct {
	Name    string `yaml:"name" json:"name"`
	Type    string `yaml:"type" json:"type"`
	Pattern string `yaml:"pattern" json:"pattern"`
	Mask    string `yaml:"mask" json:"mask"`
	Enabled bool   `yaml:"enabled" json:"enabled"`
}

type RulesConfig struct {
	Rules []Rule `yaml:"rules" json:"rules"`

	// LiteralMask replaces caller supplied literals such as the patient name.
	LiteralMask string `yaml:"literal_mask" json:"literal_mask"`
}

// LoadRules reads a YAML rule file. An empty path yields the built-in rules.
func LoadRules(path string) (RulesConfig, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultRules(), err
	}

	var cfg RulesConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return RulesConfig{}, fmt.Errorf("parse dlp rules %s: %w", path, err)
	}
	if len(cfg.Rules) == 0 {
		return RulesConfig{}, errors.New("no DLP rules configured")
	}
	if cfg.LiteralMask == "" {
		cfg.LiteralMask = defaultLiteralMask
	}
	return cfg, nil
}

const defaultLiteralMask = "[REDACTED]"

func DefaultRules() RulesConfig {
	return RulesConfig{
		LiteralMask: defaultLiteralMask,
		Rules: []Rule{
			{Name: "SSN", Type: "ssn", Pattern: `\b\d{3}-\d{2}-\d{4}\b`, Mask: "***-**-****", Enabled: true},
			{Name: "DOB", Type: "dob", Pattern: `\b\d{1,2}/\d{1,2}/\d{4}\b`, Mask: "##/##/####", Enabled: true},
			{Name: "Email", Type: "email", Pattern: `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`, Mask: "***@***", Enabled: true},
			{Name: "Phone", Type: "phone", Pattern: `\b\d{3}-\d{3}-\d{4}\b|\(\d{3}\)\s?\d{3}-\d{4}\b`, Mask: "(***) ***-****", Enabled: true},
			{Name: "MRN", Type: "mrn", Pattern: `\bMRN[:#\s]*\d{6,10}\b`, Mask: "MRN ********", Enabled: true},
		},
	}
}
