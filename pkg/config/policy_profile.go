package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kalamgit143/validAIte-sub004/pkg/policy"
)

// PolicyProfile is an organization's rule pack as written by operators.
type PolicyProfile struct {
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description,omitempty"`
	Version     string                 `yaml:"version"`
	Rules       []policy.ConditionRule `yaml:"rules"`
}

// RulePack converts the profile into the engine's input.
func (p *PolicyProfile) RulePack() policy.RulePack {
	return policy.RulePack{Version: p.Version, Rules: p.Rules}
}

// LoadPolicyProfile reads a YAML policy profile. Unknown keys are rejected so
// that a misspelled rule field never silently disables a rule.
func LoadPolicyProfile(path string) (*PolicyProfile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load policy profile: %w", err)
	}
	defer func() { _ = f.Close() }()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	var profile PolicyProfile
	if err := dec.Decode(&profile); err != nil {
		return nil, fmt.Errorf("parse policy profile %s: %w", filepath.Base(path), err)
	}
	if profile.Version == "" {
		return nil, fmt.Errorf("policy profile %s: version is required", filepath.Base(path))
	}
	if profile.Name == "" {
		profile.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &profile, nil
}
