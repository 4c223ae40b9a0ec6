package registry

import (
	"fmt"
	"os"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

// PolicyConfig is the optional command policy file: glob patterns over
// command ids. Deny patterns exclude specs at load; force_confirmation
// patterns mark matching specs dangerous so they are always
// confirmation-gated.
type PolicyConfig struct {
	Deny              []string `yaml:"deny"`
	ForceConfirmation []string `yaml:"force_confirmation"`
}

type policyRule struct {
	pattern  string
	compiled glob.Glob
}

// Policy is a compiled PolicyConfig. A nil *Policy allows everything.
type Policy struct {
	deny  []policyRule
	force []policyRule
}

// LoadPolicy reads and compiles a policy file.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var cfg PolicyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	return CompilePolicy(cfg)
}

// CompilePolicy compiles the glob patterns. A malformed pattern fails the
// whole policy; a half-applied policy is worse than none.
func CompilePolicy(cfg PolicyConfig) (*Policy, error) {
	p := &Policy{}
	var err error
	if p.deny, err = compileRules(cfg.Deny); err != nil {
		return nil, fmt.Errorf("deny: %w", err)
	}
	if p.force, err = compileRules(cfg.ForceConfirmation); err != nil {
		return nil, fmt.Errorf("force_confirmation: %w", err)
	}
	return p, nil
}

func compileRules(patterns []string) ([]policyRule, error) {
	rules := make([]policyRule, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
		}
		rules = append(rules, policyRule{pattern: pattern, compiled: g})
	}
	return rules, nil
}

// Denied reports whether id matches a deny rule, and which.
func (p *Policy) Denied(id string) (string, bool) {
	if p == nil {
		return "", false
	}
	for _, r := range p.deny {
		if r.compiled.Match(id) {
			return r.pattern, true
		}
	}
	return "", false
}

// ForcesConfirmation reports whether id matches a force_confirmation rule.
func (p *Policy) ForcesConfirmation(id string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.force {
		if r.compiled.Match(id) {
			return true
		}
	}
	return false
}
