// Package config loads the daemon configuration from a single yaml file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Intent     IntentConfig     `yaml:"intent"`
	Execution  ExecutionConfig  `yaml:"execution"`
	Registry   RegistryConfig   `yaml:"registry"`
	Server     ServerConfig     `yaml:"server"`
	Audit      AuditConfig      `yaml:"audit"`
	Logging    LoggingConfig    `yaml:"logging"`
	Classifier ClassifierConfig `yaml:"classifier"`
}

// IntentConfig holds the routing thresholds. A non-positive deterministic
// threshold is replaced by the router's built-in default; configuration can
// never disable the gate.
type IntentConfig struct {
	DeterministicThreshold float64 `yaml:"deterministic_threshold"`
	LLMFallbackThreshold   float64 `yaml:"llm_fallback_threshold"`
}

type ExecutionConfig struct {
	ConfirmationTimeoutSeconds int  `yaml:"confirmation_timeout_seconds"`
	DryRun                     bool `yaml:"dry_run"`
}

func (c ExecutionConfig) ConfirmationTimeout() time.Duration {
	return time.Duration(c.ConfirmationTimeoutSeconds) * time.Second
}

type RegistryConfig struct {
	CommandsPath string `yaml:"commands_path"`
	PolicyPath   string `yaml:"policy_path"`
}

type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type AuditConfig struct {
	Enabled    bool   `yaml:"enabled"`
	SQLitePath string `yaml:"sqlite_path"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// ClassifierConfig selects the fallback classification provider.
// Provider "none" keeps the daemon fully offline.
type ClassifierConfig struct {
	Provider  string `yaml:"provider"` // none | groq
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

// Load reads, parses and defaults a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse parses yaml bytes and applies defaults.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Intent.DeterministicThreshold == 0 {
		c.Intent.DeterministicThreshold = 0.75
	}
	if c.Intent.LLMFallbackThreshold == 0 {
		c.Intent.LLMFallbackThreshold = 0.8
	}
	if c.Execution.ConfirmationTimeoutSeconds <= 0 {
		c.Execution.ConfirmationTimeoutSeconds = 10
	}
	if c.Registry.CommandsPath == "" {
		c.Registry.CommandsPath = "commands.json"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:7071"
	}
	if c.Audit.SQLitePath == "" {
		c.Audit.SQLitePath = "attendd.db"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Classifier.Provider == "" {
		c.Classifier.Provider = "none"
	}
	if c.Classifier.APIKeyEnv == "" {
		c.Classifier.APIKeyEnv = "ATTENDD_API_KEY"
	}
	if c.Classifier.TimeoutMS <= 0 {
		c.Classifier.TimeoutMS = 10000
	}
}

func (c *Config) validate() error {
	switch c.Classifier.Provider {
	case "none", "groq":
	default:
		return fmt.Errorf("unknown classifier provider %q", c.Classifier.Provider)
	}
	return nil
}
