package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)
	require.Equal(t, 0.75, cfg.Intent.DeterministicThreshold)
	require.Equal(t, 0.8, cfg.Intent.LLMFallbackThreshold)
	require.Equal(t, 10*time.Second, cfg.Execution.ConfirmationTimeout())
	require.Equal(t, "commands.json", cfg.Registry.CommandsPath)
	require.Equal(t, "127.0.0.1:7071", cfg.Server.Addr)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "none", cfg.Classifier.Provider)
	require.Equal(t, "ATTENDD_API_KEY", cfg.Classifier.APIKeyEnv)
}

func TestParseOverrides(t *testing.T) {
	cfg, err := Parse([]byte(`
intent:
  deterministic_threshold: 0.9
  llm_fallback_threshold: 0.85
execution:
  confirmation_timeout_seconds: 30
  dry_run: true
classifier:
  provider: groq
  model: llama-3.3-70b-versatile
logging:
  level: debug
`))
	require.NoError(t, err)
	require.Equal(t, 0.9, cfg.Intent.DeterministicThreshold)
	require.Equal(t, 30*time.Second, cfg.Execution.ConfirmationTimeout())
	require.True(t, cfg.Execution.DryRun)
	require.Equal(t, "groq", cfg.Classifier.Provider)
	require.Equal(t, "debug", cfg.Logging.Level)
}

func TestParseUnknownProvider(t *testing.T) {
	_, err := Parse([]byte("classifier:\n  provider: openai\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "classifier provider")
}

func TestParseBadYAML(t *testing.T) {
	_, err := Parse([]byte(":\n  - ["))
	require.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attendd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  enabled: true\n  addr: 127.0.0.1:9999\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.True(t, cfg.Server.Enabled)
	require.Equal(t, "127.0.0.1:9999", cfg.Server.Addr)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestNewLoggerLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		log, err := NewLogger(LoggingConfig{Level: level})
		require.NoError(t, err, level)
		require.NotNil(t, log)
	}
	_, err := NewLogger(LoggingConfig{Level: "verbose"})
	require.Error(t, err)
}
