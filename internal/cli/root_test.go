package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testCommandsJSON = `[
  {
    "id": "brightness_set",
    "description": "set screen brightness",
    "examples": ["set brightness to 50"],
    "parameters": {"value": "int 0-100"},
    "shell_command_template": "brightnessctl set {value}%"
  },
  {
    "id": "lock_screen",
    "description": "lock the screen",
    "examples": ["lock the screen"],
    "shell_command_template": "loginctl lock-session"
  }
]`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	commandsPath := filepath.Join(dir, "commands.json")
	require.NoError(t, os.WriteFile(commandsPath, []byte(testCommandsJSON), 0o644))

	configPath := filepath.Join(dir, "attendd.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(
		"registry:\n  commands_path: "+commandsPath+"\n"), 0o644))
	return configPath
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRoot("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	configPath := writeTestConfig(t)
	out, err := runCommand(t, "validate", "--config", configPath)
	require.NoError(t, err)
	require.Contains(t, out, "2 admitted")
}

func TestValidateMissingCommandsFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "attendd.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(
		"registry:\n  commands_path: "+filepath.Join(dir, "nope.json")+"\n"), 0o644))

	_, err := runCommand(t, "validate", "--config", configPath)
	require.Error(t, err)
}

func TestValidateEmptyRegistry(t *testing.T) {
	dir := t.TempDir()
	commandsPath := filepath.Join(dir, "commands.json")
	require.NoError(t, os.WriteFile(commandsPath, []byte("[]"), 0o644))
	configPath := filepath.Join(dir, "attendd.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(
		"registry:\n  commands_path: "+commandsPath+"\n"), 0o644))

	_, err := runCommand(t, "validate", "--config", configPath)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no valid specs")
}

func TestCommandsCommand(t *testing.T) {
	configPath := writeTestConfig(t)
	out, err := runCommand(t, "commands", "--config", configPath)
	require.NoError(t, err)
	require.Contains(t, out, "brightness_set")
	require.Contains(t, out, "lock_screen")
}

func TestRouteCommandMatch(t *testing.T) {
	configPath := writeTestConfig(t)
	out, err := runCommand(t, "route", "--config", configPath, "set", "brightness", "to", "50")
	require.NoError(t, err)

	var res struct {
		Intent    string  `json:"intent"`
		CommandID string  `json:"command_id"`
		Score     float64 `json:"score"`
		Decision  string  `json:"decision"`
		Preview   string  `json:"preview"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Equal(t, "command", res.Decision)
	require.Equal(t, "brightness_set", res.CommandID)
	require.Equal(t, 1.0, res.Score)
	require.Contains(t, res.Preview, "About to run: brightness_set")
}

func TestRouteQuestion(t *testing.T) {
	configPath := writeTestConfig(t)
	out, err := runCommand(t, "route", "--config", configPath, "what", "is", "the", "capital", "of", "france")
	require.NoError(t, err)
	require.Contains(t, out, `"decision": "question"`)
}

func TestLoadConfigDefaultWhenAbsent(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	cfg, err := loadConfig("")
	require.NoError(t, err)
	require.Equal(t, "commands.json", cfg.Registry.CommandsPath)
}
