package types

// CommandSpec is one entry of the command registry, loaded once at startup
// and immutable afterwards. Parameters maps a parameter name to its spec
// string ("int" or "int <min>-<max>"). Template placeholders look like
// {name} and may only reference declared parameters.
type CommandSpec struct {
	ID          string            `json:"id"`
	Description string            `json:"description"`
	Examples    []string          `json:"examples"`
	Dangerous   bool              `json:"dangerous"`
	Parameters  map[string]string `json:"parameters"`
	Template    string            `json:"shell_command_template"`
}
