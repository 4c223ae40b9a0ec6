// Package registry loads the command allow-list and is the only component
// permitted to admit a command template into the system. Validation is
// fail-closed: a spec that cannot be fully trusted is dropped, never loaded
// in a degraded form. After New returns, the registry is read-only.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/attendd/attendd/internal/events"
	"github.com/attendd/attendd/pkg/types"
)

// forbiddenSequences are shell constructs a template may never contain.
// Execution is direct argv, never a shell, but templates are rejected at
// the source as well so an unsafe spec can never even be matched.
var forbiddenSequences = []string{"|", "&", ";", ">", "<", "`", "$(", "${", `\`, `"`, "'"}

// Registry is the immutable id -> spec mapping.
type Registry struct {
	byID  map[string]types.CommandSpec
	order []string
}

// Load reads a JSON array of command specs from path and builds a registry,
// applying pol (which may be nil) on the way in.
func Load(path string, pol *Policy, emit *events.Broker, log *zap.Logger) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read commands file: %w", err)
	}
	var specs []types.CommandSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("parse commands file %s: %w", path, err)
	}
	return New(specs, pol, emit, log), nil
}

// New builds a registry from specs. Individually invalid specs (unsafe
// template, empty or duplicate id, policy-denied) are skipped with a
// warning; the rest of the registry stays usable.
func New(specs []types.CommandSpec, pol *Policy, emit *events.Broker, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{byID: make(map[string]types.CommandSpec, len(specs))}
	for _, spec := range specs {
		if reason := admit(spec, pol, r.byID); reason != "" {
			log.Warn("skipping command spec",
				zap.String("command_id", spec.ID),
				zap.String("reason", reason))
			emit.Emit(events.Event{
				Type:      events.TypeRegistrySkip,
				CommandID: spec.ID,
				Fields:    map[string]any{"reason": reason},
			})
			continue
		}
		if pol.ForcesConfirmation(spec.ID) {
			spec.Dangerous = true
		}
		r.byID[spec.ID] = spec
		r.order = append(r.order, spec.ID)
	}
	return r
}

func admit(spec types.CommandSpec, pol *Policy, existing map[string]types.CommandSpec) string {
	if spec.ID == "" {
		return "empty id"
	}
	if _, dup := existing[spec.ID]; dup {
		return "duplicate id"
	}
	if err := ValidateTemplate(spec.Template); err != nil {
		return err.Error()
	}
	if rule, denied := pol.Denied(spec.ID); denied {
		return fmt.Sprintf("denied by policy rule %q", rule)
	}
	return ""
}

// ValidateTemplate rejects templates containing shell metacharacter
// sequences or any '$' (no environment expansion is ever permitted; use
// absolute paths instead).
func ValidateTemplate(tpl string) error {
	if strings.TrimSpace(tpl) == "" {
		return fmt.Errorf("empty template")
	}
	for _, seq := range forbiddenSequences {
		if strings.Contains(tpl, seq) {
			return fmt.Errorf("template contains unsafe shell construct %q", seq)
		}
	}
	if strings.Contains(tpl, "$") {
		return fmt.Errorf("template contains environment variable; use an absolute path")
	}
	return nil
}

// Get looks up a spec by id.
func (r *Registry) Get(id string) (types.CommandSpec, bool) {
	spec, ok := r.byID[id]
	return spec, ok
}

// List returns the loaded specs in file order.
func (r *Registry) List() []types.CommandSpec {
	out := make([]types.CommandSpec, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Len reports how many commands were admitted.
func (r *Registry) Len() int { return len(r.byID) }
