package types

// IntentType classifies the result of routing an utterance.
type IntentType string

const (
	IntentCommand          IntentType = "command"
	IntentDangerousCommand IntentType = "dangerous_command"
	IntentUnknown          IntentType = "unknown_intent"
)

// IntentResult is produced once per utterance by the router and never
// mutated afterwards. DeterministicScore is set only for results matched
// against the registry; classifier-sourced results always carry nil, which
// structurally bars them from execution.
type IntentResult struct {
	Type                 IntentType     `json:"intent_type"`
	CommandID            string         `json:"command_id,omitempty"`
	Parameters           map[string]any `json:"parameters,omitempty"`
	DeterministicScore   *float64       `json:"deterministic_score,omitempty"`
	Dangerous            bool           `json:"dangerous"`
	RequiresConfirmation bool           `json:"requires_confirmation"`
}

// UnknownIntent is the fail-closed routing result.
func UnknownIntent() IntentResult {
	return IntentResult{Type: IntentUnknown, Parameters: map[string]any{}}
}

// Score returns the deterministic score, defaulting to 0 when absent.
func (r IntentResult) Score() float64 {
	if r.DeterministicScore == nil {
		return 0
	}
	return *r.DeterministicScore
}
