// Package arbiter maps a routed intent plus the raw transcript into a
// Decision. This is the single place where "is this a command at all" is
// settled: an intent that does not clear the deterministic bar here falls
// through to the informational paths and can never be escalated back.
package arbiter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/attendd/attendd/internal/text"
	"github.com/attendd/attendd/pkg/types"
)

var webKeywords = []string{
	"weather", "news", "current time", "time is", "date is",
	"today", "stock", "price of",
}

// Same interrogative list the router uses, minus "how much"/"how many"
// which only matter for match-strictness, not for answering.
var questionStarters = []string{
	"what is", "whats", "who is", "why", "how", "when", "where",
	"tell me", "explain", "calculate", "solve",
}

// Config holds the arbitration threshold.
type Config struct {
	DeterministicThreshold float64
}

// Arbiter decides what to do with one utterance.
type Arbiter struct {
	cfg Config
}

func New(cfg Config) *Arbiter {
	return &Arbiter{cfg: cfg}
}

// Decide classifies raw text given the router's intent. A command decision
// requires a command id, a command intent type, and a deterministic score
// that is both positive and at or above the threshold; a missing score
// counts as zero and is never sufficient.
func (a *Arbiter) Decide(raw string, intent types.IntentResult) types.Decision {
	norm := text.Normalize(raw)
	if norm == "" {
		return types.IgnoredDecision()
	}

	if intent.CommandID != "" {
		switch intent.Type {
		case types.IntentCommand, types.IntentDangerousCommand:
			score := intent.Score()
			if score > 0 && score >= a.cfg.DeterministicThreshold {
				return types.CommandDecision(intent, preview(intent), intent.Dangerous)
			}
		case types.IntentUnknown:
			// A command id on an unknown intent is malformed input; fall
			// through to the informational paths.
		}
	}

	trimmed := strings.TrimSpace(raw)
	if containsAny(norm, webKeywords) {
		return types.WebQueryDecision(trimmed)
	}
	if startsWithAny(norm, questionStarters) {
		return types.QuestionDecision(trimmed)
	}
	return types.QuestionDecision(trimmed)
}

// preview renders the human-readable line shown before confirmation.
func preview(intent types.IntentResult) string {
	if len(intent.Parameters) == 0 {
		return fmt.Sprintf("About to run: %s", intent.CommandID)
	}
	// Map keys marshal in sorted order, so the preview is stable.
	params, err := json.Marshal(intent.Parameters)
	if err != nil {
		return fmt.Sprintf("About to run: %s", intent.CommandID)
	}
	return fmt.Sprintf("About to run: %s %s", intent.CommandID, params)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func startsWithAny(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
