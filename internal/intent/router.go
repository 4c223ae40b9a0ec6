// Package intent scores transcripts against the command registry and
// falls back to an injected classifier when deterministic matching fails.
package intent

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/attendd/attendd/internal/text"
	"github.com/attendd/attendd/pkg/types"
)

// Scoring constants. These are load-bearing for behavioral compatibility;
// do not retune them without an explicit decision.
const (
	scoreExactExample         = 1.0
	scoreExampleSubstring     = 0.85
	scoreDescriptionSubstring = 0.8
	overlapWeight             = 0.55

	// Question-like inputs must clear a stricter bar so informational
	// questions never run a command through incidental keyword overlap.
	questionStrictnessBump = 0.20
	questionStrictnessCap  = 0.95

	// Shared-token floors for overlap scoring. One-word overlaps are
	// accidental more often than not.
	minSharedTokens      = 2
	minSharedTokensShort = 1
	shortInputTokens     = 3

	// DefaultDeterministicThreshold backstops a zero or negative configured
	// threshold; the gate must never be disabled by configuration.
	DefaultDeterministicThreshold = 0.75
)

// sensitiveKeywords must appear literally in the utterance before a
// sensitive command id is even scored.
var sensitiveKeywords = []string{
	"lock", "logout", "log out", "sign out", "suspend",
	"shutdown", "shut down", "reboot", "restart",
}

var questionStarters = []string{
	"what is", "whats", "who is", "why", "how", "when", "where",
	"tell me", "explain", "calculate", "solve", "how much", "how many",
}

// Config holds the router thresholds.
type Config struct {
	DeterministicThreshold float64
	LLMFallbackThreshold   float64
}

// Classification is what a Classifier produces for one utterance.
type Classification struct {
	CommandID  string         `json:"command_id"`
	Confidence float64        `json:"confidence"`
	Parameters map[string]any `json:"parameters"`
}

// Classifier is the external classification capability the router falls
// back to. The router holds this abstraction only, never a provider type.
type Classifier interface {
	Classify(ctx context.Context, transcript string, commands []types.CommandSpec) (Classification, error)
}

// NopClassifier never matches; it keeps the router fully offline.
type NopClassifier struct{}

func (NopClassifier) Classify(context.Context, string, []types.CommandSpec) (Classification, error) {
	return Classification{}, nil
}

// Router routes transcripts to intents.
type Router struct {
	cfg        Config
	commands   []types.CommandSpec
	classifier Classifier
	log        *zap.Logger
}

func NewRouter(cfg Config, commands []types.CommandSpec, classifier Classifier, log *zap.Logger) *Router {
	if classifier == nil {
		classifier = NopClassifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{cfg: cfg, commands: commands, classifier: classifier, log: log}
}

// Route matches raw transcript text against the registry. Acceptance needs
// score > 0 and score >= the effective threshold; question-like inputs need
// min(threshold+0.20, 0.95). Anything below falls through to the classifier,
// whose results never carry a deterministic score.
func (r *Router) Route(ctx context.Context, raw string) types.IntentResult {
	norm := text.Normalize(raw)
	threshold := r.cfg.DeterministicThreshold
	if threshold <= 0 {
		threshold = DefaultDeterministicThreshold
	}

	var (
		best     float64
		bestSpec *types.CommandSpec
	)
	for i := range r.commands {
		score := scoreCommand(norm, &r.commands[i])
		if bestSpec == nil || score > best {
			best = score
			bestSpec = &r.commands[i]
		}
	}

	if bestSpec != nil && best > 0 && best >= threshold {
		if questionLike(norm, raw) {
			strict := threshold + questionStrictnessBump
			if strict > questionStrictnessCap {
				strict = questionStrictnessCap
			}
			if best < strict {
				r.log.Debug("question-like input, deterministic match rejected",
					zap.String("command_id", bestSpec.ID),
					zap.Float64("score", best),
					zap.Float64("strict", strict))
				return r.classify(ctx, raw)
			}
		}
		r.log.Debug("deterministic match",
			zap.String("command_id", bestSpec.ID),
			zap.Float64("score", best),
			zap.Float64("threshold", threshold))
		return r.resultFor(bestSpec, norm, best)
	}
	if bestSpec != nil {
		r.log.Debug("no deterministic match",
			zap.String("best_id", bestSpec.ID),
			zap.Float64("score", best))
	}
	return r.classify(ctx, raw)
}

func (r *Router) resultFor(spec *types.CommandSpec, norm string, score float64) types.IntentResult {
	s := score
	intentType := types.IntentCommand
	if spec.Dangerous {
		intentType = types.IntentDangerousCommand
	}
	return types.IntentResult{
		Type:                 intentType,
		CommandID:            spec.ID,
		Parameters:           extractParameters(spec.ID, norm),
		DeterministicScore:   &s,
		Dangerous:            spec.Dangerous,
		RequiresConfirmation: spec.Dangerous || SensitiveCommandID(spec.ID),
	}
}

func (r *Router) classify(ctx context.Context, raw string) types.IntentResult {
	cls, err := r.classifier.Classify(ctx, raw, r.commands)
	if err != nil {
		r.log.Warn("classifier failed", zap.Error(err))
		return types.UnknownIntent()
	}
	if cls.CommandID == "" || cls.Confidence < r.cfg.LLMFallbackThreshold {
		return types.UnknownIntent()
	}
	dangerous := false
	for i := range r.commands {
		if r.commands[i].ID == cls.CommandID {
			dangerous = r.commands[i].Dangerous
			break
		}
	}
	intentType := types.IntentCommand
	if dangerous {
		intentType = types.IntentDangerousCommand
	}
	params := cls.Parameters
	if params == nil {
		params = map[string]any{}
	}
	return types.IntentResult{
		Type:                 intentType,
		CommandID:            cls.CommandID,
		Parameters:           params,
		DeterministicScore:   nil,
		Dangerous:            dangerous,
		RequiresConfirmation: dangerous || SensitiveCommandID(cls.CommandID),
	}
}

// scoreCommand computes the deterministic match score for one spec against
// normalized input. The final score is the maximum across the rules.
func scoreCommand(norm string, spec *types.CommandSpec) float64 {
	if SensitiveCommandID(spec.ID) && !containsAny(norm, sensitiveKeywords) {
		return 0
	}

	inputTokens := strings.Fields(norm)
	shortInput := len(inputTokens) <= shortInputTokens
	inputSet := tokenSet(inputTokens)

	var score float64
	for _, ex := range spec.Examples {
		e := text.Normalize(ex)
		if e == "" {
			continue
		}
		if e == norm {
			return scoreExactExample
		}
		if strings.Contains(norm, e) {
			score = max(score, scoreExampleSubstring)
		}
	}
	desc := text.Normalize(spec.Description)
	if desc != "" && strings.Contains(norm, desc) {
		score = max(score, scoreDescriptionSubstring)
	}

	var bestJaccard float64
	var maxShared int
	candidates := append(append([]string{}, spec.Examples...), spec.Description)
	for _, c := range candidates {
		cset := tokenSet(strings.Fields(text.Normalize(c)))
		shared := intersectionSize(inputSet, cset)
		if shared > maxShared {
			maxShared = shared
		}
		if union := len(inputSet) + len(cset) - shared; union > 0 {
			bestJaccard = max(bestJaccard, float64(shared)/float64(union))
		}
	}
	minShared := minSharedTokens
	if shortInput {
		minShared = minSharedTokensShort
	}
	if bestJaccard > 0 && maxShared >= minShared {
		score = max(score, overlapWeight*bestJaccard)
	}
	return score
}

// questionLike reports whether the utterance is an obvious informational
// question: it starts with an interrogative phrase, or the raw transcript
// ends with a question mark (normalization strips the '?').
func questionLike(norm, raw string) bool {
	t := strings.TrimSpace(norm)
	if t == "" {
		return false
	}
	for _, s := range questionStarters {
		if strings.HasPrefix(t, s) {
			return true
		}
	}
	return strings.HasSuffix(strings.TrimSpace(raw), "?")
}

// SensitiveCommandID reports whether a command id heuristically affects
// session or security state. Such commands are always confirmation-gated.
func SensitiveCommandID(id string) bool {
	id = strings.ToLower(id)
	for _, k := range []string{"lock", "logout", "suspend", "shutdown", "reboot"} {
		if strings.Contains(id, k) {
			return true
		}
	}
	return false
}

// extractParameters pulls the first integer out of the utterance and maps
// it by command id convention: brightness/volume ids take "value", up/down
// ids take "delta".
func extractParameters(id, norm string) map[string]any {
	n, ok := text.FirstInt(norm)
	if !ok {
		return map[string]any{}
	}
	switch {
	case strings.Contains(id, "brightness") || strings.Contains(id, "volume"):
		return map[string]any{"value": n}
	case strings.Contains(id, "up") || strings.Contains(id, "down"):
		return map[string]any{"delta": n}
	}
	return map[string]any{}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func intersectionSize(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for t := range a {
		if _, ok := b[t]; ok {
			n++
		}
	}
	return n
}
