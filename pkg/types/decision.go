package types

// DecisionKind discriminates the Decision sum type. Consumers switch
// exhaustively over it; a new kind is a compile-time review point at
// every switch with a default-panic arm.
type DecisionKind string

const (
	DecisionIgnored  DecisionKind = "ignored"
	DecisionCommand  DecisionKind = "command"
	DecisionQuestion DecisionKind = "question"
	DecisionWebQuery DecisionKind = "web_query"
)

// Decision is the arbiter's verdict for one utterance. It is transient:
// the session manager consumes it immediately. Construct via the
// *Decision helpers, never as a bare literal.
type Decision struct {
	Kind DecisionKind

	// Command fields.
	Intent               IntentResult
	Preview              string
	RequiresConfirmation bool

	// Question / WebQuery payload.
	Text string
}

func IgnoredDecision() Decision {
	return Decision{Kind: DecisionIgnored}
}

func CommandDecision(intent IntentResult, preview string, requiresConfirmation bool) Decision {
	return Decision{
		Kind:                 DecisionCommand,
		Intent:               intent,
		Preview:              preview,
		RequiresConfirmation: requiresConfirmation,
	}
}

func QuestionDecision(text string) Decision {
	return Decision{Kind: DecisionQuestion, Text: text}
}

func WebQueryDecision(text string) Decision {
	return Decision{Kind: DecisionWebQuery, Text: text}
}
