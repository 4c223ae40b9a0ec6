package types

// OutcomeKind discriminates the session manager's outcome sum type.
type OutcomeKind string

const (
	OutcomeNeedsConfirmation OutcomeKind = "needs_confirmation"
	OutcomeQuestion          OutcomeKind = "question"
	OutcomeWebQuery          OutcomeKind = "web_query"
	OutcomeIgnored           OutcomeKind = "ignored"
)

// ManagerOutcome is what the session manager hands back to the caller for
// one transcript. NeedsConfirmation discloses the request id that a later
// confirm signal must echo exactly.
type ManagerOutcome struct {
	Kind      OutcomeKind `json:"kind"`
	RequestID string      `json:"request_id,omitempty"`
	Preview   string      `json:"preview,omitempty"`
	Text      string      `json:"text,omitempty"`
}

func NeedsConfirmation(requestID, preview string) ManagerOutcome {
	return ManagerOutcome{Kind: OutcomeNeedsConfirmation, RequestID: requestID, Preview: preview}
}

func QuestionOutcome(text string) ManagerOutcome {
	return ManagerOutcome{Kind: OutcomeQuestion, Text: text}
}

func WebQueryOutcome(text string) ManagerOutcome {
	return ManagerOutcome{Kind: OutcomeWebQuery, Text: text}
}

func IgnoredOutcome() ManagerOutcome {
	return ManagerOutcome{Kind: OutcomeIgnored}
}
