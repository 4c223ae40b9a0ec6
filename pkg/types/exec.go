package types

import "time"

// ExecStatusKind discriminates the executor's result sum type.
type ExecStatusKind string

const (
	ExecExecuted            ExecStatusKind = "executed"
	ExecPendingConfirmation ExecStatusKind = "pending_confirmation"
	ExecCanceled            ExecStatusKind = "canceled"
	ExecRejected            ExecStatusKind = "rejected"
	ExecIgnored             ExecStatusKind = "ignored"
)

// ExecStatus reports the outcome of handing an intent to the executor.
// Policy denials travel here as Rejected/Canceled values, never as errors.
type ExecStatus struct {
	Kind        ExecStatusKind `json:"kind"`
	ID          string         `json:"id,omitempty"`
	Description string         `json:"description,omitempty"`
	Deadline    time.Time      `json:"deadline,omitzero"`
	Reason      string         `json:"reason,omitempty"`
}

func Executed(id string) ExecStatus {
	return ExecStatus{Kind: ExecExecuted, ID: id}
}

func PendingConfirmation(id, description string, deadline time.Time) ExecStatus {
	return ExecStatus{Kind: ExecPendingConfirmation, ID: id, Description: description, Deadline: deadline}
}

func Canceled(id, reason string) ExecStatus {
	return ExecStatus{Kind: ExecCanceled, ID: id, Reason: reason}
}

func Rejected(reason string) ExecStatus {
	return ExecStatus{Kind: ExecRejected, Reason: reason}
}

func ExecIgnoredStatus() ExecStatus {
	return ExecStatus{Kind: ExecIgnored}
}
