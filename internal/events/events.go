// Package events defines the daemon's audit event stream. Events are a
// record, never a control channel: no arbitration outcome may depend on
// whether an event was persisted.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Type identifies the kind of event.
type Type string

const (
	TypeWake                  Type = "wake"
	TypeTranscript            Type = "transcript"
	TypeDecision              Type = "decision"
	TypeConfirmationRequested Type = "confirmation_requested"
	TypeConfirmed             Type = "confirmed"
	TypeCanceled              Type = "canceled"
	TypeConfirmationTimeout   Type = "confirmation_timeout"
	TypeExecuted              Type = "executed"
	TypeRejected              Type = "rejected"
	TypeRegistrySkip          Type = "registry_skip"
)

// Event is one audit record.
type Event struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"ts"`
	Type      Type           `json:"type"`
	CommandID string         `json:"command_id,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Sink receives events. Implementations must not block indefinitely.
type Sink interface {
	AppendEvent(ctx context.Context, ev Event) error
}

// Broker stamps and fans events out to its sinks. A nil *Broker is valid
// and drops everything, so emitting call sites never nil-check.
type Broker struct {
	sinks []Sink
	log   *zap.Logger
}

func NewBroker(log *zap.Logger, sinks ...Sink) *Broker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Broker{sinks: sinks, log: log}
}

// Emit assigns an id and timestamp if unset and appends to every sink.
// Sink failures are logged and swallowed.
func (b *Broker) Emit(ev Event) {
	if b == nil {
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	for _, s := range b.sinks {
		if err := s.AppendEvent(context.Background(), ev); err != nil {
			b.log.Warn("event sink append failed",
				zap.String("event_type", string(ev.Type)),
				zap.Error(err))
		}
	}
}
