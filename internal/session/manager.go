// Package session owns the conversational state machine. All transitions
// go through one mutex, which is what makes the pending-command invariants
// sound: at most one command is ever awaiting confirmation, and a confirm
// signal must echo the exact request id that was disclosed for it.
package session

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/attendd/attendd/internal/arbiter"
	"github.com/attendd/attendd/internal/events"
	"github.com/attendd/attendd/pkg/types"
)

// State is the manager's position in the wake/listen/decide/confirm/respond
// cycle. There is no terminal state.
type State int

const (
	StateIdle State = iota
	StateListening
	StateDeciding
	StateConfirming
	StateResponding
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateDeciding:
		return "deciding"
	case StateConfirming:
		return "confirming"
	case StateResponding:
		return "responding"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ConfirmationToken correlates a confirm signal with a disclosed pending
// command. It carries no authority of its own and its request id is not
// exported; the only way to obtain one is ConfirmationToken() while a
// command is genuinely pending.
type ConfirmationToken struct {
	requestID string
}

// PendingCommand is the snapshot held while state == StateConfirming.
type PendingCommand struct {
	RequestID string
	Intent    types.IntentResult
	Preview   string
	Dangerous bool
}

// Manager is the confirmation state machine.
type Manager struct {
	mu      sync.Mutex
	state   State
	pending *PendingCommand
	nonce   uint64

	arb  *arbiter.Arbiter
	emit *events.Broker
	log  *zap.Logger
}

func NewManager(arb *arbiter.Arbiter, emit *events.Broker, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		state: StateIdle,
		// Seeded from the clock so request ids stay unique across restarts;
		// incremented under the same lock that guards the pending slot.
		nonce: uint64(time.Now().UnixNano()),
		arb:   arb,
		emit:  emit,
		log:   log,
	}
}

// OnWake moves to StateListening. While a command is awaiting confirmation
// the state stays pinned to StateConfirming: a wake can never displace the
// pending proposal or invalidate its token.
func (m *Manager) OnWake() {
	m.mu.Lock()
	if m.pending == nil {
		m.state = StateListening
	}
	m.mu.Unlock()
	m.emit.Emit(events.Event{Type: events.TypeWake})
}

// EnterDeciding marks that upstream finished capturing an utterance and is
// about to hand over its transcript. Refused while a command is pending,
// for the same reason OnWake is.
func (m *Manager) EnterDeciding() {
	m.mu.Lock()
	if m.pending == nil {
		m.state = StateDeciding
	}
	m.mu.Unlock()
}

// OnTranscript arbitrates one transcript. Transcripts arriving in any state
// other than StateDeciding are dropped, so nothing outside an active turn
// can start a command. A command decision always enters StateConfirming,
// regardless of the decision's own confirmation flag.
func (m *Manager) OnTranscript(raw string, intent types.IntentResult) types.ManagerOutcome {
	// The audit sink runs outside the lock; a slow sink must not stall
	// state transitions.
	outcome, ev := m.arbitrate(raw, intent)
	if ev != nil {
		m.emit.Emit(*ev)
	}
	return outcome
}

func (m *Manager) arbitrate(raw string, intent types.IntentResult) (types.ManagerOutcome, *events.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateDeciding {
		m.log.Debug("transcript dropped",
			zap.String("state", m.state.String()))
		return types.IgnoredOutcome(), nil
	}

	d := m.arb.Decide(raw, intent)
	switch d.Kind {
	case types.DecisionCommand:
		if m.pending != nil {
			// Never reachable through OnWake/EnterDeciding, which refuse
			// while pending; the outstanding proposal stays untouched.
			m.log.Warn("command proposal while one is pending",
				zap.String("pending_request_id", m.pending.RequestID))
			return types.IgnoredOutcome(), nil
		}
		id := d.Intent.CommandID
		if id == "" {
			id = "unknown"
		}
		m.nonce++
		requestID := fmt.Sprintf("%s-%d", id, m.nonce)
		m.pending = &PendingCommand{
			RequestID: requestID,
			Intent:    d.Intent,
			Preview:   d.Preview,
			// Every proposal is confirmation-gated here, whatever the
			// decision said.
			Dangerous: true,
		}
		m.state = StateConfirming
		return types.NeedsConfirmation(requestID, d.Preview), &events.Event{
			Type:      events.TypeConfirmationRequested,
			CommandID: d.Intent.CommandID,
			RequestID: requestID,
			Fields:    map[string]any{"preview": d.Preview},
		}

	case types.DecisionQuestion:
		m.state = StateResponding
		return types.QuestionOutcome(d.Text), &events.Event{
			Type: events.TypeDecision, Fields: map[string]any{"kind": "question"},
		}

	case types.DecisionWebQuery:
		m.state = StateResponding
		return types.WebQueryOutcome(d.Text), &events.Event{
			Type: events.TypeDecision, Fields: map[string]any{"kind": "web_query"},
		}

	case types.DecisionIgnored:
		return types.IgnoredOutcome(), nil
	}
	panic(fmt.Sprintf("unhandled decision kind %q", d.Kind))
}

// ConfirmationToken discloses the token for the currently pending command.
// It exists only while state == StateConfirming.
func (m *Manager) ConfirmationToken() (ConfirmationToken, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateConfirming || m.pending == nil {
		return ConfirmationToken{}, false
	}
	return ConfirmationToken{requestID: m.pending.RequestID}, true
}

// Confirm resolves the pending command when the token matches it exactly.
// Any mismatch is a no-op: state and pending are untouched, so the command
// keeps waiting for a correct confirmation or a cancel.
func (m *Manager) Confirm(token ConfirmationToken) (types.IntentResult, bool) {
	return m.confirm(token.requestID)
}

// ConfirmByRequestID resolves the pending command when requestID echoes the
// last disclosed request id exactly. Check and resolution happen under one
// lock acquisition, so the pending command cannot be swapped between them.
func (m *Manager) ConfirmByRequestID(requestID string) (types.IntentResult, bool) {
	return m.confirm(requestID)
}

func (m *Manager) confirm(requestID string) (types.IntentResult, bool) {
	m.mu.Lock()
	if m.state != StateConfirming || m.pending == nil {
		m.mu.Unlock()
		return types.IntentResult{}, false
	}
	if m.pending.RequestID != requestID {
		m.log.Warn("confirmation token mismatch",
			zap.String("pending_request_id", m.pending.RequestID))
		m.mu.Unlock()
		return types.IntentResult{}, false
	}
	intent := m.pending.Intent
	m.pending = nil
	m.state = StateResponding
	m.mu.Unlock()
	m.emit.Emit(events.Event{
		Type:      events.TypeConfirmed,
		CommandID: intent.CommandID,
		RequestID: requestID,
	})
	return intent, true
}

// Cancel is an unconditional hard reset from any state.
func (m *Manager) Cancel() {
	m.mu.Lock()
	var requestID string
	if m.pending != nil {
		requestID = m.pending.RequestID
	}
	m.pending = nil
	m.state = StateIdle
	m.mu.Unlock()
	m.emit.Emit(events.Event{Type: events.TypeCanceled, RequestID: requestID})
}

// ResetToIdle is the administrative return to idle after responding.
func (m *Manager) ResetToIdle() {
	m.mu.Lock()
	m.pending = nil
	m.state = StateIdle
	m.mu.Unlock()
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Pending returns a copy of the pending command, if any.
func (m *Manager) Pending() (PendingCommand, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return PendingCommand{}, false
	}
	return *m.pending, true
}

// PendingRequestID returns the request id awaiting confirmation, if any.
func (m *Manager) PendingRequestID() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return "", false
	}
	return m.pending.RequestID, true
}
