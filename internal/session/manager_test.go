package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendd/attendd/internal/arbiter"
	"github.com/attendd/attendd/internal/events"
	"github.com/attendd/attendd/pkg/types"
)

func newTestManager() *Manager {
	return NewManager(arbiter.New(arbiter.Config{DeterministicThreshold: 0.75}), nil, nil)
}

func cmdIntent(id string, score float64) types.IntentResult {
	return types.IntentResult{
		Type:               types.IntentCommand,
		CommandID:          id,
		Parameters:         map[string]any{},
		DeterministicScore: &score,
	}
}

func TestIgnoresTranscriptUnlessDeciding(t *testing.T) {
	mgr := newTestManager()
	mgr.OnWake()
	out := mgr.OnTranscript("lock screen", cmdIntent("lock_screen", 0.99))
	assert.Equal(t, types.OutcomeIgnored, out.Kind)
	assert.Equal(t, StateListening, mgr.State())
}

func TestTranscriptIgnoredInEveryNonDecidingState(t *testing.T) {
	states := []func(m *Manager){
		func(m *Manager) {},             // idle
		func(m *Manager) { m.OnWake() }, // listening
		func(m *Manager) { // confirming
			m.OnWake()
			m.EnterDeciding()
			m.OnTranscript("lock my laptop", cmdIntent("lock_screen", 0.99))
		},
	}
	for i, prep := range states {
		mgr := newTestManager()
		prep(mgr)
		out := mgr.OnTranscript("reboot", cmdIntent("system_reboot", 1.0))
		assert.Equal(t, types.OutcomeIgnored, out.Kind, "case %d", i)
	}
}

func TestCommandAlwaysRequiresConfirmation(t *testing.T) {
	mgr := newTestManager()
	mgr.OnWake()
	mgr.EnterDeciding()
	out := mgr.OnTranscript("lock my laptop", cmdIntent("lock_screen", 0.99))
	require.Equal(t, types.OutcomeNeedsConfirmation, out.Kind)
	assert.NotEmpty(t, out.RequestID)
	assert.Equal(t, StateConfirming, mgr.State())

	id, ok := mgr.PendingRequestID()
	require.True(t, ok)
	assert.Equal(t, out.RequestID, id)
}

func TestSecondCommandWhileConfirmingLeavesFirstUntouched(t *testing.T) {
	mgr := newTestManager()
	mgr.OnWake()
	mgr.EnterDeciding()
	first := mgr.OnTranscript("lock my laptop", cmdIntent("lock_screen", 0.99))
	require.Equal(t, types.OutcomeNeedsConfirmation, first.Kind)

	second := mgr.OnTranscript("reboot", cmdIntent("system_reboot", 1.0))
	assert.Equal(t, types.OutcomeIgnored, second.Kind)

	id, ok := mgr.PendingRequestID()
	require.True(t, ok)
	assert.Equal(t, first.RequestID, id)
}

func TestConfirmHappyPath(t *testing.T) {
	mgr := newTestManager()
	mgr.OnWake()
	mgr.EnterDeciding()
	out := mgr.OnTranscript("lock my laptop", cmdIntent("lock_screen", 0.99))
	require.Equal(t, types.OutcomeNeedsConfirmation, out.Kind)

	tok, ok := mgr.ConfirmationToken()
	require.True(t, ok)

	intent, ok := mgr.Confirm(tok)
	require.True(t, ok)
	assert.Equal(t, "lock_screen", intent.CommandID)
	assert.Equal(t, StateResponding, mgr.State())

	_, ok = mgr.PendingRequestID()
	assert.False(t, ok)
	_, ok = mgr.ConfirmationToken()
	assert.False(t, ok, "no token obtainable after confirm")
}

func TestConfirmStaleTokenIsNoOp(t *testing.T) {
	mgr := newTestManager()
	mgr.OnWake()
	mgr.EnterDeciding()
	_ = mgr.OnTranscript("lock my laptop", cmdIntent("lock_screen", 0.99))
	stale, ok := mgr.ConfirmationToken()
	require.True(t, ok)

	// Cancel and propose again; the stale token now references a dead request.
	mgr.Cancel()
	mgr.EnterDeciding()
	out := mgr.OnTranscript("lock my laptop", cmdIntent("lock_screen", 0.99))
	require.Equal(t, types.OutcomeNeedsConfirmation, out.Kind)

	_, confirmed := mgr.Confirm(stale)
	assert.False(t, confirmed)
	assert.Equal(t, StateConfirming, mgr.State(), "mismatch leaves state untouched")
	id, ok := mgr.PendingRequestID()
	require.True(t, ok)
	assert.Equal(t, out.RequestID, id, "pending survives a bad confirm")
}

func TestConfirmOutsideConfirmingState(t *testing.T) {
	mgr := newTestManager()
	_, ok := mgr.Confirm(ConfirmationToken{})
	assert.False(t, ok)
	assert.Equal(t, StateIdle, mgr.State())
}

func TestTokenOnlyAvailableWhileConfirming(t *testing.T) {
	mgr := newTestManager()
	_, ok := mgr.ConfirmationToken()
	assert.False(t, ok)
	mgr.OnWake()
	_, ok = mgr.ConfirmationToken()
	assert.False(t, ok)
	mgr.EnterDeciding()
	_, ok = mgr.ConfirmationToken()
	assert.False(t, ok)
}

func TestCancelIsHardReset(t *testing.T) {
	mgr := newTestManager()
	mgr.OnWake()
	mgr.EnterDeciding()
	_ = mgr.OnTranscript("lock my laptop", cmdIntent("lock_screen", 0.99))
	require.Equal(t, StateConfirming, mgr.State())

	mgr.Cancel()
	assert.Equal(t, StateIdle, mgr.State())
	_, ok := mgr.PendingRequestID()
	assert.False(t, ok)
	_, ok = mgr.ConfirmationToken()
	assert.False(t, ok)
}

func TestQuestionMovesToResponding(t *testing.T) {
	mgr := newTestManager()
	mgr.OnWake()
	mgr.EnterDeciding()
	out := mgr.OnTranscript("what is two plus two", types.UnknownIntent())
	assert.Equal(t, types.OutcomeQuestion, out.Kind)
	assert.Equal(t, "what is two plus two", out.Text)
	assert.Equal(t, StateResponding, mgr.State())

	mgr.ResetToIdle()
	assert.Equal(t, StateIdle, mgr.State())
}

func TestWakeWhileConfirmingKeepsPending(t *testing.T) {
	mgr := newTestManager()
	mgr.OnWake()
	mgr.EnterDeciding()
	first := mgr.OnTranscript("lock my laptop", cmdIntent("lock_screen", 0.99))
	require.Equal(t, types.OutcomeNeedsConfirmation, first.Kind)

	// A new wake/utterance turn must not displace the outstanding proposal.
	mgr.OnWake()
	assert.Equal(t, StateConfirming, mgr.State())
	mgr.EnterDeciding()
	assert.Equal(t, StateConfirming, mgr.State())

	second := mgr.OnTranscript("reboot", cmdIntent("system_reboot", 1.0))
	assert.Equal(t, types.OutcomeIgnored, second.Kind)

	id, ok := mgr.PendingRequestID()
	require.True(t, ok)
	assert.Equal(t, first.RequestID, id, "outstanding proposal was replaced")

	// The originally disclosed request id still resolves the original command.
	intent, ok := mgr.ConfirmByRequestID(first.RequestID)
	require.True(t, ok)
	assert.Equal(t, "lock_screen", intent.CommandID)
}

func TestConfirmByRequestID(t *testing.T) {
	mgr := newTestManager()
	mgr.OnWake()
	mgr.EnterDeciding()
	out := mgr.OnTranscript("lock my laptop", cmdIntent("lock_screen", 0.99))
	require.Equal(t, types.OutcomeNeedsConfirmation, out.Kind)

	_, ok := mgr.ConfirmByRequestID(out.RequestID + "-stale")
	assert.False(t, ok)
	id, pending := mgr.PendingRequestID()
	require.True(t, pending, "pending survives a mismatched id")
	assert.Equal(t, out.RequestID, id)

	intent, ok := mgr.ConfirmByRequestID(out.RequestID)
	require.True(t, ok)
	assert.Equal(t, "lock_screen", intent.CommandID)
	assert.Equal(t, StateResponding, mgr.State())
}

// reentrantSink queries the manager from inside event delivery. It hangs
// forever if the manager emits while holding its own lock.
type reentrantSink struct {
	mgr    *Manager
	states []State
}

func (s *reentrantSink) AppendEvent(_ context.Context, _ events.Event) error {
	s.states = append(s.states, s.mgr.State())
	return nil
}

func TestEventEmissionReleasesStateLock(t *testing.T) {
	sink := &reentrantSink{}
	mgr := NewManager(
		arbiter.New(arbiter.Config{DeterministicThreshold: 0.75}),
		events.NewBroker(nil, sink), nil)
	sink.mgr = mgr

	mgr.OnWake()
	mgr.EnterDeciding()
	out := mgr.OnTranscript("lock my laptop", cmdIntent("lock_screen", 0.99))
	require.Equal(t, types.OutcomeNeedsConfirmation, out.Kind)

	_, ok := mgr.ConfirmByRequestID(out.RequestID)
	require.True(t, ok)
	mgr.Cancel()

	require.Len(t, sink.states, 4) // wake, confirmation requested, confirmed, canceled
}

func TestRequestIDsAreUniqueAcrossProposals(t *testing.T) {
	mgr := newTestManager()
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		mgr.OnWake()
		mgr.EnterDeciding()
		out := mgr.OnTranscript("lock my laptop", cmdIntent("lock_screen", 0.99))
		require.Equal(t, types.OutcomeNeedsConfirmation, out.Kind)
		require.False(t, seen[out.RequestID], "duplicate request id %s", out.RequestID)
		seen[out.RequestID] = true
		mgr.Cancel()
	}
}
