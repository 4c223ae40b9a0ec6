// Package executor turns confirmed intents into direct process execution.
// It keeps its own single pending-confirmation slot with a polled deadline,
// independent of the session manager's gate: even a caller that bypasses
// the manager cannot run anything without a positive deterministic score,
// a registry hit, validated parameters, and a clean rendered argv.
package executor

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/attendd/attendd/internal/events"
	"github.com/attendd/attendd/internal/registry"
	"github.com/attendd/attendd/pkg/types"
)

// Config controls confirmation timeout and dry-run.
type Config struct {
	ConfirmationTimeout time.Duration
	DryRun              bool
}

// Runner spawns a process directly from argv. No shell is ever involved.
type Runner interface {
	Run(program string, args []string) (exitCode int, output string, err error)
}

type execRunner struct{}

func (execRunner) Run(program string, args []string) (int, string, error) {
	cmd := exec.Command(program, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	if err == nil {
		return 0, buf.String(), nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode(), buf.String(), nil
	}
	return -1, buf.String(), err
}

// Pending is the executor's own confirmation slot.
type Pending struct {
	Program     string
	Args        []string
	ID          string
	Description string
	Deadline    time.Time
	RequestID   string
}

// Executor validates, renders and runs registry commands.
type Executor struct {
	mu      sync.Mutex
	pending *Pending
	nonce   uint64

	reg    *registry.Registry
	cfg    Config
	runner Runner
	now    func() time.Time
	emit   *events.Broker
	log    *zap.Logger
}

func New(reg *registry.Registry, cfg Config, emit *events.Broker, log *zap.Logger) *Executor {
	if cfg.ConfirmationTimeout <= 0 {
		cfg.ConfirmationTimeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		nonce:  uint64(time.Now().UnixNano()),
		reg:    reg,
		cfg:    cfg,
		runner: execRunner{},
		now:    time.Now,
		emit:   emit,
		log:    log,
	}
}

// HandleIntent runs the full validation pipeline for one intent. Every
// failure mode resolves to a Rejected/Ignored value; nothing here panics
// or executes as a side effect of failure.
func (e *Executor) HandleIntent(intent types.IntentResult) types.ExecStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending != nil {
		return types.Rejected("confirmation pending; ignoring new commands")
	}
	if intent.CommandID == "" {
		return types.ExecIgnoredStatus()
	}
	// Classifier-sourced intents carry no deterministic score and stop here,
	// independent of the manager's confirmation gate above this layer.
	if intent.DeterministicScore == nil || *intent.DeterministicScore <= 0 {
		return types.Rejected("non-deterministic or low-confidence command blocked")
	}

	spec, ok := e.reg.Get(intent.CommandID)
	if !ok {
		return types.Rejected(fmt.Sprintf("unknown command id %q: not in allow-list", intent.CommandID))
	}
	params, err := validateParameters(spec.Parameters, intent.Parameters)
	if err != nil {
		return types.Rejected(err.Error())
	}
	rendered, err := renderTemplate(spec.Template, spec.Parameters, params)
	if err != nil {
		return types.Rejected(err.Error())
	}
	tokens := strings.Fields(rendered)
	if err := validateTokens(tokens); err != nil {
		return types.Rejected(err.Error())
	}
	program, args := tokens[0], tokens[1:]

	if spec.Dangerous || intent.RequiresConfirmation {
		deadline := e.now().Add(e.cfg.ConfirmationTimeout)
		e.nonce++
		p := &Pending{
			Program:     program,
			Args:        args,
			ID:          spec.ID,
			Description: spec.Description,
			Deadline:    deadline,
			RequestID:   fmt.Sprintf("%s-%d", spec.ID, e.nonce),
		}
		e.pending = p
		e.log.Info("confirmation required",
			zap.String("command_id", spec.ID),
			zap.Time("deadline", deadline))
		e.emit.Emit(events.Event{
			Type:      events.TypeConfirmationRequested,
			CommandID: spec.ID,
			RequestID: p.RequestID,
			Fields:    map[string]any{"layer": "executor", "deadline": deadline},
		})
		return types.PendingConfirmation(spec.ID, spec.Description, deadline)
	}
	return e.run(spec.ID, program, args)
}

// ConfirmPending executes the pending command, if any.
func (e *Executor) ConfirmPending() types.ExecStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return types.ExecIgnoredStatus()
	}
	p := e.pending
	e.pending = nil
	return e.run(p.ID, p.Program, p.Args)
}

// CancelPending clears the pending command, if any.
func (e *Executor) CancelPending(reason string) types.ExecStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return types.ExecIgnoredStatus()
	}
	p := e.pending
	e.pending = nil
	e.emit.Emit(events.Event{
		Type:      events.TypeCanceled,
		CommandID: p.ID,
		RequestID: p.RequestID,
		Fields:    map[string]any{"reason": reason},
	})
	return types.Canceled(p.ID, reason)
}

// HandleTick is a caller-driven poll. An elapsed deadline clears the
// pending slot: timeout always resolves to denial, never approval.
func (e *Executor) HandleTick(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil || now.Before(e.pending.Deadline) {
		return
	}
	p := e.pending
	e.pending = nil
	e.log.Info("confirmation timed out",
		zap.String("command_id", p.ID))
	e.emit.Emit(events.Event{
		Type:      events.TypeConfirmationTimeout,
		CommandID: p.ID,
		RequestID: p.RequestID,
	})
}

// HandleConfirmationText exists so a transcript can never double as a
// confirmation: it ignores everything. Confirmation comes only from the
// control channel via ConfirmPending/CancelPending.
func (e *Executor) HandleConfirmationText(string) types.ExecStatus {
	return types.ExecIgnoredStatus()
}

// HasPending reports whether the executor's slot is occupied.
func (e *Executor) HasPending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending != nil
}

// PendingRequestID returns the request id of the executor's pending
// command, if any.
func (e *Executor) PendingRequestID() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return "", false
	}
	return e.pending.RequestID, true
}

// run dispatches the process. Callers hold e.mu; execution blocks the
// arbitration core by contract, so callers that must keep processing run
// the executor off their hot thread.
func (e *Executor) run(id, program string, args []string) types.ExecStatus {
	if e.cfg.DryRun {
		e.log.Info("dry-run, skipping execution", zap.String("command_id", id))
		e.emit.Emit(events.Event{
			Type:      events.TypeExecuted,
			CommandID: id,
			Fields:    map[string]any{"dry_run": true},
		})
		return types.Executed(id)
	}
	e.log.Info("executing",
		zap.String("command_id", id),
		zap.String("program", program),
		zap.Strings("args", args))
	code, output, err := e.runner.Run(program, args)
	if err != nil {
		e.emit.Emit(events.Event{
			Type:      events.TypeRejected,
			CommandID: id,
			Fields:    map[string]any{"error": err.Error()},
		})
		return types.Rejected(fmt.Sprintf("execution failed: %v", err))
	}
	if code != 0 {
		e.log.Warn("non-zero exit",
			zap.String("command_id", id),
			zap.Int("exit_code", code),
			zap.String("output", strings.TrimSpace(output)))
		e.emit.Emit(events.Event{
			Type:      events.TypeRejected,
			CommandID: id,
			Fields:    map[string]any{"exit_code": code},
		})
		return types.Rejected(fmt.Sprintf("execution failed: exit status %d", code))
	}
	e.emit.Emit(events.Event{Type: events.TypeExecuted, CommandID: id})
	return types.Executed(id)
}

// validateParameters checks every declared parameter against its spec
// string and returns the validated integer values.
func validateParameters(specs map[string]string, params map[string]any) (map[string]int64, error) {
	out := make(map[string]int64, len(specs))
	for name, spec := range specs {
		min, max, bounded, err := parseParamSpec(name, spec)
		if err != nil {
			return nil, err
		}
		val, ok := intValue(params[name])
		if !ok {
			return nil, fmt.Errorf("missing integer parameter %q", name)
		}
		if bounded {
			if val < min {
				return nil, fmt.Errorf("parameter %q below min %d", name, min)
			}
			if val > max {
				return nil, fmt.Errorf("parameter %q above max %d", name, max)
			}
		}
		out[name] = val
	}
	return out, nil
}

// parseParamSpec parses "int" or "int <min>-<max>" (inclusive bounds).
func parseParamSpec(name, spec string) (min, max int64, bounded bool, err error) {
	s := strings.TrimSpace(spec)
	if !strings.HasPrefix(s, "int") {
		return 0, 0, false, fmt.Errorf("unsupported param spec for %q: %q", name, spec)
	}
	rest := strings.TrimSpace(strings.TrimPrefix(s, "int"))
	if rest == "" {
		return 0, 0, false, nil
	}
	lo, hi, ok := strings.Cut(rest, "-")
	if !ok {
		return 0, 0, false, nil
	}
	if min, err = strconv.ParseInt(strings.TrimSpace(lo), 10, 64); err != nil {
		return 0, 0, false, fmt.Errorf("invalid min for %q: %q", name, lo)
	}
	if max, err = strconv.ParseInt(strings.TrimSpace(hi), 10, 64); err != nil {
		return 0, 0, false, fmt.Errorf("invalid max for %q: %q", name, hi)
	}
	return min, max, true, nil
}

// renderTemplate substitutes validated integers for {name} placeholders.
// Literal text is copied verbatim; a placeholder must name a declared
// parameter and an unterminated '{' fails the render.
func renderTemplate(tpl string, declared map[string]string, params map[string]int64) (string, error) {
	var out strings.Builder
	out.Grow(len(tpl))
	for i := 0; i < len(tpl); {
		if tpl[i] != '{' {
			out.WriteByte(tpl[i])
			i++
			continue
		}
		end := strings.IndexByte(tpl[i+1:], '}')
		if end < 0 {
			return "", fmt.Errorf("unterminated '{' in template")
		}
		name := tpl[i+1 : i+1+end]
		if _, ok := declared[name]; !ok {
			return "", fmt.Errorf("unknown placeholder {%s}", name)
		}
		val, ok := params[name]
		if !ok {
			return "", fmt.Errorf("missing or non-integer parameter %q", name)
		}
		out.WriteString(strconv.FormatInt(val, 10))
		i += end + 2
	}
	return out.String(), nil
}

// validateTokens rejects argv shapes that could be misinterpreted by the
// spawned program: empty argv, an option-looking program name, empty tokens.
func validateTokens(tokens []string) error {
	if len(tokens) == 0 {
		return fmt.Errorf("empty command")
	}
	if tokens[0] == "" || strings.HasPrefix(tokens[0], "-") {
		return fmt.Errorf("invalid program name")
	}
	for _, tok := range tokens {
		if tok == "" {
			return fmt.Errorf("invalid empty token")
		}
	}
	return nil
}

// intValue coerces the loosely typed parameter values (JSON numbers,
// router-extracted int64s) into an exact int64.
func intValue(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}
