// Package api exposes the local control surface over HTTP. Confirmation and
// cancellation happen here and nowhere else; spoken input can only propose.
package api

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/attendd/attendd/internal/executor"
	"github.com/attendd/attendd/internal/intent"
	"github.com/attendd/attendd/internal/registry"
	"github.com/attendd/attendd/internal/session"
	"github.com/attendd/attendd/internal/store/sqlite"
	"github.com/attendd/attendd/pkg/types"
)

// App wires the router, manager and executor behind the HTTP handlers.
type App struct {
	// turn serializes the mutating handlers end to end. The manager and
	// executor are individually locked, but the pending-command invariants
	// span several of their calls, so each whole turn must be one critical
	// section; net/http serves handlers concurrently.
	turn sync.Mutex

	router *intent.Router
	mgr    *session.Manager
	exec   *executor.Executor
	reg    *registry.Registry
	store  *sqlite.Store // nil when auditing is disabled
	log    *zap.Logger
}

func NewApp(router *intent.Router, mgr *session.Manager, exec *executor.Executor, reg *registry.Registry, store *sqlite.Store, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{router: router, mgr: mgr, exec: exec, reg: reg, store: store, log: log}
}

// Handler builds the chi router for the control API.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { writeText(w, http.StatusOK, "ok\n") })

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", a.getStatus)
		r.Get("/pending", a.getPending)
		r.Get("/commands", a.listCommands)
		r.Get("/events", a.listEvents)

		r.Post("/transcript", a.postTranscript)
		r.Post("/confirm", a.postConfirm)
		r.Post("/cancel", a.postCancel)
	})

	return r
}

type statusResponse struct {
	State            string `json:"state"`
	PendingRequestID string `json:"pending_request_id,omitempty"`
	Commands         int    `json:"commands"`
}

func (a *App) getStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		State:    a.mgr.State().String(),
		Commands: a.reg.Len(),
	}
	if id, ok := a.mgr.PendingRequestID(); ok {
		resp.PendingRequestID = id
	}
	writeJSON(w, http.StatusOK, resp)
}

type pendingResponse struct {
	RequestID string `json:"request_id"`
	CommandID string `json:"command_id"`
	Preview   string `json:"preview"`
}

func (a *App) getPending(w http.ResponseWriter, r *http.Request) {
	pc, ok := a.mgr.Pending()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "no command awaiting confirmation"})
		return
	}
	writeJSON(w, http.StatusOK, pendingResponse{
		RequestID: pc.RequestID,
		CommandID: pc.Intent.CommandID,
		Preview:   pc.Preview,
	})
}

func (a *App) listCommands(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"commands": a.reg.List()})
}

func (a *App) listEvents(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "audit store disabled"})
		return
	}
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid limit"})
			return
		}
		limit = n
	}
	evs, err := a.store.RecentEvents(r.Context(), limit)
	if err != nil {
		a.log.Error("event query failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "event query failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evs})
}

type transcriptRequest struct {
	Text string `json:"text"`
}

type transcriptResponse struct {
	Outcome   string  `json:"outcome"`
	RequestID string  `json:"request_id,omitempty"`
	Preview   string  `json:"preview,omitempty"`
	Text      string  `json:"text,omitempty"`
	CommandID string  `json:"command_id,omitempty"`
	Score     float64 `json:"score"`
}

// postTranscript runs one full turn: route the text, arbitrate, and either
// park a command for confirmation or report the conversational outcome.
// While a command is pending, spoken text never resolves it.
func (a *App) postTranscript(w http.ResponseWriter, r *http.Request) {
	var req transcriptRequest
	if !decodeJSON(w, r, &req, "invalid transcript request") {
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "text is required"})
		return
	}

	a.turn.Lock()
	defer a.turn.Unlock()

	if id, ok := a.mgr.PendingRequestID(); ok {
		a.exec.HandleConfirmationText(req.Text)
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":              "a command is awaiting confirmation",
			"pending_request_id": id,
		})
		return
	}

	a.mgr.OnWake()
	a.mgr.EnterDeciding()

	res := a.router.Route(r.Context(), req.Text)
	outcome := a.mgr.OnTranscript(req.Text, res)

	resp := transcriptResponse{
		CommandID: res.CommandID,
		Score:     res.Score(),
	}
	switch outcome.Kind {
	case types.OutcomeNeedsConfirmation:
		resp.Outcome = "needs_confirmation"
		resp.RequestID = outcome.RequestID
		resp.Preview = outcome.Preview
	case types.OutcomeQuestion:
		resp.Outcome = "question"
		resp.Text = outcome.Text
		a.mgr.ResetToIdle()
	case types.OutcomeWebQuery:
		resp.Outcome = "web_query"
		resp.Text = outcome.Text
		a.mgr.ResetToIdle()
	case types.OutcomeIgnored:
		resp.Outcome = "ignored"
		a.mgr.ResetToIdle()
	default:
		panic("unhandled outcome kind")
	}
	writeJSON(w, http.StatusOK, resp)
}

type confirmRequest struct {
	RequestID string `json:"request_id"`
}

// postConfirm resolves the pending command when the caller echoes its exact
// request id, then hands the intent to the executor. The echoed id is bound
// to the pending command in one manager critical section, so a confirm can
// only release the command it names. The explicit ack satisfies the
// executor's own confirmation gate too, so a dangerous command runs in one
// step here rather than parking a second time.
func (a *App) postConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if !decodeJSON(w, r, &req, "invalid confirm request") {
		return
	}

	a.turn.Lock()
	defer a.turn.Unlock()

	res, ok := a.mgr.ConfirmByRequestID(req.RequestID)
	if !ok {
		if _, pending := a.mgr.PendingRequestID(); !pending {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "no command awaiting confirmation"})
			return
		}
		writeJSON(w, http.StatusConflict, map[string]any{"error": "request id does not match the pending command"})
		return
	}

	status := a.exec.HandleIntent(res)
	if status.Kind == types.ExecPendingConfirmation {
		status = a.exec.ConfirmPending()
	}
	a.mgr.ResetToIdle()
	writeJSON(w, execStatusCode(status), status)
}

func (a *App) postCancel(w http.ResponseWriter, r *http.Request) {
	a.turn.Lock()
	defer a.turn.Unlock()

	requestID, hadPending := a.mgr.PendingRequestID()
	a.mgr.Cancel()
	if a.exec.HasPending() {
		a.exec.CancelPending("canceled by operator")
	}
	resp := map[string]any{"canceled": hadPending}
	if hadPending {
		resp["request_id"] = requestID
	}
	writeJSON(w, http.StatusOK, resp)
}

func execStatusCode(status types.ExecStatus) int {
	switch status.Kind {
	case types.ExecExecuted, types.ExecPendingConfirmation, types.ExecCanceled:
		return http.StatusOK
	case types.ExecRejected:
		return http.StatusUnprocessableEntity
	case types.ExecIgnored:
		return http.StatusOK
	}
	panic("unhandled exec status kind")
}
