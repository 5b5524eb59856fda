package daemon

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/netip"
	"time"
)

// StatusAPI is the plain-HTTP control surface eapctl talks to: it reports
// session status and is the only way a session gets created, since the
// daemon never auto-starts one off an unsolicited inbound datagram.
type StatusAPI struct {
	mgr *Manager
	log *slog.Logger
}

// NewStatusAPI builds a StatusAPI over mgr.
func NewStatusAPI(mgr *Manager, log *slog.Logger) *StatusAPI {
	return &StatusAPI{mgr: mgr, log: log}
}

// Handler returns the http.Handler serving the status API's routes.
func (a *StatusAPI) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", a.handleHealthz)
	mux.HandleFunc("GET /api/v1/sessions", a.handleListSessions)
	mux.HandleFunc("POST /api/v1/sessions", a.handleStartSession)
	return mux
}

func (a *StatusAPI) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// sessionView is the JSON-facing shape of a SessionSnapshot: a plain
// string address and RFC 3339 timestamp instead of netip/time internals,
// and a flattened outcome so "still running" marshals as a bare null.
type sessionView struct {
	ID         string       `json:"id"`
	Addr       string       `json:"addr"`
	Method     string       `json:"method,omitempty"`
	LastActive time.Time    `json:"last_active"`
	Outcome    *outcomeView `json:"outcome"`
}

type outcomeView struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

func toSessionView(s SessionSnapshot) sessionView {
	v := sessionView{
		ID:         s.ID.String(),
		Addr:       s.Addr.String(),
		Method:     s.Method,
		LastActive: s.LastActive,
	}
	if s.Outcome != nil {
		ov := outcomeView{Success: s.Outcome.Success}
		if !s.Outcome.Success {
			ov.Reason = s.Outcome.Reason.String()
		}
		v.Outcome = &ov
	}
	return v
}

func (a *StatusAPI) handleListSessions(w http.ResponseWriter, r *http.Request) {
	snaps := a.mgr.Snapshot()
	views := make([]sessionView, 0, len(snaps))
	for _, s := range snaps {
		views = append(views, toSessionView(s))
	}
	writeJSON(w, http.StatusOK, views)
}

// startSessionRequest is the POST /api/v1/sessions request body.
type startSessionRequest struct {
	Addr string `json:"addr"`
}

type startSessionResponse struct {
	ID string `json:"id"`
}

func (a *StatusAPI) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	addr, err := netip.ParseAddrPort(req.Addr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid addr: "+err.Error())
		return
	}

	id, err := a.mgr.StartSession(addr)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, startSessionResponse{ID: id.String()})
	case errors.Is(err, ErrSessionExists):
		writeError(w, http.StatusConflict, err.Error())
	default:
		a.log.Error("start session", "addr", addr, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
