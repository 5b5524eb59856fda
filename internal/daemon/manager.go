// Package daemon hosts the server side of an EAP conversation: a table of
// in-progress Authenticator sessions keyed by peer address, driven by
// inbound datagrams and exposed for inspection and initiation over an HTTP
// status API.
package daemon

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dantte-lp/goeap/internal/eap"
	"github.com/dantte-lp/goeap/internal/metrics"
	"github.com/dantte-lp/goeap/internal/transport"
)

// roleAuthenticator is the metrics/logging role label this package always
// reports: the daemon only ever plays the Authenticator side. A peer
// implementation, were one added, would live in its own package and report
// "peer" instead.
const roleAuthenticator = "authenticator"

// Manager errors.
var (
	// ErrSessionExists indicates StartSession was called for an address
	// that already has an active session.
	ErrSessionExists = errors.New("daemon: a session is already active for this address")
	// ErrSessionNotFound indicates an operation named an address with no
	// hosted session.
	ErrSessionNotFound = errors.New("daemon: no session for this address")
)

// hostedSession pairs a driven AuthSession with the bookkeeping the
// manager needs to route inbound datagrams and answer status queries.
type hostedSession struct {
	id         uuid.UUID
	addr       netip.AddrPort
	session    *eap.AuthSession
	lastMethod string
	lastActive time.Time
	terminal   *SessionOutcome
}

// SessionOutcome records a session's terminal result, once it has one.
type SessionOutcome struct {
	Success bool
	Reason  eap.FailReason
}

// SessionSnapshot is a point-in-time, read-only view of a hosted session
// for status reporting.
type SessionSnapshot struct {
	ID         uuid.UUID
	Addr       netip.AddrPort
	Method     string
	LastActive time.Time
	Outcome    *SessionOutcome
}

// Manager owns the table of in-progress Authenticator sessions the daemon
// hosts, one per peer address, and fans inbound datagrams out to the
// right session's Receive call.
type Manager struct {
	mu       sync.Mutex
	sessions map[netip.AddrPort]*hostedSession

	newMux func() *eap.AuthMultiplexer
	conn   transport.Conn
	metr   *metrics.Collector
	log    *slog.Logger
}

// NewManager builds a Manager that sends outbound session traffic over
// conn and reports through metr. newMux is called once per new session to
// build a fresh method multiplexer (method state is per-session, so the
// multiplexer itself cannot be shared).
func NewManager(conn transport.Conn, newMux func() *eap.AuthMultiplexer, metr *metrics.Collector, log *slog.Logger) *Manager {
	return &Manager{
		sessions: make(map[netip.AddrPort]*hostedSession),
		newMux:   newMux,
		conn:     conn,
		metr:     metr,
		log:      log,
	}
}

// StartSession begins authenticating addr: it allocates a fresh
// AuthSession, sends the opening Request, and registers the session so
// subsequent inbound datagrams from addr route to it. The daemon never
// initiates a session on its own off an unsolicited datagram; something
// above the transport (the status API, in this build) must call this.
func (m *Manager) StartSession(addr netip.AddrPort) (uuid.UUID, error) {
	m.mu.Lock()
	if _, exists := m.sessions[addr]; exists {
		m.mu.Unlock()
		return uuid.Nil, ErrSessionExists
	}

	env := eap.NewHeapEnvironment()
	hs := &hostedSession{
		id:         uuid.New(),
		addr:       addr,
		session:    eap.NewAuthSession(env, m.newMux()),
		lastActive: time.Now(),
	}
	m.sessions[addr] = hs
	m.mu.Unlock()

	m.metr.RegisterSession(roleAuthenticator)

	if err := m.applyResult(hs, hs.session.Start()); err != nil {
		m.mu.Lock()
		delete(m.sessions, addr)
		m.mu.Unlock()
		m.metr.UnregisterSession(roleAuthenticator)
		return uuid.Nil, err
	}

	m.log.Info("session started", "session_id", hs.id, "addr", addr)
	return hs.id, nil
}

// HandleInbound routes a datagram received from addr to its session's
// Receive call. A datagram from an address with no active session is
// logged and dropped; the daemon does not auto-create sessions for
// unsolicited traffic.
func (m *Manager) HandleInbound(addr netip.AddrPort, raw []byte) {
	m.mu.Lock()
	hs, ok := m.sessions[addr]
	m.mu.Unlock()
	if !ok {
		m.log.Warn("dropping datagram from unknown peer", "addr", addr)
		return
	}

	hs.lastActive = time.Now()
	if err := m.applyResult(hs, hs.session.Receive(raw)); err != nil {
		m.log.Error("session internal error, dropping", "session_id", hs.id, "addr", addr, "err", err)
		m.evict(hs)
	}
}

// Sweep calls Timeout on every still-active session that has been idle
// longer than idleTimeout (a session that terminates as a result is
// marked terminal and stays in the table), and separately reaps sessions
// that already reached a terminal state more than idleTimeout ago so the
// table does not grow without bound. Intended to run on a periodic tick
// from a supervising goroutine.
func (m *Manager) Sweep(idleTimeout time.Duration) {
	cutoff := time.Now().Add(-idleTimeout)

	m.mu.Lock()
	var idle []*hostedSession
	for addr, hs := range m.sessions {
		switch {
		case hs.terminal != nil && hs.lastActive.Before(cutoff):
			delete(m.sessions, addr)
		case hs.terminal == nil && hs.lastActive.Before(cutoff):
			idle = append(idle, hs)
		}
	}
	m.mu.Unlock()

	for _, hs := range idle {
		result := hs.session.Timeout()
		if result.Status == eap.StatusOk && result.Response != nil {
			m.metr.IncRetransmit(roleAuthenticator)
		}
		if err := m.applyResult(hs, result); err != nil {
			m.log.Error("session internal error during sweep", "session_id", hs.id, "addr", hs.addr, "err", err)
			m.evict(hs)
		}
	}
}

// Snapshot returns a status view of every session the manager currently
// knows about, including ones that have already reached a terminal state
// but have not yet been evicted.
func (m *Manager) Snapshot() []SessionSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]SessionSnapshot, 0, len(m.sessions))
	for _, hs := range m.sessions {
		out = append(out, SessionSnapshot{
			ID:         hs.id,
			Addr:       hs.addr,
			Method:     hs.lastMethod,
			LastActive: hs.lastActive,
			Outcome:    hs.terminal,
		})
	}
	return out
}

// applyResult sends any outbound response and, on a terminal status,
// records metrics and marks hs.terminal. Terminated sessions stay in the
// table (visible via Snapshot) until a future Sweep or restart clears
// them; only an internal error evicts a session outright.
func (m *Manager) applyResult(hs *hostedSession, result eap.StepResult) error {
	if mt, ok := parseMethod(result.Response); ok {
		if mt != hs.lastMethod {
			m.metr.IncMethodAttempt(roleAuthenticator, mt)
		}
		hs.lastMethod = mt
	}

	if result.Response != nil {
		if _, err := m.conn.WriteTo(result.Response, hs.addr); err != nil {
			m.log.Error("write outbound eap datagram", "session_id", hs.id, "addr", hs.addr, "err", err)
		}
	}

	switch result.Status {
	case eap.StatusOk:
		return nil
	case eap.StatusSuccess:
		hs.terminal = &SessionOutcome{Success: true}
		m.metr.IncMethodSuccess(roleAuthenticator, hs.lastMethod)
		m.metr.UnregisterSession(roleAuthenticator)
		m.log.Info("session succeeded", "session_id", hs.id, "addr", hs.addr, "method", hs.lastMethod)
		return nil
	case eap.StatusFailed:
		hs.terminal = &SessionOutcome{Reason: result.Reason}
		m.metr.IncMethodFailure(roleAuthenticator, hs.lastMethod, result.Reason.String())
		m.metr.UnregisterSession(roleAuthenticator)
		m.log.Info("session failed", "session_id", hs.id, "addr", hs.addr, "reason", result.Reason)
		return nil
	case eap.StatusInternalError:
		return fmt.Errorf("session %s: %w", hs.id, result.Err)
	default:
		return fmt.Errorf("session %s: unrecognized status %v", hs.id, result.Status)
	}
}

// evict removes hs from the live table outright, used when an internal
// error leaves the session in an unusable state.
func (m *Manager) evict(hs *hostedSession) {
	m.mu.Lock()
	delete(m.sessions, hs.addr)
	m.mu.Unlock()
	m.metr.UnregisterSession(roleAuthenticator)
}

// parseMethod extracts the method-type name from a Request/Response
// packet's body, used to label metrics and status output with the method
// currently driving the session. Success/Failure packets carry no method
// byte and report ok=false, leaving the caller's prior label untouched.
func parseMethod(raw []byte) (string, bool) {
	if raw == nil {
		return "", false
	}
	pkt, err := eap.Parse(raw)
	if err != nil {
		return "", false
	}
	mt, ok := pkt.MethodType()
	if !ok {
		return "", false
	}
	return mt.String(), true
}
