// Package metrics exposes Prometheus instrumentation for the EAP daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "eapd"
	subsystem = "eap"
)

// Label names for EAP metrics.
const (
	labelRole   = "role"   // "authenticator" or "peer"
	labelMethod = "method" // method name, e.g. "Identity", "MD5-Challenge", "EAP-TLS"
)

// -------------------------------------------------------------------------
// Collector — Prometheus EAP Metrics
// -------------------------------------------------------------------------

// Collector holds all EAP Prometheus metrics.
//
// Metrics cover session lifecycle, per-method negotiation outcomes, and
// the resilience counters called out in SPEC_FULL.md Section 7
// (retransmits, invalid-message drops, NAK renegotiation).
type Collector struct {
	// ActiveSessions tracks the number of sessions currently in progress,
	// labeled by role.
	ActiveSessions *prometheus.GaugeVec

	// MethodAttempts counts every time a method is selected and driven,
	// labeled by role and method.
	MethodAttempts *prometheus.CounterVec

	// MethodSuccesses counts sessions that reached Success, labeled by
	// role and the method that was active at that point.
	MethodSuccesses *prometheus.CounterVec

	// MethodFailures counts sessions that reached Failed, labeled by
	// role, method, and the FailReason string.
	MethodFailures *prometheus.CounterVec

	// Retransmits counts Authenticator-side retransmits (Timeout driving
	// a byte-identical resend).
	Retransmits *prometheus.CounterVec

	// InvalidMessagesDropped counts inbound packets counted as invalid
	// without terminating the session.
	InvalidMessagesDropped *prometheus.CounterVec

	// NAKRenegotiations counts accepted NAK method switches
	// (RFC 3748 Section 5.3.1).
	NAKRenegotiations prometheus.Counter
}

// NewCollector creates a Collector with all EAP metrics registered against
// the provided prometheus.Registerer. If reg is nil,
// prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.ActiveSessions,
		c.MethodAttempts,
		c.MethodSuccesses,
		c.MethodFailures,
		c.Retransmits,
		c.InvalidMessagesDropped,
		c.NAKRenegotiations,
	)

	return c
}

func newMetrics() *Collector {
	roleLabels := []string{labelRole}
	methodLabels := []string{labelRole, labelMethod}
	failureLabels := []string{labelRole, labelMethod, "reason"}

	return &Collector{
		ActiveSessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active_sessions",
			Help:      "Number of currently in-progress EAP sessions.",
		}, roleLabels),

		MethodAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "method_attempts_total",
			Help:      "Total times a method was selected and driven.",
		}, methodLabels),

		MethodSuccesses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "method_successes_total",
			Help:      "Total sessions that reached EAP Success.",
		}, methodLabels),

		MethodFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "method_failures_total",
			Help:      "Total sessions that reached a terminal Failed status.",
		}, failureLabels),

		Retransmits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "retransmits_total",
			Help:      "Total Authenticator-side retransmits triggered by Timeout.",
		}, roleLabels),

		InvalidMessagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "invalid_messages_dropped_total",
			Help:      "Total inbound packets counted toward the invalid-message threshold.",
		}, roleLabels),

		NAKRenegotiations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "nak_renegotiations_total",
			Help:      "Total accepted NAK method renegotiations (RFC 3748 Section 5.3.1).",
		}),
	}
}

// -------------------------------------------------------------------------
// Session Lifecycle
// -------------------------------------------------------------------------

// RegisterSession increments the active sessions gauge for the given role.
func (c *Collector) RegisterSession(role string) {
	c.ActiveSessions.WithLabelValues(role).Inc()
}

// UnregisterSession decrements the active sessions gauge for the given role.
func (c *Collector) UnregisterSession(role string) {
	c.ActiveSessions.WithLabelValues(role).Dec()
}

// -------------------------------------------------------------------------
// Method Outcomes
// -------------------------------------------------------------------------

// IncMethodAttempt records that a method was selected and driven.
func (c *Collector) IncMethodAttempt(role, method string) {
	c.MethodAttempts.WithLabelValues(role, method).Inc()
}

// IncMethodSuccess records a session reaching EAP Success under the given
// method.
func (c *Collector) IncMethodSuccess(role, method string) {
	c.MethodSuccesses.WithLabelValues(role, method).Inc()
}

// IncMethodFailure records a session reaching a terminal Failed status,
// labeled with the FailReason string (e.g. "InvalidMessage", "Timeout").
func (c *Collector) IncMethodFailure(role, method, reason string) {
	c.MethodFailures.WithLabelValues(role, method, reason).Inc()
}

// -------------------------------------------------------------------------
// Resilience Counters
// -------------------------------------------------------------------------

// IncRetransmit records an Authenticator-side retransmit.
func (c *Collector) IncRetransmit(role string) {
	c.Retransmits.WithLabelValues(role).Inc()
}

// IncInvalidMessageDropped records an inbound packet counted toward the
// invalid-message threshold without terminating the session.
func (c *Collector) IncInvalidMessageDropped(role string) {
	c.InvalidMessagesDropped.WithLabelValues(role).Inc()
}

// IncNAKRenegotiation records an accepted NAK method switch.
func (c *Collector) IncNAKRenegotiation() {
	c.NAKRenegotiations.Inc()
}
