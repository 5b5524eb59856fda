package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/dantte-lp/goeap/internal/metrics"
)

func TestNewCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	if c.ActiveSessions == nil {
		t.Error("ActiveSessions is nil")
	}
	if c.MethodAttempts == nil {
		t.Error("MethodAttempts is nil")
	}
	if c.MethodSuccesses == nil {
		t.Error("MethodSuccesses is nil")
	}
	if c.MethodFailures == nil {
		t.Error("MethodFailures is nil")
	}
	if c.Retransmits == nil {
		t.Error("Retransmits is nil")
	}
	if c.InvalidMessagesDropped == nil {
		t.Error("InvalidMessagesDropped is nil")
	}
	if c.NAKRenegotiations == nil {
		t.Error("NAKRenegotiations is nil")
	}

	// Registration must not panic and must be gatherable.
	if _, err := reg.Gather(); err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
}

func TestRegisterUnregisterSession(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.RegisterSession("authenticator")
	if val := gaugeValue(t, c.ActiveSessions, "authenticator"); val != 1 {
		t.Errorf("after RegisterSession: ActiveSessions = %v, want 1", val)
	}

	c.RegisterSession("peer")
	if val := gaugeValue(t, c.ActiveSessions, "peer"); val != 1 {
		t.Errorf("after second RegisterSession: peer gauge = %v, want 1", val)
	}

	c.UnregisterSession("authenticator")
	if val := gaugeValue(t, c.ActiveSessions, "authenticator"); val != 0 {
		t.Errorf("after UnregisterSession: authenticator gauge = %v, want 0", val)
	}

	if val := gaugeValue(t, c.ActiveSessions, "peer"); val != 1 {
		t.Errorf("peer gauge = %v, want 1 (should be unaffected)", val)
	}
}

func TestMethodOutcomeCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.IncMethodAttempt("authenticator", "md5_challenge")
	c.IncMethodAttempt("authenticator", "md5_challenge")
	c.IncMethodAttempt("authenticator", "md5_challenge")

	if val := counterValue(t, c.MethodAttempts, "authenticator", "md5_challenge"); val != 3 {
		t.Errorf("MethodAttempts = %v, want 3", val)
	}

	c.IncMethodSuccess("authenticator", "md5_challenge")
	c.IncMethodSuccess("authenticator", "md5_challenge")

	if val := counterValue(t, c.MethodSuccesses, "authenticator", "md5_challenge"); val != 2 {
		t.Errorf("MethodSuccesses = %v, want 2", val)
	}

	c.IncMethodFailure("peer", "tls", "InvalidMessage")

	if val := counterValue(t, c.MethodFailures, "peer", "tls", "InvalidMessage"); val != 1 {
		t.Errorf("MethodFailures = %v, want 1", val)
	}
}

func TestResilienceCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.IncRetransmit("authenticator")
	c.IncRetransmit("authenticator")

	if val := counterValue(t, c.Retransmits, "authenticator"); val != 2 {
		t.Errorf("Retransmits = %v, want 2", val)
	}

	c.IncInvalidMessageDropped("peer")

	if val := counterValue(t, c.InvalidMessagesDropped, "peer"); val != 1 {
		t.Errorf("InvalidMessagesDropped = %v, want 1", val)
	}

	c.IncNAKRenegotiation()
	c.IncNAKRenegotiation()
	c.IncNAKRenegotiation()

	m := &dto.Metric{}
	if err := c.NAKRenegotiations.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}
	if got := m.GetCounter().GetValue(); got != 3 {
		t.Errorf("NAKRenegotiations = %v, want 3", got)
	}
}

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

// gaugeValue reads the current value of a GaugeVec with the given labels.
func gaugeValue(t *testing.T, vec *prometheus.GaugeVec, labels ...string) float64 {
	t.Helper()

	gauge, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := gauge.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetGauge().GetValue()
}

// counterValue reads the current value of a CounterVec with the given labels.
func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()

	counter, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetCounter().GetValue()
}
