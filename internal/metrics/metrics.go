// Package metrics exposes Prometheus counters for the engine's
// security-relevant outcomes.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the engine counters. A nil *Metrics is valid and
// records nothing, so the engine never branches on instrumentation.
type Metrics struct {
	authzDecisions   *prometheus.CounterVec
	resetRequests    *prometheus.CounterVec
	resetConfirms    *prometheus.CounterVec
	rateLimitHits    *prometheus.CounterVec
	twoFactorEvents  *prometheus.CounterVec
	auditAppendFails prometheus.Counter
}

// New registers the engine counters on reg. Pass
// prometheus.DefaultRegisterer for the process-wide registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		authzDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accesscore_authz_decisions_total",
			Help: "Authorization decisions by outcome and denial reason.",
		}, []string{"outcome", "reason"}),
		resetRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accesscore_password_reset_requests_total",
			Help: "Password reset token requests by outcome.",
		}, []string{"outcome"}),
		resetConfirms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accesscore_password_reset_confirms_total",
			Help: "Password reset confirmations by outcome.",
		}, []string{"outcome"}),
		rateLimitHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accesscore_rate_limit_hits_total",
			Help: "Requests denied by a sliding-window limit.",
		}, []string{"limit"}),
		twoFactorEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accesscore_two_factor_events_total",
			Help: "Two-factor state transitions and verification outcomes.",
		}, []string{"event"}),
		auditAppendFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "accesscore_audit_append_failures_total",
			Help: "Ledger appends that failed and aborted their operation.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.authzDecisions,
			m.resetRequests,
			m.resetConfirms,
			m.rateLimitHits,
			m.twoFactorEvents,
			m.auditAppendFails,
		)
	}
	return m
}

func (m *Metrics) AuthzDecision(outcome, reason string) {
	if m == nil {
		return
	}
	m.authzDecisions.WithLabelValues(outcome, reason).Inc()
}

func (m *Metrics) ResetRequest(outcome string) {
	if m == nil {
		return
	}
	m.resetRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ResetConfirm(outcome string) {
	if m == nil {
		return
	}
	m.resetConfirms.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RateLimitHit(limit string) {
	if m == nil {
		return
	}
	m.rateLimitHits.WithLabelValues(limit).Inc()
}

func (m *Metrics) TwoFactorEvent(event string) {
	if m == nil {
		return
	}
	m.twoFactorEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) AuditAppendFailure() {
	if m == nil {
		return
	}
	m.auditAppendFails.Inc()
}
