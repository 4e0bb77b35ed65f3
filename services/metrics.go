package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "pairing"

// Metrics groups the Prometheus collectors updated by the coordinator.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Redemptions counts identify calls. Labels: result (ok, not_found, already_redeemed, error)
	Redemptions *prometheus.CounterVec

	// MatchAttempts counts lock-protected matching passes.
	// Labels: result (matched, no_candidate, commit_failed, done)
	MatchAttempts *prometheus.CounterVec

	// Matches counts committed pairs
	Matches prometheus.Counter

	// Disconnects counts disconnect calls. Labels: state (unpaired, pending, matched)
	Disconnects *prometheus.CounterVec

	// Waiting is the number of pending pairings in the registry
	Waiting prometheus.Gauge

	// ActiveMatchers is the number of running matching loops
	ActiveMatchers prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "credential_redemptions_total",
			Help:      "Credential redemption attempts by result.",
		}, []string{"result"}),
		MatchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "match_attempts_total",
			Help:      "Matching attempts by result.",
		}, []string{"result"}),
		Matches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "matches_total",
			Help:      "Pairs committed by the pairing engine.",
		}),
		Disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "disconnects_total",
			Help:      "Disconnect calls by the state the client was in.",
		}, []string{"state"}),
		Waiting: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "waiting_clients",
			Help:      "Clients holding a pending pairing.",
		}),
		ActiveMatchers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_matchers",
			Help:      "Matching loops currently running.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Redemptions, m.MatchAttempts, m.Matches, m.Disconnects, m.Waiting, m.ActiveMatchers)
	}
	return m
}

func (m *Metrics) redemption(result string) {
	if m == nil {
		return
	}
	m.Redemptions.WithLabelValues(result).Inc()
}

func (m *Metrics) matchAttempt(result string) {
	if m == nil {
		return
	}
	m.MatchAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) matched() {
	if m == nil {
		return
	}
	m.Matches.Inc()
}

func (m *Metrics) disconnect(state string) {
	if m == nil {
		return
	}
	m.Disconnects.WithLabelValues(state).Inc()
}

func (m *Metrics) setWaiting(n int) {
	if m == nil {
		return
	}
	m.Waiting.Set(float64(n))
}

func (m *Metrics) matcherStarted() {
	if m == nil {
		return
	}
	m.ActiveMatchers.Inc()
}

func (m *Metrics) matcherStopped() {
	if m == nil {
		return
	}
	m.ActiveMatchers.Dec()
}
