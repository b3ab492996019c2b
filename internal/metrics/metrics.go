// Package metrics defines the prometheus collectors shared by the client and
// the reward-ledger service. Every recorder is nil-safe so components can run
// without metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "txrelay"

// Submit records transaction submission rounds and outcomes.
type Submit struct {
	rounds   *prometheus.CounterVec
	outcomes *prometheus.CounterVec
	retries  prometheus.Histogram
	duration *prometheus.HistogramVec
}

// NewSubmit creates submission collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewSubmit(reg prometheus.Registerer) *Submit {
	m := &Submit{
		rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "submit",
			Name:      "rounds_total",
			Help:      "Sign, broadcast and confirm rounds by result.",
		}, []string{"label", "result"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "submit",
			Name:      "outcomes_total",
			Help:      "Terminal submission outcomes.",
		}, []string{"label", "outcome"}),
		retries: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "submit",
			Name:      "retries",
			Help:      "Retries used per terminal submission.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8},
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "submit",
			Name:      "duration_seconds",
			Help:      "Time from submit to terminal outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.rounds, m.outcomes, m.retries, m.duration)
	}
	return m
}

// Round records the result of one round.
func (m *Submit) Round(label, result string) {
	if m == nil {
		return
	}
	m.rounds.WithLabelValues(label, result).Inc()
}

// Outcome records a terminal outcome.
func (m *Submit) Outcome(label, outcome string, retries int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(label, outcome).Inc()
	m.retries.Observe(float64(retries))
	m.duration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// Ledger records reward grant activity.
type Ledger struct {
	grants *prometheus.CounterVec
	claims *prometheus.CounterVec
}

// NewLedger creates ledger collectors and registers them with reg.
func NewLedger(reg prometheus.Registerer) *Ledger {
	m := &Ledger{
		grants: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "grants_total",
			Help:      "Reward grant calls by reward type and result.",
		}, []string{"reward_type", "result"}),
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "claims_total",
			Help:      "Claim-all calls by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.grants, m.claims)
	}
	return m
}

// Grant records a grant result: granted, duplicate or error.
func (m *Ledger) Grant(rewardType, result string) {
	if m == nil {
		return
	}
	m.grants.WithLabelValues(rewardType, result).Inc()
}

// Claim records a claim result.
func (m *Ledger) Claim(result string) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(result).Inc()
}

// Server records HTTP requests served by the reward-ledger service.
type Server struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewServer creates HTTP collectors and registers them with reg.
func NewServer(reg prometheus.Registerer) *Server {
	m := &Server{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledgerd",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledgerd",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.latency)
	}
	return m
}

// Request records one served request.
func (m *Server) Request(route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, statusClass(code)).Inc()
	m.latency.WithLabelValues(route).Observe(elapsed.Seconds())
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
