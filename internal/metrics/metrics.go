package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "selfimprove"

// #region metrics
// Metrics holds the orchestrator's prometheus collectors.
type Metrics struct {
	Iterations    *prometheus.CounterVec
	PhaseDuration *prometheus.HistogramVec
	Votes         *prometheus.CounterVec
	Vetoes        *prometheus.CounterVec
	Reverts       prometheus.Counter
	CallFailures  *prometheus.CounterVec
	Score         prometheus.Gauge
	CategoryScore *prometheus.GaugeVec
	RegressionPP  prometheus.Histogram
}

// New registers the collectors on reg. A nil reg uses a private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		Iterations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "iterations_total",
			Help:      "Completed iterations by outcome",
		}, []string{"outcome"}),
		PhaseDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of each orchestrator phase",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"phase"}),
		Votes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_total",
			Help:      "Reviewer votes by role and verdict",
		}, []string{"role", "verdict"}),
		Vetoes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_vetoes_total",
			Help:      "Gate vetoes by type",
		}, []string{"type"}),
		Reverts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reverts_total",
			Help:      "Patches reverted after a regression",
		}),
		CallFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_failures_total",
			Help:      "Collaborator call failures by phase",
		}, []string{"phase"}),
		Score: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "kept_score",
			Help:      "Overall score of the currently kept state",
		}),
		CategoryScore: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "category_score",
			Help:      "Last measured score per category",
		}, []string{"category"}),
		RegressionPP: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "max_regression_pp",
			Help:      "Worst per-category drop after each applied patch, in percentage points",
			Buckets:   []float64{0, 1, 2.5, 5, 10, 20, 50},
		}),
	}
}

// #endregion metrics

// #region recorders
// ObservePhase records how long a phase took. Safe on a nil receiver.
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// IterationDone counts an iteration outcome.
func (m *Metrics) IterationDone(outcome string) {
	if m == nil {
		return
	}
	m.Iterations.WithLabelValues(outcome).Inc()
}

// Vote counts one reviewer vote.
func (m *Metrics) Vote(role, verdict string) {
	if m == nil {
		return
	}
	m.Votes.WithLabelValues(role, verdict).Inc()
}

// Veto counts one gate veto.
func (m *Metrics) Veto(vetoType string) {
	if m == nil {
		return
	}
	m.Vetoes.WithLabelValues(vetoType).Inc()
}

// Reverted counts one revert.
func (m *Metrics) Reverted() {
	if m == nil {
		return
	}
	m.Reverts.Inc()
}

// CallFailed counts a collaborator failure in phase.
func (m *Metrics) CallFailed(phase string) {
	if m == nil {
		return
	}
	m.CallFailures.WithLabelValues(phase).Inc()
}

// Regression records the worst drop seen after applying a patch.
func (m *Metrics) Regression(pp float64) {
	if m == nil {
		return
	}
	m.RegressionPP.Observe(pp)
}

// Scores sets the kept overall score and per-category gauges.
func (m *Metrics) Scores(overall float64, categories map[string]float64) {
	if m == nil {
		return
	}
	m.Score.Set(overall)
	for cat, v := range categories {
		m.CategoryScore.WithLabelValues(cat).Set(v)
	}
}

// #endregion recorders
