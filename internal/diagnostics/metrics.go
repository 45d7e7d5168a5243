package diagnostics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the harness's process-wide Prometheus collectors, exposed on
// /metrics by the server the "run" command starts when metrics are enabled
// in the configuration.
type Metrics struct {
	Attempts        *prometheus.CounterVec
	GatePass        *prometheus.CounterVec
	GateFail        *prometheus.CounterVec
	BudgetRemaining *prometheus.GaugeVec
	QuickCheckDur   prometheus.Histogram
}

// NewMetrics registers and returns the harness's collectors against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cosmos_harness",
			Name:      "attempts_total",
			Help:      "Attempts processed, labeled by outcome (passed/failed).",
		}, []string{"outcome"}),
		GatePass: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cosmos_harness",
			Name:      "gate_pass_total",
			Help:      "Gate passes, labeled by gate name.",
		}, []string{"gate"}),
		GateFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cosmos_harness",
			Name:      "gate_fail_total",
			Help:      "Gate failures, labeled by gate name.",
		}, []string{"gate"}),
		BudgetRemaining: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "cosmos_harness",
			Name:      "budget_remaining",
			Help:      "Remaining budget at the start of each attempt, labeled by dimension (ms/cost_usd).",
		}, []string{"dimension"}),
		QuickCheckDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cosmos_harness",
			Name:      "quick_check_duration_seconds",
			Help:      "Quick-check command duration.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(m.Attempts, m.GatePass, m.GateFail, m.BudgetRemaining, m.QuickCheckDur)
	return m
}

// RecordGate records a gate snapshot's outcome against the metrics.
func (m *Metrics) RecordGate(gate string, passed bool) {
	if m == nil {
		return
	}
	if passed {
		m.GatePass.WithLabelValues(gate).Inc()
	} else {
		m.GateFail.WithLabelValues(gate).Inc()
	}
}

// RecordAttempt records a completed attempt's outcome.
func (m *Metrics) RecordAttempt(passed bool) {
	if m == nil {
		return
	}
	outcome := "failed"
	if passed {
		outcome = "passed"
	}
	m.Attempts.WithLabelValues(outcome).Inc()
}
