// Package metrics exposes Prometheus counters for order transitions, imports and exports.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the service counters. A nil *Metrics records nothing.
type Metrics struct {
	orderTransitions *prometheus.CounterVec
	importRows       *prometheus.CounterVec
	exportAttempts   *prometheus.CounterVec
	exportBranches   *prometheus.CounterVec
}

// New registers the counters on reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		orderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coopmart",
			Name:      "order_transitions_total",
			Help:      "Order status transitions by source and target status.",
		}, []string{"from", "to"}),
		importRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coopmart",
			Name:      "import_rows_total",
			Help:      "Imported rows by sheet kind and outcome.",
		}, []string{"kind", "outcome"}),
		exportAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coopmart",
			Name:      "export_aggregation_attempts_total",
			Help:      "Aggregation calls made during exports by result.",
		}, []string{"result"}),
		exportBranches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coopmart",
			Name:      "export_branches_total",
			Help:      "Branches exported by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.orderTransitions, m.importRows, m.exportAttempts, m.exportBranches)
	return m
}

func (m *Metrics) OrderTransition(from, to string) {
	if m == nil {
		return
	}
	m.orderTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) ImportRows(kind, outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.importRows.WithLabelValues(kind, outcome).Add(float64(n))
}

func (m *Metrics) ExportAttempt(result string) {
	if m == nil {
		return
	}
	m.exportAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) ExportBranch(outcome string) {
	if m == nil {
		return
	}
	m.exportBranches.WithLabelValues(outcome).Inc()
}
