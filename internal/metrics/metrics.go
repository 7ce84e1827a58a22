// Package metrics exposes pipeline and analyzer metrics in Prometheus form.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rotisserie/eris"

	"github.com/niruguard/niruguard/internal/model"
)

// Metrics provides observability for feature builds and the analyze path.
// Every method is safe on a nil *Metrics.
type Metrics struct {
	reg *prometheus.Registry

	// Build outcomes by version and status
	RunsTotal *prometheus.CounterVec

	// Phase latencies by version and phase
	PhaseDuration *prometheus.HistogramVec

	// Last build sizes by version
	ContractsLinked     *prometheus.GaugeVec
	DroppedNoAward      *prometheus.GaugeVec
	HighRiskContracts   *prometheus.GaugeVec
	UnresolvedSuppliers *prometheus.GaugeVec

	// Last build degraded cells by version and field
	DegradedFields *prometheus.GaugeVec

	// Analyze requests by version and outcome ("scored", "unavailable")
	AnalyzeTotal *prometheus.CounterVec
}

// New creates a Metrics instance registered on its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,

		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "niruguard_build_runs_total",
			Help: "Feature builds by version and final status",
		}, []string{"version", "status"}),

		PhaseDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "niruguard_build_phase_duration_seconds",
			Help:    "Duration of feature build phases",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"version", "phase"}),

		ContractsLinked: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "niruguard_build_contracts_linked",
			Help: "Awarded contracts in the last feature table",
		}, []string{"version"}),

		DroppedNoAward: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "niruguard_build_tenders_dropped_no_award",
			Help: "Tenders without an award in the last build",
		}, []string{"version"}),

		HighRiskContracts: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "niruguard_build_high_risk_contracts",
			Help: "Contracts labelled high risk in the last build",
		}, []string{"version"}),

		UnresolvedSuppliers: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "niruguard_build_unresolved_suppliers",
			Help: "Contracts whose supplier identity could not be resolved in the last build",
		}, []string{"version"}),

		DegradedFields: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "niruguard_build_degraded_cells",
			Help: "Unparseable cells replaced with defaults in the last build",
		}, []string{"version", "field"}),

		AnalyzeTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "niruguard_analyze_requests_total",
			Help: "Single-contract analyses by version and outcome",
		}, []string{"version", "outcome"}),
	}
}

// Registry returns the registry holding every metric.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// ObservePhase records the duration of one build phase.
func (m *Metrics) ObservePhase(v model.Version, phase string, d time.Duration) {
	if m != nil {
		m.PhaseDuration.WithLabelValues(v.String(), phase).Observe(d.Seconds())
	}
}

// ObserveRun records a finished build.
func (m *Metrics) ObserveRun(run *model.Run) {
	if m == nil || run == nil {
		return
	}
	v := run.Version.String()
	m.RunsTotal.WithLabelValues(v, string(run.Status)).Inc()

	res := run.Result
	if res == nil || run.Status != model.RunStatusComplete {
		return
	}
	m.ContractsLinked.WithLabelValues(v).Set(float64(res.ContractsLinked))
	m.DroppedNoAward.WithLabelValues(v).Set(float64(res.DroppedNoAward))
	m.HighRiskContracts.WithLabelValues(v).Set(float64(res.HighRisk))
	m.UnresolvedSuppliers.WithLabelValues(v).Set(float64(res.UnresolvedSuppliers))
	for field, n := range res.DegradedFields {
		m.DegradedFields.WithLabelValues(v, field).Set(float64(n))
	}
}

// IncrementAnalyze records one single-contract analysis.
func (m *Metrics) IncrementAnalyze(v model.Version, outcome string) {
	if m != nil {
		m.AnalyzeTotal.WithLabelValues(v.String(), outcome).Inc()
	}
}

// WriteTextfile writes every metric to path in the text exposition format
// read by the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return eris.Wrapf(err, "metrics: write textfile %s", path)
	}
	return nil
}
