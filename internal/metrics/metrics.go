// Package metrics holds the Prometheus collectors of the sandbox.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Execution outcomes recorded by ObserveExecution.
const (
	OutcomeValue      = "value"
	OutcomeStructured = "structured"
	OutcomeError      = "error"
	OutcomeEmpty      = "empty"
	OutcomeKilled     = "killed"
)

// Metrics holds all sandbox collectors.
type Metrics struct {
	Executions        *prometheus.CounterVec
	ExecutionDuration prometheus.Histogram
	GasUsed           prometheus.Histogram
	SandboxesActive   prometheus.Gauge
	BootstrapLoads    *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Executions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sandbox_executions_total",
				Help: "Total number of executions by outcome",
			},
			[]string{"outcome"},
		),
		ExecutionDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sandbox_execution_duration_seconds",
				Help:    "Wall time of executions in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
		),
		GasUsed: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sandbox_gas_used",
				Help:    "Gas counter of a sandbox at the end of an execution",
				Buckets: prometheus.ExponentialBuckets(1, 10, 8),
			},
		),
		SandboxesActive: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "sandbox_active",
				Help: "Number of sandboxes not yet released",
			},
		),
		BootstrapLoads: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sandbox_bootstrap_loads_total",
				Help: "Bootstrap loads by result",
			},
			[]string{"result"},
		),
	}
}

// NewNop returns collectors registered with a private registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// ObserveExecution records one finished execution.
func (m *Metrics) ObserveExecution(outcome string, d time.Duration, gas uint64) {
	m.Executions.WithLabelValues(outcome).Inc()
	m.ExecutionDuration.Observe(d.Seconds())
	m.GasUsed.Observe(float64(gas))
}

// ObserveBootstrap records a bootstrap load; result is "ok" or the failing
// stage ("read", "compile", "run").
func (m *Metrics) ObserveBootstrap(result string) {
	m.BootstrapLoads.WithLabelValues(result).Inc()
}
