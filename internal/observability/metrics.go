// File: internal/observability/metrics.go
package observability

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/xkilldash9x/rehydrate/internal/harness"
)

const namespace = "rehydrate"

// Metrics collects run metrics on a private registry. It satisfies
// suite.Observer.
type Metrics struct {
	registry  *prometheus.Registry
	scenarios *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	settles   *prometheus.HistogramVec
}

// NewMetrics creates a registry with the scenario and settle collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		scenarios: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenarios_total",
			Help:      "Scenarios finished, by driver and outcome.",
		}, []string{"driver", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scenario_duration_seconds",
			Help:      "Wall time of each scenario.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}, []string{"driver"}),
		settles: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settle_duration_seconds",
			Help:      "Time spent waiting for asynchronous page work to finish.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"result"}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ScenarioFinished(driver, status string, d time.Duration) {
	m.scenarios.WithLabelValues(driver, status).Inc()
	if status != "skipped" {
		m.duration.WithLabelValues(driver).Observe(d.Seconds())
	}
}

func (m *Metrics) SettleObserved(elapsed time.Duration, err error) {
	m.settles.WithLabelValues(settleResult(err)).Observe(elapsed.Seconds())
}

func settleResult(err error) string {
	var timeout *harness.SettleTimeoutError
	switch {
	case err == nil:
		return "settled"
	case errors.As(err, &timeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

// WriteTextfile writes the metrics in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
