package telemetry

import (
	"fmt"
	"time"

	"github.com/The-Promised-Neverland/counterqueue/internal/models"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "counterqueue"

// Collector mirrors every sample and report outcome as Prometheus metrics.
type Collector struct {
	registry *prometheus.Registry

	queueLength   *prometheus.GaugeVec
	reports       *prometheus.CounterVec
	storeErrors   prometheus.Counter
	cycleDuration prometheus.Histogram
}

func NewCollector() (*Collector, error) {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		queueLength: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_length",
			Help:      "Length of the queue list at the last successful read",
		}, []string{"queue"}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Reports sent to the ingestion endpoint by outcome",
		}, []string{"outcome"}),
		storeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Cycles whose queue read failed",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Time spent reading and reporting, sleep excluded",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),
	}
	for _, m := range []prometheus.Collector{c.queueLength, c.reports, c.storeErrors, c.cycleDuration} {
		if err := c.registry.Register(m); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return c, nil
}

func (c *Collector) ObserveCounts(counts models.QueueCounts) {
	c.queueLength.WithLabelValues("todo").Set(float64(counts.Todo))
	c.queueLength.WithLabelValues("doing").Set(float64(counts.Doing))
	c.queueLength.WithLabelValues("failed").Set(float64(counts.Failed))
}

// ObserveReport counts one report. outcome is "accepted", "rejected" or "error".
func (c *Collector) ObserveReport(outcome string) {
	c.reports.WithLabelValues(outcome).Inc()
}

func (c *Collector) ObserveStoreError() {
	c.storeErrors.Inc()
}

func (c *Collector) ObserveCycle(d time.Duration) {
	c.cycleDuration.Observe(d.Seconds())
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
