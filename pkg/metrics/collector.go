package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector turns registry events into Prometheus metrics.
// It is both a perf.Observer and a prometheus.Collector.
type Collector struct {
	duration *prometheus.HistogramVec
	starts   *prometheus.CounterVec
	inFlight *prometheus.GaugeVec
}

// NewCollector creates a collector whose metric names are prefixed with
// namespace (e.g. "perfmark").
func NewCollector(namespace string) *Collector {
	return &Collector{
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "measurement_duration_seconds",
				Help:      "Duration of completed measurements",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
			},
			[]string{"name"},
		),
		starts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "measurement_starts_total",
				Help:      "Total measurement starts",
			},
			[]string{"name"},
		),
		inFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "measurement_in_flight",
				Help:      "1 while a measurement has a start without an end",
			},
			[]string{"name"},
		),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.duration.Describe(ch)
	c.starts.Describe(ch)
	c.inFlight.Describe(ch)
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.duration.Collect(ch)
	c.starts.Collect(ch)
	c.inFlight.Collect(ch)
}

// MeasurementStarted implements perf.Observer
func (c *Collector) MeasurementStarted(name string, at time.Time) {
	c.starts.WithLabelValues(name).Inc()
	c.inFlight.WithLabelValues(name).Set(1)
}

// MeasurementEnded implements perf.Observer
func (c *Collector) MeasurementEnded(name string, startedAt, endedAt time.Time) {
	elapsed := endedAt.Sub(startedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	c.duration.WithLabelValues(name).Observe(elapsed.Seconds())
	c.inFlight.WithLabelValues(name).Set(0)
}
