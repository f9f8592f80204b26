package pipeline

import (
	"fmt"

	"presswatch/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// MetricsNamespace is the namespace for all crawl metrics.
	MetricsNamespace = "presswatch"

	// MetricsSubsystem is the subsystem for crawl metrics.
	MetricsSubsystem = "crawl"
)

// Metrics holds the Prometheus metrics of crawl runs.
type Metrics struct {
	registry *prometheus.Registry

	RecordsAdded    *prometheus.CounterVec
	Duplicates      *prometheus.CounterVec
	PagesFetched    *prometheus.CounterVec
	SourceFailures  *prometheus.CounterVec
	SourceDuration  *prometheus.HistogramVec
	LastRunUnixtime prometheus.Gauge
	LastRunFailed   prometheus.Gauge
}

// NewMetrics creates metrics registered on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	labels := []string{"source"}

	return &Metrics{
		registry: reg,
		RecordsAdded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "records_added_total",
			Help:      "Records appended to the master store",
		}, labels),
		Duplicates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "duplicates_total",
			Help:      "Crawled records skipped because their key was already stored",
		}, labels),
		PagesFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "pages_fetched_total",
			Help:      "Listing pages fetched",
		}, labels),
		SourceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "source_failures_total",
			Help:      "Sources that ended with an error",
		}, labels),
		SourceDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "source_duration_seconds",
			Help:      "Time spent crawling and ingesting one source",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}, labels),
		LastRunUnixtime: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
		LastRunFailed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "last_run_failed_sources",
			Help:      "Number of sources that failed in the last run",
		}),
	}
}

// Registry returns the registry the metrics live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveSource records one source report.
func (m *Metrics) ObserveSource(r models.SourceReport) {
	m.RecordsAdded.WithLabelValues(r.Source).Add(float64(r.Added))
	m.Duplicates.WithLabelValues(r.Source).Add(float64(r.Duplicates))
	m.PagesFetched.WithLabelValues(r.Source).Add(float64(r.Pages))
	m.SourceDuration.WithLabelValues(r.Source).Observe(r.Duration.Seconds())

	if !r.Success {
		m.SourceFailures.WithLabelValues(r.Source).Inc()
	}
}

// ObserveRun records run-wide gauges.
func (m *Metrics) ObserveRun(r models.RunReport) {
	_, _, failed := r.Totals()
	m.LastRunFailed.Set(float64(failed))
	m.LastRunUnixtime.Set(float64(r.FinishedAt.Unix()))
}

// WriteTextfile writes all metrics in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}

	return nil
}
