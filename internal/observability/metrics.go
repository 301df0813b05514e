// Package observability holds the Prometheus metrics shared by the slicer's
// components. Logging comes from storm-data-shared/observability.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "case_slicer"

// Metrics holds the Prometheus counters, histograms, and gauges for a slicing run.
type Metrics struct {
	RecordsRead      *prometheus.CounterVec // labels: feed={linelist,cumulative}
	RecordsRejected  *prometheus.CounterVec // labels: reason
	UnknownCountries prometheus.Counter
	ClampedCells     prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// Artifact metrics.
	ArtifactsWritten *prometheus.CounterVec // labels: kind={daily,country,location_info}
	ArtifactsSkipped *prometheus.CounterVec // labels: kind={daily,country}
	SlicesPublished  prometheus.Counter
	RunDuration      prometheus.Histogram
	StageDuration    *prometheus.HistogramVec // labels: stage

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		RecordsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_read_total",
			Help:      "Rows decoded from each upstream feed.",
		}, []string{"feed"}),
		RecordsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_rejected_total",
			Help:      "Line-list rows dropped by the cleaner, by reason.",
		}, []string{"reason"}),
		UnknownCountries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_countries_total",
			Help:      "Distinct country names missing from the reference table.",
		}),
		ClampedCells: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clamped_cells_total",
			Help:      "Negative cumulative-feed differences replaced by zero.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		ArtifactsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_written_total",
			Help:      "Output files written, by kind.",
		}, []string{"kind"}),
		ArtifactsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_skipped_total",
			Help:      "Output files left untouched because they already existed, by kind.",
		}, []string{"kind"}),
		SlicesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slices_published_total",
			Help:      "Daily slices published to Kafka.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete slicing run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"stage"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when blank city names are filled by reverse geocoding, 0 otherwise.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RecordsRead,
		m.RecordsRejected,
		m.UnknownCountries,
		m.ClampedCells,
		m.PipelineRunning,
		m.ArtifactsWritten,
		m.ArtifactsSkipped,
		m.SlicesPublished,
		m.RunDuration,
		m.StageDuration,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	}
}

// NewMetrics creates and registers all run metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics on a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}
