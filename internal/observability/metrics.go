package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "crash_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	RunsTotal       *prometheus.CounterVec   // labels: outcome={success,failure}
	StageDuration   *prometheus.HistogramVec // labels: stage
	StageFailures   *prometheus.CounterVec   // labels: stage
	PipelineRunning prometheus.Gauge
	LastSuccess     prometheus.Gauge

	// Row accounting.
	RowsParsed    prometheus.Counter
	RowsKept      prometheus.Counter
	RowsFiltered  prometheus.Counter
	RowsDropped   *prometheus.CounterVec // labels: reason
	ValuesCoerced prometheus.Counter
	NullValues    prometheus.Counter

	ValidationViolations *prometheus.CounterVec // labels: rule

	// Artifacts.
	ExportBytes      prometheus.Gauge
	MapsRendered     prometheus.Counter
	RecordsPublished prometheus.Counter

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: method={forward}, outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec   // labels: method={forward}, result={hit,miss}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: method={forward}
	GeocodeEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"stage"}),
		StageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Runs that failed, by failing stage.",
		}, []string{"stage"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		RowsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_parsed_total",
			Help:      "Raw data rows read from source files.",
		}),
		RowsKept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_kept_total",
			Help:      "Rows that survived cleaning.",
		}),
		RowsFiltered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_filtered_total",
			Help:      "Rows outside the region's state filter.",
		}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Rows dropped during cleaning, by reason.",
		}, []string{"reason"}),
		ValuesCoerced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "values_coerced_total",
			Help:      "Non-null values that failed type conversion and became null.",
		}),
		NullValues: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "null_sentinels_total",
			Help:      "Null sentinel values replaced with null.",
		}),
		ValidationViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_violations_total",
			Help:      "Violated validation rules.",
		}, []string{"rule"}),
		ExportBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "export_bytes",
			Help:      "Size of the last committed export file.",
		}),
		MapsRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "maps_rendered_total",
			Help:      "Map artifacts written.",
		}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      "Records published to Kafka.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by method and outcome.",
		}, []string{"method", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by method and result.",
		}, []string{"method", "result"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method"}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when geocoding enrichment is enabled, 0 otherwise.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RunsTotal,
		m.StageDuration,
		m.StageFailures,
		m.PipelineRunning,
		m.LastSuccess,
		m.RowsParsed,
		m.RowsKept,
		m.RowsFiltered,
		m.RowsDropped,
		m.ValuesCoerced,
		m.NullValues,
		m.ValidationViolations,
		m.ExportBytes,
		m.MapsRendered,
		m.RecordsPublished,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	}
}
