package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sightings_map"

// Metrics holds the Prometheus counters, histograms, and gauges for the map engine.
type Metrics struct {
	// Feed loading.
	FeedFetches       *prometheus.CounterVec   // labels: source={records,population,boundaries}, outcome={success,error,decode_error}
	FeedFetchDuration *prometheus.HistogramVec // labels: source
	RecordsLoaded     prometheus.Gauge
	SessionReady      prometheus.Gauge
	FeedLoads         *prometheus.CounterVec // labels: outcome={success,error}
	RefreshRunning    prometheus.Gauge

	// View recomputation.
	Recomputes        *prometheus.CounterVec // labels: trigger={load,filter}
	RecomputeDuration prometheus.Histogram
	DataQualityNotes  *prometheus.CounterVec // labels: kind
	LayerTransitions  *prometheus.CounterVec // labels: mode={none,single,multiple}
	LegendVisible     prometheus.Gauge

	// Geocoding for nearby search.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge

	// Snapshot publishing.
	SnapshotsPublished    prometheus.Counter
	SnapshotPublishErrors prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		FeedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_fetches_total",
			Help:      "Feed fetches by source and outcome.",
		}, []string{"source", "outcome"}),
		FeedFetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_fetch_duration_seconds",
			Help:      "Duration of a feed fetch including decode.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source"}),
		RecordsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records_loaded",
			Help:      "Number of sighting records held by the session.",
		}),
		SessionReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_ready",
			Help:      "1 when all feeds have resolved and classification is possible, 0 otherwise.",
		}),
		FeedLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_loads_total",
			Help:      "Full feed load attempts by outcome.",
		}, []string{"outcome"}),
		RefreshRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "refresh_running",
			Help:      "1 while the feed refresh loop is running, 0 otherwise.",
		}),
		Recomputes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recomputes_total",
			Help:      "Full view recomputations by trigger.",
		}, []string{"trigger"}),
		RecomputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recompute_duration_seconds",
			Help:      "Duration of a filter, aggregate and classify cycle.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		DataQualityNotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_quality_notes_total",
			Help:      "Data-quality notes raised while loading feeds, by kind.",
		}, []string{"kind"}),
		LayerTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layer_transitions_total",
			Help:      "Layer visibility changes by resulting mode.",
		}, []string{"mode"}),
		LegendVisible: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "legend_visible",
			Help:      "1 while exactly one statistical layer is visible and its legend is shown.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by outcome.",
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
			Help:      "1 when nearby search geocoding is enabled, 0 otherwise.",
		}),
		SnapshotsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_published_total",
			Help:      "View snapshots written to the snapshot topic.",
		}),
		SnapshotPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_publish_errors_total",
			Help:      "Failed snapshot writes.",
		}),
	}

	prometheus.MustRegister(
		m.FeedFetches,
		m.FeedFetchDuration,
		m.RecordsLoaded,
		m.SessionReady,
		m.FeedLoads,
		m.RefreshRunning,
		m.Recomputes,
		m.RecomputeDuration,
		m.DataQualityNotes,
		m.LayerTransitions,
		m.LegendVisible,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
		m.SnapshotsPublished,
		m.SnapshotPublishErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		FeedFetches:           prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "feed_fetches_total"}, []string{"source", "outcome"}),
		FeedFetchDuration:     prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "feed_fetch_duration_seconds"}, []string{"source"}),
		RecordsLoaded:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "records_loaded"}),
		SessionReady:          prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "session_ready"}),
		FeedLoads:             prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "feed_loads_total"}, []string{"outcome"}),
		RefreshRunning:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "refresh_running"}),
		Recomputes:            prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "recomputes_total"}, []string{"trigger"}),
		RecomputeDuration:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "recompute_duration_seconds"}),
		DataQualityNotes:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "data_quality_notes_total"}, []string{"kind"}),
		LayerTransitions:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "layer_transitions_total"}, []string{"mode"}),
		LegendVisible:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "legend_visible"}),
		GeocodeRequests:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "geocode_requests_total"}, []string{"outcome"}),
		GeocodeCache:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "geocode_cache_total"}, []string{"result"}),
		GeocodeAPIDuration:    prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "geocode_api_duration_seconds"}),
		GeocodeEnabled:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "geocode_enabled"}),
		SnapshotsPublished:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "snapshots_published_total"}),
		SnapshotPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "snapshot_publish_errors_total"}),
	}
}
