package observability

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Scan metrics
	ScansTotal   prometheus.Counter
	ScanDuration prometheus.Histogram

	// Package metrics
	PackagesScannedTotal prometheus.Counter
	PackagesLoadedTotal  prometheus.Counter
	PackagesSkippedTotal *prometheus.CounterVec
	LoadDuration         prometheus.Histogram

	// Preload metrics
	PreloadedEntriesTotal *prometheus.CounterVec

	// Registry metrics
	LoadedPlugins prometheus.Gauge
}

// NewMetrics creates all metrics and registers them with registry when it
// is not nil
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		ScansTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "plughost_scans_total",
				Help: "Total number of plugin directory scans",
			},
		),
		ScanDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "plughost_scan_duration_seconds",
				Help:    "Plugin directory scan duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		PackagesScannedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "plughost_packages_scanned_total",
				Help: "Total number of package files considered",
			},
		),
		PackagesLoadedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "plughost_packages_loaded_total",
				Help: "Total number of packages loaded into a module",
			},
		),
		PackagesSkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plughost_packages_skipped_total",
				Help: "Total number of packages that contributed no module",
			},
			[]string{"stage"},
		),
		LoadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "plughost_package_load_duration_seconds",
				Help:    "Per-package load duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),
		PreloadedEntriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plughost_preloaded_entries_total",
				Help: "Total number of package entries materialized by the preloader",
			},
			[]string{"kind"},
		),
		LoadedPlugins: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "plughost_loaded_plugins",
				Help: "Number of modules held by the registry after the last scan",
			},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.ScansTotal,
			m.ScanDuration,
			m.PackagesScannedTotal,
			m.PackagesLoadedTotal,
			m.PackagesSkippedTotal,
			m.LoadDuration,
			m.PreloadedEntriesTotal,
			m.LoadedPlugins,
		)
	}

	return m
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(router *mux.Router, registry *prometheus.Registry) {
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods("GET")
}
