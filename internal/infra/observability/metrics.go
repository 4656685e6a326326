package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the movements API.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	storeErrors     *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	csvExports      prometheus.Counter
	authzDenials    *prometheus.CounterVec
}

// StatsSnapshot is a point-in-time read of the cumulative counters,
// served on the ops endpoint.
type StatsSnapshot struct {
	CSVExports        float64 `json:"csvExports"`
	ReportCacheHits   float64 `json:"reportCacheHits"`
	ReportCacheMisses float64 `json:"reportCacheMisses"`
	ForbiddenDenials  float64 `json:"forbiddenDenials"`
	StoreErrors       float64 `json:"storeErrors"`
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "movements_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "movements_store_errors_total",
				Help: "Total errors from the persistence layer.",
			},
			[]string{"operation"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "movements_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "movements_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		csvExports: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "movements_csv_exports_total",
				Help: "Total CSV report exports served.",
			},
		),
		authzDenials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "movements_authz_denials_total",
				Help: "Total denied operations by kind.",
			},
			[]string{"kind"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrStoreError increments the persistence error counter.
func (m *Metrics) IncrStoreError(operation string) {
	m.storeErrors.WithLabelValues(operation).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrCSVExport increments the export counter.
func (m *Metrics) IncrCSVExport() {
	m.csvExports.Inc()
}

// IncrAuthzDenial increments the denial counter for a denial kind
// ("unauthenticated", "forbidden").
func (m *Metrics) IncrAuthzDenial(kind string) {
	m.authzDenials.WithLabelValues(kind).Inc()
}

// GetStatsSnapshot returns current counter values for the ops endpoint.
func (m *Metrics) GetStatsSnapshot() *StatsSnapshot {
	var storeErrs float64
	mfs, err := m.Registry.Gather()
	if err == nil {
		for _, mf := range mfs {
			if mf.GetName() == "movements_store_errors_total" {
				for _, metric := range mf.GetMetric() {
					if metric.Counter != nil && metric.Counter.Value != nil {
						storeErrs += *metric.Counter.Value
					}
				}
			}
		}
	}

	return &StatsSnapshot{
		CSVExports:        getCounterValue(m.csvExports),
		ReportCacheHits:   getVecCounterValue(m.cacheHits, "report"),
		ReportCacheMisses: getVecCounterValue(m.cacheMisses, "report"),
		ForbiddenDenials:  getVecCounterValue(m.authzDenials, "forbidden"),
		StoreErrors:       storeErrs,
	}
}

// getCounterValue extracts the current float64 value from a Counter.
func getCounterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

// getVecCounterValue extracts the current value from a CounterVec for a label.
func getVecCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
