// Package metrics defines the Prometheus metric collectors used across the
// ad search service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Query result labels for AdQueriesTotal.
const (
	ResultHit         = "hit"
	ResultZero        = "zero_result"
	ResultEmptyQuery  = "empty_query"
	ResultUnavailable = "unavailable"
	ResultRejected    = "rejected"
)

// Metrics holds all Prometheus collectors for the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	AdQueriesTotal       *prometheus.CounterVec
	AdQueryLatency       prometheus.Histogram
	AdQueryResults       prometheus.Histogram
	QueriesInFlight      prometheus.Gauge
	CatalogMissesTotal   prometheus.Counter
	StoreUnavailable     *prometheus.CounterVec
	AdsIngestedTotal     *prometheus.CounterVec
	IndexPostingsTotal   prometheus.Counter
	IngestDuration       prometheus.Histogram
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		AdQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ad_queries_total",
				Help: "Total ad selection queries by result (hit, zero_result, empty_query, unavailable, rejected).",
			},
			[]string{"result"},
		),
		AdQueryLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ad_query_latency_seconds",
				Help:    "Ad selection latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		AdQueryResults: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ad_query_results_count",
				Help:    "Number of ads returned per query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500},
			},
		),
		QueriesInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ad_queries_in_flight",
				Help: "Number of ad selection queries currently holding a slot.",
			},
		),
		CatalogMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ad_catalog_misses_total",
				Help: "Index postings whose ad id was missing from the catalog or malformed.",
			},
		),
		StoreUnavailable: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ad_store_unavailable_total",
				Help: "Store session acquisitions that failed, by store (index, catalog).",
			},
			[]string{"store"},
		),
		AdsIngestedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ads_ingested_total",
				Help: "Ingested records by outcome (accepted, skipped).",
			},
			[]string{"outcome"},
		),
		IndexPostingsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ad_index_postings_total",
				Help: "Total keyword -> ad id postings written.",
			},
		),
		IngestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ad_ingest_duration_seconds",
				Help:    "Wall time of one ingestion run.",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.AdQueriesTotal,
		m.AdQueryLatency,
		m.AdQueryResults,
		m.QueriesInFlight,
		m.CatalogMissesTotal,
		m.StoreUnavailable,
		m.AdsIngestedTotal,
		m.IndexPostingsTotal,
		m.IngestDuration,
		m.CircuitBreakerState,
	)

	return m
}

// ObserveQuery records the outcome of one ad selection.
func (m *Metrics) ObserveQuery(result string, returned int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.AdQueriesTotal.WithLabelValues(result).Inc()
	m.AdQueryLatency.Observe(elapsed.Seconds())
	m.AdQueryResults.Observe(float64(returned))
}

// CatalogMiss counts an index posting that did not resolve to an ad.
func (m *Metrics) CatalogMiss() {
	if m == nil {
		return
	}
	m.CatalogMissesTotal.Inc()
}

// StoreDown counts a failed session acquisition on store.
func (m *Metrics) StoreDown(store string) {
	if m == nil {
		return
	}
	m.StoreUnavailable.WithLabelValues(store).Inc()
}

// QueryStarted and QueryFinished bracket a query holding a concurrency slot.
func (m *Metrics) QueryStarted() {
	if m == nil {
		return
	}
	m.QueriesInFlight.Inc()
}

func (m *Metrics) QueryFinished() {
	if m == nil {
		return
	}
	m.QueriesInFlight.Dec()
}

// ObserveIngest records the totals of one ingestion run.
func (m *Metrics) ObserveIngest(accepted, skipped, postings int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.AdsIngestedTotal.WithLabelValues("accepted").Add(float64(accepted))
	m.AdsIngestedTotal.WithLabelValues("skipped").Add(float64(skipped))
	m.IndexPostingsTotal.Add(float64(postings))
	m.IngestDuration.Observe(elapsed.Seconds())
}

// SetBreakerState publishes a circuit breaker's state.
func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// Handler returns the Prometheus scrape HTTP handler for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
