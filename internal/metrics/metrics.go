package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "waterlevel_"

	ResultSuccess = "success"
	ResultInvalid = "invalid"
	ResultError   = "error"
)

// Metrics holds the service collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ingestRequests    *prometheus.CounterVec
	syncRuns          *prometheus.CounterVec
	syncLatency       *prometheus.HistogramVec
	syncedReadings    *prometheus.CounterVec
	sourceFailures    *prometheus.CounterVec
	sourceRowsDropped *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ingestRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total ingest requests by result",
			},
			[]string{"result", "outcome"},
		),
		syncRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sync_runs_total",
				Help: "Total sync runs by result",
			},
			[]string{"result"},
		),
		syncLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "sync_latency_seconds",
				Help:    "Sync latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		syncedReadings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "synced_readings_total",
				Help: "Readings merged by sync, by outcome",
			},
			[]string{"outcome"},
		),
		sourceFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "source_fetch_failures_total",
				Help: "External source fetches that failed and were reported as empty",
			},
			[]string{"source"},
		),
		sourceRowsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "source_rows_dropped_total",
				Help: "External source rows dropped while parsing, by reason",
			},
			[]string{"reason"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ingestRequests,
		m.syncRuns,
		m.syncLatency,
		m.syncedReadings,
		m.sourceFailures,
		m.sourceRowsDropped,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveIngest counts an ingest request. outcome is "inserted", "updated" or "".
func (m *Metrics) ObserveIngest(result, outcome string) {
	if m == nil {
		return
	}
	m.ingestRequests.WithLabelValues(result, outcome).Inc()
}

// ObserveSync records a finished sync run.
func (m *Metrics) ObserveSync(result string, elapsed time.Duration, inserted, updated, unchanged int) {
	if m == nil {
		return
	}
	m.syncRuns.WithLabelValues(result).Inc()
	m.syncLatency.WithLabelValues(result).Observe(elapsed.Seconds())
	if result != ResultSuccess {
		return
	}
	m.syncedReadings.WithLabelValues("inserted").Add(float64(inserted))
	m.syncedReadings.WithLabelValues("updated").Add(float64(updated))
	m.syncedReadings.WithLabelValues("unchanged").Add(float64(unchanged))
}

// SourceFailure counts a failed external source fetch.
func (m *Metrics) SourceFailure(source string) {
	if m == nil {
		return
	}
	m.sourceFailures.WithLabelValues(source).Inc()
}

// RowsDropped counts external rows dropped for reason.
func (m *Metrics) RowsDropped(reason string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.sourceRowsDropped.WithLabelValues(reason).Add(float64(n))
}
