// Package metrics exposes Prometheus metrics for the HTTP server and the
// dataset.
//
// All methods are safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors, registered on a private registry so that
// several servers can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	matches  *prometheus.CounterVec
	appends  *prometheus.CounterVec
	records  prometheus.Gauge
	reloads  *prometheus.CounterVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "insurdash_http_requests_total",
			Help: "HTTP requests by route pattern and status code.",
		}, []string{"route", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "insurdash_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "insurdash_match_total",
			Help: "Match queries by outcome (matched or fallback).",
		}, []string{"kind"}),
		appends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "insurdash_append_total",
			Help: "Record appends by status.",
		}, []string{"status"}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "insurdash_records",
			Help: "Number of records in the dataset.",
		}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "insurdash_dataset_reload_total",
			Help: "Dataset reloads triggered by file changes, by status.",
		}, []string{"status"}),
	}
	m.registry.MustRegister(
		m.requests, m.latency, m.matches, m.appends, m.records, m.reloads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.latency.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveMatch records the outcome of a match query.
func (m *Metrics) ObserveMatch(kind string) {
	if m == nil {
		return
	}
	m.matches.WithLabelValues(kind).Inc()
}

// ObserveAppend records an append attempt.
func (m *Metrics) ObserveAppend(err error) {
	if m == nil {
		return
	}
	m.appends.WithLabelValues(status(err)).Inc()
}

// ObserveReload records a dataset reload attempt.
func (m *Metrics) ObserveReload(err error) {
	if m == nil {
		return
	}
	m.reloads.WithLabelValues(status(err)).Inc()
}

// SetRecords sets the dataset size.
func (m *Metrics) SetRecords(n int) {
	if m == nil {
		return
	}
	m.records.Set(float64(n))
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
