package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relabs-tech/promptlib/core/browse"
	"github.com/relabs-tech/promptlib/core/directory"
	"github.com/relabs-tech/promptlib/core/logger"
)

// Metrics are the prometheus collectors of the web surface. Every Metrics has
// its own registry, so several instances can live in one process.
type Metrics struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	bootSources *prometheus.CounterVec
	submissions prometheus.Counter
	moderations *prometheus.CounterVec
}

// NewMetrics returns new metrics with the go and process collectors registered
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "promptlib",
			Name:      "http_requests_total",
			Help:      "Number of http requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "promptlib",
			Name:      "http_request_duration_seconds",
			Help:      "Latency of http requests by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		bootSources: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "promptlib",
			Name:      "boot_data_total",
			Help:      "Number of served boot data payloads by source.",
		}, []string{"source"}),
		submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "promptlib",
			Name:      "submissions_total",
			Help:      "Number of accepted prompt submissions.",
		}),
		moderations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "promptlib",
			Name:      "moderations_total",
			Help:      "Number of moderation decisions by status.",
		}, []string{"status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.latency, m.bootSources, m.submissions, m.moderations,
	)
	return m
}

// Registry returns the registry of the metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// BootServed counts boot data served from source
func (m *Metrics) BootServed(source browse.Source) {
	m.bootSources.WithLabelValues(string(source)).Inc()
}

// Submitted counts an accepted submission
func (m *Metrics) Submitted() {
	m.submissions.Inc()
}

// Moderated counts a moderation decision
func (m *Metrics) Moderated(status directory.Status) {
	m.moderations.WithLabelValues(string(status)).Inc()
}

// Middleware records count and latency of all routed requests. Requests are
// labeled with the route template, so prompt ids do not blow up the label space.
func (m *Metrics) Middleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unknown"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(rec, r)
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		m.latency.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) handleRoute(router *mux.Router) {
	logger.Default().Debugln("metrics")
	logger.Default().Debugln("  handle metrics route: /metrics GET")
	router.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})).
		Methods(http.MethodOptions, http.MethodGet)
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.wroteHeader = true
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(data []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(data)
}
