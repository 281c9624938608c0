// Package metrics exposes the service's Prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	spottings      prometheus.Counter
	awards         *prometheus.CounterVec
	awardFailures  *prometheus.CounterVec
	classification *prometheus.CounterVec
	jobs           *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New registers every collector, plus the Go and process collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		spottings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wildspot", Name: "spottings_recorded_total",
			Help: "Spottings stored.",
		}),
		awards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wildspot", Name: "badges_awarded_total",
			Help: "Badge awards granted, by criteria.",
		}, []string{"criteria"}),
		awardFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wildspot", Name: "award_failures_total",
			Help: "Award grants that failed and were queued for retry, by criteria.",
		}, []string{"criteria"}),
		classification: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wildspot", Name: "classifications_total",
			Help: "Classifier calls, by provider and outcome.",
		}, []string{"provider", "outcome"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wildspot", Name: "jobs_processed_total",
			Help: "Background jobs processed, by type and result.",
		}, []string{"type", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wildspot", Name: "http_requests_total",
			Help: "HTTP requests, by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wildspot", Name: "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.spottings, m.awards, m.awardFailures, m.classification, m.jobs,
		m.httpRequests, m.httpDuration,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) SpottingRecorded() {
	if m == nil {
		return
	}
	m.spottings.Inc()
}

func (m *Metrics) BadgeAwarded(criteria string) {
	if m == nil {
		return
	}
	m.awards.WithLabelValues(criteria).Inc()
}

func (m *Metrics) AwardFailed(criteria string) {
	if m == nil {
		return
	}
	m.awardFailures.WithLabelValues(criteria).Inc()
}

func (m *Metrics) Classified(provider, outcome string) {
	if m == nil {
		return
	}
	m.classification.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) JobProcessed(jobType string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.jobs.WithLabelValues(jobType, result).Inc()
}

// ObserveHTTP records one served request. route is the mux path template, not the raw path.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
