// Package metrics exposes the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bikeshare"

// Plan outcomes
const (
	OutcomeOK         = "ok"
	OutcomeInfeasible = "infeasible"
	OutcomeError      = "error"
)

// Registry holds all metrics for the application
type Registry struct {
	registry *prometheus.Registry

	// HTTP Metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Session Metrics
	SessionsActive prometheus.Gauge

	// Graph Metrics
	GraphBuildDuration prometheus.Histogram
	GraphEdges         prometheus.Histogram

	// Routing and redistribution
	RoutesTotal  *prometheus.CounterVec
	PlansTotal   *prometheus.CounterVec
	PlanCostKm   prometheus.Histogram
	PlanDuration prometheus.Histogram

	// Station data
	StationFetchTotal    *prometheus.CounterVec
	StationFetchDuration prometheus.Histogram
}

// NewRegistry creates a registry with every collector registered
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{registry: reg}
	r.initHTTPMetrics()
	r.initDomainMetrics()

	return r
}

func (r *Registry) initHTTPMetrics() {
	r.HTTPRequestsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	r.HTTPRequestDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
}

func (r *Registry) initDomainMetrics() {
	r.SessionsActive = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of live sessions",
		},
	)

	r.GraphBuildDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "graph_build_duration_seconds",
			Help:      "Time spent building proximity graphs",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
	)

	r.GraphEdges = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "graph_edges",
			Help:      "Edge count of built proximity graphs",
			Buckets:   prometheus.ExponentialBuckets(10, 4, 8),
		},
	)

	r.RoutesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routes_total",
			Help:      "Route requests by outcome",
		},
		[]string{"outcome"},
	)

	r.PlansTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plans_total",
			Help:      "Redistribution plans by outcome",
		},
		[]string{"outcome"},
	)

	r.PlanCostKm = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "plan_cost_km",
			Help:      "Total cost of successful redistribution plans",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		},
	)

	r.PlanDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "plan_duration_seconds",
			Help:      "Time spent building and solving redistribution networks",
			Buckets:   prometheus.DefBuckets,
		},
	)

	r.StationFetchTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "station_fetch_total",
			Help:      "Station feed fetches by status",
		},
		[]string{"status"},
	)

	r.StationFetchDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "station_fetch_duration_seconds",
			Help:      "Time spent fetching station feeds",
			Buckets:   prometheus.DefBuckets,
		},
	)
}

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordGraphBuild records a proximity graph (re)build
func (r *Registry) RecordGraphBuild(edges int, duration time.Duration) {
	r.GraphBuildDuration.Observe(duration.Seconds())
	r.GraphEdges.Observe(float64(edges))
}

// RecordRoute records a route request outcome
func (r *Registry) RecordRoute(outcome string) {
	r.RoutesTotal.WithLabelValues(outcome).Inc()
}

// RecordPlan records a redistribution plan; cost is only observed for successful plans
func (r *Registry) RecordPlan(outcome string, costKm float64, duration time.Duration) {
	r.PlansTotal.WithLabelValues(outcome).Inc()
	r.PlanDuration.Observe(duration.Seconds())
	if outcome == OutcomeOK {
		r.PlanCostKm.Observe(costKm)
	}
}

// RecordStationFetch records a station feed fetch
func (r *Registry) RecordStationFetch(status string, duration time.Duration) {
	r.StationFetchTotal.WithLabelValues(status).Inc()
	r.StationFetchDuration.Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
