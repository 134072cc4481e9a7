// Package metrics defines the Prometheus collectors exported by the service.
// A single Registry value is created in the composition root and threaded to
// the packages that record into it.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the service's collectors.
type Registry struct {
	reg *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	EngineRuns      *prometheus.CounterVec
	EngineDuration  prometheus.Histogram
	TokenRefreshes  *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Registry {
	r := &Registry{reg: prometheus.NewRegistry()}

	r.RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autodj_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "status"})

	r.RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "autodj_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	r.EngineRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autodj_engine_runs_total",
		Help: "Recommendation engine invocations by terminal outcome.",
	}, []string{"outcome"})

	r.EngineDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "autodj_engine_run_duration_seconds",
		Help:    "Wall-clock duration of engine invocations.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 45},
	})

	r.TokenRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autodj_token_refreshes_total",
		Help: "Token exchange calls by result.",
	}, []string{"result"})

	r.reg.MustRegister(r.RequestsTotal, r.RequestDuration, r.EngineRuns, r.EngineDuration, r.TokenRefreshes)
	return r
}

// Handler serves the /metrics endpoint for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveEngineRun records one engine invocation outcome.
func (r *Registry) ObserveEngineRun(outcome string, elapsed time.Duration) {
	r.EngineRuns.WithLabelValues(outcome).Inc()
	r.EngineDuration.Observe(elapsed.Seconds())
}

// ObserveRefresh records one token exchange result.
func (r *Registry) ObserveRefresh(result string) {
	r.TokenRefreshes.WithLabelValues(result).Inc()
}
