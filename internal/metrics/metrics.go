// Package metrics holds the Prometheus collectors of the dashboard.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"moneyflow/internal/cache"
)

const namespace = "moneyflow"

// Registry holds every collector and the registry they are registered in.
type Registry struct {
	reg *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	LimitUpdates    *prometheus.CounterVec
	AlertsFired     *prometheus.CounterVec
	AlertsPublished *prometheus.CounterVec
	AlertsConsumed  *prometheus.CounterVec

	RateLimited        prometheus.Counter
	SuspiciousRequests prometheus.Counter
	WebSocketClients   prometheus.Gauge
}

// New creates a registry with the Go runtime and process collectors and
// every dashboard collector registered.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route and status code",
			},
			[]string{"method", "route", "status"},
		),

		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"route"},
		),

		LimitUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "limit_updates_total",
				Help:      "Limit change requests by result",
			},
			[]string{"result"},
		),

		AlertsFired: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_fired_total",
				Help:      "Limit exceeded alerts by category",
			},
			[]string{"category"},
		),

		AlertsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_published_total",
				Help:      "Alerts published to the broker by result",
			},
			[]string{"result"},
		),

		AlertsConsumed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_consumed_total",
				Help:      "Alert messages consumed from the broker by result",
			},
			[]string{"result"},
		),

		RateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_requests_total",
				Help:      "Requests rejected by the rate limiter",
			},
		),

		SuspiciousRequests: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "suspicious_requests_total",
				Help:      "Requests flagged by the security detector",
			},
		),

		WebSocketClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "websocket_clients",
				Help:      "Connected alert stream clients",
			},
		),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.HTTPRequests,
		r.HTTPDuration,
		r.LimitUpdates,
		r.AlertsFired,
		r.AlertsPublished,
		r.AlertsConsumed,
		r.RateLimited,
		r.SuspiciousRequests,
		r.WebSocketClients,
	)
	return r
}

// ObserveHTTP records one finished request.
func (r *Registry) ObserveHTTP(method, route string, status int, d time.Duration) {
	r.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}

// Result maps an error to the "ok"/"error" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RegisterCache exposes the counters of a cache under the given name.
func (r *Registry) RegisterCache(name string, stats func() cache.Stats) {
	labels := prometheus.Labels{"cache": name}
	r.reg.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "cache_hits_total",
			Help:        "Cache hits",
			ConstLabels: labels,
		}, func() float64 { return float64(stats().Hits) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "cache_misses_total",
			Help:        "Cache misses",
			ConstLabels: labels,
		}, func() float64 { return float64(stats().Misses) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "cache_evictions_total",
			Help:        "Entries evicted to make room",
			ConstLabels: labels,
		}, func() float64 { return float64(stats().Evictions) }),
	)
}

// Gatherer returns the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
