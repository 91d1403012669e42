// package metrics holds the prometheus collectors shared by the mirror, cache and dispatch layers.
//
// All methods are safe on a nil *Metrics so components can run without instrumentation.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "polychrome"

// Metrics groups the collectors registered on one registry.
type Metrics struct {
	registry         *prometheus.Registry
	cacheRequests    *prometheus.CounterVec
	dispatchAttempts *prometheus.CounterVec
	usableMirrors    prometheus.Gauge
	rankingDuration  prometheus.Histogram
	httpRequests     *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Response cache lookups by tier and result.",
		}, []string{"tier", "result"}),
		dispatchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_attempts_total",
			Help:      "Upstream request attempts by outcome.",
		}, []string{"outcome"}),
		usableMirrors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mirrors_usable",
			Help:      "Mirrors reachable in the latest ranking.",
		}),
		rankingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mirror_ranking_seconds",
			Help:      "Wall time of a full mirror ranking pass.",
			Buckets:   prometheus.DefBuckets,
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests served by method and status code.",
		}, []string{"method", "code"}),
	}

	m.registry.MustRegister(m.cacheRequests, m.dispatchAttempts, m.usableMirrors, m.rankingDuration, m.httpRequests)
	return m
}

// CacheLookup counts a lookup against tier ("fast", "durable", "stream") with result "hit" or "miss".
func (m *Metrics) CacheLookup(tier, result string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(tier, result).Inc()
}

// DispatchAttempt counts one upstream attempt by outcome (ok, rate_limited, retry, status, network, canceled).
func (m *Metrics) DispatchAttempt(outcome string) {
	if m == nil {
		return
	}
	m.dispatchAttempts.WithLabelValues(outcome).Inc()
}

// RankingCompleted records a finished ranking pass.
func (m *Metrics) RankingCompleted(usable int, seconds float64) {
	if m == nil {
		return
	}
	m.usableMirrors.Set(float64(usable))
	m.rankingDuration.Observe(seconds)
}

// HTTPRequest counts a served API request.
func (m *Metrics) HTTPRequest(method string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
