// Package metrics exposes the proxy's Prometheus instrumentation.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mtreilly/discord-http-proxy/internal/ratelimit"
)

// seriesKey identifies one label combination observed by ObserveRequest, so
// its series can be dropped from every vector together once idle.
type seriesKey struct {
	method, route, status, scope string
}

// Registry holds every metric the proxy records and the registry they're
// registered against.
type Registry struct {
	reg *prometheus.Registry

	RequestsTotal        *prometheus.CounterVec
	RequestDuration      *prometheus.HistogramVec
	BucketWaitSeconds    *prometheus.HistogramVec
	RatelimiterCacheSize prometheus.GaugeFunc
	GlobalRateLimitTotal prometheus.Counter

	idle *ratelimit.ExpiringLRU[seriesKey, struct{}]
}

// New builds and registers the proxy's metrics. namespace prefixes every
// metric name (METRIC_KEY; empty means no prefix). idleTimeout, when
// positive, bounds how long an observed label combination's series are kept
// before being dropped from the registry (METRIC_TIMEOUT) — reusing the same
// ExpiringLRU decay machinery internal/ratelimit uses for bucket eviction,
// here keyed by label-set rather than by token. cacheSize is polled lazily
// whenever Prometheus scrapes, so it always reflects the live token cache
// without the ratelimit package needing to push updates.
func New(namespace string, idleTimeout time.Duration, cacheSize func() float64) *Registry {
	reg := prometheus.NewRegistry()

	m := &Registry{
		reg: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discord_proxy_requests_total",
			Help:      "Total requests proxied to the Discord API",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discord_proxy_request_duration_seconds",
			Help:      "Upstream round-trip latency, from dispatch until response headers arrive",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "scope"}),
		BucketWaitSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discord_proxy_bucket_wait_seconds",
			Help:      "Time spent queued for a rate-limit ticket before dispatch",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		GlobalRateLimitTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discord_proxy_global_rate_limit_total",
			Help:      "Total times a ratelimiter-wide global rate limit was triggered",
		}),
	}
	m.RatelimiterCacheSize = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "discord_proxy_ratelimiter_cache_size",
		Help:      "Current number of non-default-token ratelimiters held in the cache",
	}, cacheSize)

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.BucketWaitSeconds,
		m.GlobalRateLimitTotal,
		m.RatelimiterCacheSize,
	)

	if idleTimeout > 0 {
		m.idle = ratelimit.NewExpiringLRU[seriesKey, struct{}](
			ratelimit.Unbounded,
			idleTimeout,
			idleTimeout,
			ratelimit.WithOnEvict(func(k seriesKey, _ struct{}) {
				m.RequestsTotal.DeleteLabelValues(k.method, k.route, k.status)
				m.RequestDuration.DeleteLabelValues(k.method, k.route, k.scope)
			}),
		)
	}

	return m
}

// Handler serves the registry in the Prometheus text exposition format.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ObserveRequest records one completed (or failed) proxied request.
func (m *Registry) ObserveRequest(method, route, scope string, status int, took time.Duration) {
	statusStr := strconv.Itoa(status)
	m.RequestsTotal.WithLabelValues(method, route, statusStr).Inc()
	m.RequestDuration.WithLabelValues(method, route, scope).Observe(took.Seconds())
	if m.idle != nil {
		m.idle.Insert(seriesKey{method: method, route: route, status: statusStr, scope: scope}, struct{}{})
	}
}

// ObserveBucketWait records time spent waiting for a rate-limit ticket.
func (m *Registry) ObserveBucketWait(route string, wait time.Duration) {
	m.BucketWaitSeconds.WithLabelValues(route).Observe(wait.Seconds())
}

// IncGlobalRateLimit records a ratelimiter-wide 429.
func (m *Registry) IncGlobalRateLimit() {
	m.GlobalRateLimitTotal.Inc()
}

// Close stops the idle-series reaper, if one was started.
func (m *Registry) Close() {
	if m.idle != nil {
		m.idle.Close()
	}
}
