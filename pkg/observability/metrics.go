package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the realtime layer.
type Metrics struct {
	// Store command metrics
	StoreOpsTotal   *prometheus.CounterVec
	StoreOpDuration *prometheus.HistogramVec

	// Trending metrics
	TrendingBumpsTotal *prometheus.CounterVec

	// Activity metrics
	ActivityPushesTotal *prometheus.CounterVec
	ActivityTrimsTotal  prometheus.Counter

	// Alert metrics
	AlertsRaisedTotal    *prometheus.CounterVec
	AlertsPublishedTotal prometheus.Counter
	AlertsSweptTotal     prometheus.Counter

	// Rate limit metrics
	RateLimitDecisionsTotal *prometheus.CounterVec

	// Hot cache metrics
	HotCacheHitsTotal   prometheus.Counter
	HotCacheMissesTotal prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics. Passing nil uses a
// fresh registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		StoreOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "psm_store_ops_total",
				Help: "Total store commands by operation and status",
			},
			[]string{"op", "status"},
		),
		StoreOpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "psm_store_op_duration_seconds",
				Help:    "Store command latency by operation",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"op"},
		),
		TrendingBumpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "psm_trending_bumps_total",
				Help: "Trending score increments by item type and timeframe",
			},
			[]string{"item_type", "timeframe"},
		),
		ActivityPushesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "psm_activity_pushes_total",
				Help: "Activity records pushed by scope",
			},
			[]string{"scope"},
		),
		ActivityTrimsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "psm_activity_trims_total",
				Help: "Activity stream trims triggered by the soft bound",
			},
		),
		AlertsRaisedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "psm_alerts_raised_total",
				Help: "Alerts persisted by priority",
			},
			[]string{"priority"},
		),
		AlertsPublishedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "psm_alerts_published_total",
				Help: "Alert payloads broadcast on pub/sub channels",
			},
		),
		AlertsSweptTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "psm_alerts_swept_total",
				Help: "Alerts removed by retention sweeps",
			},
		),
		RateLimitDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "psm_ratelimit_decisions_total",
				Help: "Rate limit check outcomes (allowed, denied, failopen)",
			},
			[]string{"outcome"},
		),
		HotCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "psm_hotcache_hits_total",
				Help: "Metrics snapshot hot-cache hits",
			},
		),
		HotCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "psm_hotcache_misses_total",
				Help: "Metrics snapshot hot-cache misses",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.StoreOpsTotal,
		m.StoreOpDuration,
		m.TrendingBumpsTotal,
		m.ActivityPushesTotal,
		m.ActivityTrimsTotal,
		m.AlertsRaisedTotal,
		m.AlertsPublishedTotal,
		m.AlertsSweptTotal,
		m.RateLimitDecisionsTotal,
		m.HotCacheHitsTotal,
		m.HotCacheMissesTotal,
	)

	return m
}

// ObserveOp implements the store package's Observer interface.
func (m *Metrics) ObserveOp(op string, err error, elapsed time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.StoreOpsTotal.WithLabelValues(op, status).Inc()
	m.StoreOpDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
