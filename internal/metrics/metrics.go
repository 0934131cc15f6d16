package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamRequestDuration *prometheus.HistogramVec
	MirrorFailoversTotal    *prometheus.CounterVec

	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	RateLimitHitsTotal *prometheus.CounterVec

	factory promauto.Factory
}

// CacheStats - счётчики кеша, которые читаются при каждом scrape
type CacheStats interface {
	Len() int
	Evictions() int64
}

// New регистрирует коллекторы в reg. В тестах передаём prometheus.NewRegistry(),
// иначе повторная регистрация в дефолтном реестре паникует.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_proxy_requests_total",
				Help: "Total number of search requests processed",
			},
			[]string{"kind", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_proxy_request_duration_seconds",
				Help:    "Search request duration in seconds",
				Buckets: []float64{0.005, 0.05, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"kind"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "search_proxy_requests_in_flight",
				Help: "Number of search requests currently being processed",
			},
		),

		UpstreamRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_proxy_upstream_requests_total",
				Help: "Total number of upstream provider requests",
			},
			[]string{"engine", "kind", "status"},
		),
		UpstreamRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_proxy_upstream_request_duration_seconds",
				Help:    "Upstream provider request duration in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
			},
			[]string{"engine"},
		),
		MirrorFailoversTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_proxy_mirror_failovers_total",
				Help: "Total number of times a request moved on to the next mirror",
			},
			[]string{"engine", "kind"},
		),

		CacheHitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "search_proxy_cache_hits_total",
				Help: "Total number of cache hits",
			},
		),
		CacheMissesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "search_proxy_cache_misses_total",
				Help: "Total number of cache misses",
			},
		),

		RateLimitHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_proxy_rate_limit_hits_total",
				Help: "Total number of rate limit rejections",
			},
			[]string{"kind"},
		),

		factory: factory,
	}

	return m
}

// ObserveCache регистрирует размер кеша и число вытеснений (LRU, TTL).
// Вызывать один раз на кеш.
func (m *Metrics) ObserveCache(c CacheStats) {
	m.factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "search_proxy_cache_entries",
			Help: "Number of envelopes currently cached",
		},
		func() float64 { return float64(c.Len()) },
	)
	m.factory.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "search_proxy_cache_evictions_total",
			Help: "Total number of cache entries evicted by capacity or TTL",
		},
		func() float64 { return float64(c.Evictions()) },
	)
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordRequest(kind, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(kind, status).Inc()
	m.RequestDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func (m *Metrics) RecordUpstreamRequest(engine, kind, status string, duration time.Duration) {
	m.UpstreamRequestsTotal.WithLabelValues(engine, kind, status).Inc()
	m.UpstreamRequestDuration.WithLabelValues(engine).Observe(duration.Seconds())
}

func (m *Metrics) RecordMirrorFailover(engine, kind string) {
	m.MirrorFailoversTotal.WithLabelValues(engine, kind).Inc()
}

func (m *Metrics) RecordCacheHit() {
	m.CacheHitsTotal.Inc()
}

func (m *Metrics) RecordCacheMiss() {
	m.CacheMissesTotal.Inc()
}

func (m *Metrics) RecordRateLimitHit(kind string) {
	m.RateLimitHitsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncRequestsInFlight() {
	m.RequestsInFlight.Inc()
}

func (m *Metrics) DecRequestsInFlight() {
	m.RequestsInFlight.Dec()
}
