package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/infrastructure/breaker"
)

// Collector holds all Prometheus metrics for the service. Each Collector
// owns its registry so tests can build as many as they like.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Cache metrics
	CacheHits      *prometheus.CounterVec
	CacheMisses    *prometheus.CounterVec
	CacheEvictions *prometheus.CounterVec
	CacheEntries   *prometheus.GaugeVec

	// Replica metrics
	Queries       *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	BreakerStates *prometheus.GaugeVec

	// Fan-out metrics
	BatchDuration *prometheus.HistogramVec
	BatchItems    *prometheus.CounterVec
	ItemFailures  *prometheus.CounterVec
}

// NewCollector creates a collector whose metric names carry namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Cache hits by namespace",
		}, []string{"namespace"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Cache misses by namespace",
		}, []string{"namespace"}),
		CacheEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Entries evicted to stay under the namespace size limit",
		}, []string{"namespace"}),
		CacheEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Entries currently held by namespace",
		}, []string{"namespace"}),
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replica_queries_total",
			Help:      "Read replica statements by kind and outcome",
		}, []string{"kind", "outcome"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "replica_query_duration_seconds",
			Help:      "Read replica statement latency in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2, 5, 10},
		}, []string{"kind"}),
		BreakerStates: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state: 0 closed, 1 half-open, 2 open",
		}, []string{"name"}),
		BatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fanout_batch_duration_seconds",
			Help:      "Wall time of one fan-out batch",
			Buckets:   []float64{.1, .25, .5, 1, 2, 5, 10, 30},
		}, []string{"job"}),
		BatchItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_items_total",
			Help:      "Items processed by fan-out jobs",
		}, []string{"job"}),
		ItemFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_item_failures_total",
			Help:      "Fan-out items replaced by their fallback value",
		}, []string{"job"}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.HTTPRequests,
		c.HTTPDuration,
		c.CacheHits,
		c.CacheMisses,
		c.CacheEvictions,
		c.CacheEntries,
		c.Queries,
		c.QueryDuration,
		c.BreakerStates,
		c.BatchDuration,
		c.BatchItems,
		c.ItemFailures,
	)
	return c
}

// Hit implements cache.Recorder.
func (c *Collector) Hit(namespace string) { c.CacheHits.WithLabelValues(namespace).Inc() }

// Miss implements cache.Recorder.
func (c *Collector) Miss(namespace string) { c.CacheMisses.WithLabelValues(namespace).Inc() }

// Evicted implements cache.Recorder.
func (c *Collector) Evicted(namespace string, n int) {
	c.CacheEvictions.WithLabelValues(namespace).Add(float64(n))
}

// Size implements cache.Recorder.
func (c *Collector) Size(namespace string, size int) {
	c.CacheEntries.WithLabelValues(namespace).Set(float64(size))
}

// BreakerState implements breaker.StateObserver.
func (c *Collector) BreakerState(name string, state breaker.State) {
	var v float64
	switch state {
	case breaker.StateHalfOpen:
		v = 1
	case breaker.StateOpen:
		v = 2
	}
	c.BreakerStates.WithLabelValues(name).Set(v)
}

// ObserveQuery implements replica.QueryObserver.
func (c *Collector) ObserveQuery(kind, outcome string, d time.Duration) {
	c.Queries.WithLabelValues(kind, outcome).Inc()
	c.QueryDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveBatch implements concurrency.BatchObserver.
func (c *Collector) ObserveBatch(job string, size int, d time.Duration) {
	c.BatchDuration.WithLabelValues(job).Observe(d.Seconds())
	c.BatchItems.WithLabelValues(job).Add(float64(size))
}

// ObserveItemFailure implements concurrency.BatchObserver.
func (c *Collector) ObserveItemFailure(job string) {
	c.ItemFailures.WithLabelValues(job).Inc()
}

// Registry returns the Prometheus registry for this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
