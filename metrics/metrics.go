// Package metrics exports cache and optimizer activity to Prometheus.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/krisalay/ops-engine/errs"
	"github.com/krisalay/ops-engine/types"
)

// DefaultNamespace prefixes every metric name when none is configured.
const DefaultNamespace = "opsengine"

// Collector holds all Prometheus metrics for one engine. It implements types.Metrics
// so the cache store can report into it directly.
type Collector struct {
	// Cache metrics
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	CacheEvictions   prometheus.Counter
	CacheExpirations prometheus.Counter
	CacheSize        prometheus.Gauge

	// Optimizer metrics
	OperationsTotal   *prometheus.CounterVec
	OperationErrors   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
}

var _ types.Metrics = (*Collector)(nil)

// New registers a Collector on reg. Registering two collectors with the same
// namespace on one registry panics, as promauto does.
func New(namespace string, reg prometheus.Registerer) *Collector {
	c, err := Register(namespace, reg)
	if err != nil {
		panic(err)
	}
	return c
}

// Register is New that returns registration conflicts instead of panicking. On
// error nothing stays registered on reg.
func Register(namespace string, reg prometheus.Registerer) (*Collector, error) {
	c := newCollector(namespace)
	var done []prometheus.Collector
	for _, m := range c.collectors() {
		if err := reg.Register(m); err != nil {
			for _, r := range done {
				reg.Unregister(r)
			}
			return nil, fmt.Errorf("register %s metrics: %w", namespace, err)
		}
		done = append(done, m)
	}
	return c, nil
}

func (c *Collector) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.CacheHits, c.CacheMisses, c.CacheEvictions, c.CacheExpirations, c.CacheSize,
		c.OperationsTotal, c.OperationErrors, c.OperationDuration,
	}
}

// newCollector builds the metrics without registering them.
func newCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	f := promauto.With(nil)
	return &Collector{
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache lookups that found a live entry",
		}),
		CacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache lookups that found nothing or an expired entry",
		}),
		CacheEvictions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Total number of entries evicted to make room",
		}),
		CacheExpirations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_expirations_total",
			Help:      "Total number of entries removed because their TTL elapsed",
		}),
		CacheSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Number of entries currently cached",
		}),

		OperationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Optimizer calls by operation and result source",
		}, []string{"operation", "source"}),
		OperationErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Failed optimizer calls by operation and error kind",
		}, []string{"operation", "kind"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Optimizer call duration by operation and result source",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 10),
		}, []string{"operation", "source"}),
	}
}

func (c *Collector) Hit()       { c.CacheHits.Inc() }
func (c *Collector) Miss()      { c.CacheMisses.Inc() }
func (c *Collector) Eviction()  { c.CacheEvictions.Inc() }
func (c *Collector) Expire()    { c.CacheExpirations.Inc() }
func (c *Collector) Size(n int) { c.CacheSize.Set(float64(n)) }

// RecordOperation records a successful optimizer call. cached tells whether the
// result came from the cache.
func (c *Collector) RecordOperation(op string, cached bool, d time.Duration) {
	source := "computed"
	if cached {
		source = "cache"
	}
	c.OperationsTotal.WithLabelValues(op, source).Inc()
	c.OperationDuration.WithLabelValues(op, source).Observe(d.Seconds())
}

// RecordError counts a failed optimizer call under the kind of its error.
func (c *Collector) RecordError(op string, err error) {
	c.OperationErrors.WithLabelValues(op, ErrorKind(err)).Inc()
}

// ErrorKind labels err as "invalid", "computation" or "other".
func ErrorKind(err error) string {
	switch {
	case errs.IsInvalid(err):
		return "invalid"
	case errs.IsComputation(err):
		return "computation"
	default:
		return "other"
	}
}
