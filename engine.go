// Package opsengine is an in-process decision-support engine: it schedules tasks onto
// resources, computes market-adjusted prices and memoizes both behind a bounded,
// TTL-aware cache.
package opsengine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/apex/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/krisalay/ops-engine/api"
	"github.com/krisalay/ops-engine/cache"
	"github.com/krisalay/ops-engine/cachekey"
	"github.com/krisalay/ops-engine/config"
	"github.com/krisalay/ops-engine/engine"
	"github.com/krisalay/ops-engine/errs"
	"github.com/krisalay/ops-engine/eviction"
	"github.com/krisalay/ops-engine/expiration"
	"github.com/krisalay/ops-engine/metrics"
	"github.com/krisalay/ops-engine/pricing"
	"github.com/krisalay/ops-engine/schedule"
	"github.com/krisalay/ops-engine/types"
	"github.com/krisalay/ops-engine/writepolicy"
)

// Engine owns one result cache and the two optimizers. It is safe for concurrent use.
type Engine struct {
	store     *cache.Store
	scheduler *schedule.Optimizer
	pricer    *pricing.Optimizer
	metrics   *metrics.Collector
	logger    log.Interface
	cancel    context.CancelFunc
}

// New validates cfg and builds an Engine. The cache sweeper starts immediately; call
// Close to stop it.
func New(cfg config.Config, opts ...Option) (*Engine, error) {
	o := options{logger: log.Log}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registerer == nil {
		o.registerer = prometheus.NewRegistry()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, err := eviction.ParsePolicyType(cfg.Eviction)
	if err != nil {
		return nil, err
	}
	exp, err := expiration.New(expiration.Type(cfg.Expiration))
	if err != nil {
		return nil, err
	}
	mode, err := schedule.ParseMode(cfg.SchedulingMode)
	if err != nil {
		return nil, err
	}
	wpType, err := writepolicy.ParseType(cfg.WritePolicy)
	if err != nil {
		return nil, err
	}
	collector, err := metrics.Register(cfg.MetricsNamespace, o.registerer)
	if err != nil {
		return nil, err
	}
	// Started last: the write-back worker only stops through Close.
	wp, err := writepolicy.New(wpType, o.sink, cfg.WriteBackBuffer, o.logger)
	if err != nil {
		return nil, err
	}

	eng := engine.NewCacheEngine(exp, wp, collector, o.logger)
	if o.now != nil {
		eng.Now = o.now
	}

	ctx, cancel := context.WithCancel(context.Background())
	store := cache.New(ctx, cache.Config{
		Shards:        cfg.Shards,
		MaxSize:       cfg.MaxCacheSize,
		DefaultTTL:    cfg.DefaultTTL,
		SweepInterval: cfg.SweepInterval,
		Eviction:      policy,
	}, eng)

	e := &Engine{
		store: store,
		scheduler: schedule.New(schedule.Options{
			Mode:              mode,
			Parallel:          cfg.ParallelProcessing,
			ParallelThreshold: cfg.ParallelThreshold,
			ChunkCount:        cfg.ChunkCount,
		}, o.logger),
		pricer:  pricing.New(o.logger),
		metrics: collector,
		logger:  o.logger,
		cancel:  cancel,
	}

	o.logger.WithFields(log.Fields{
		"maxCacheSize": cfg.MaxCacheSize,
		"shards":       cfg.Shards,
		"eviction":     policy,
		"mode":         mode,
		"parallel":     cfg.ParallelProcessing,
	}).Debug("engine started")
	return e, nil
}

/*
OptimizeScheduling assigns tasks to resources.

With caching on (the default) identical inputs under the same mode and strategy are
served from the cache; ProcessingTimeMs is then the lookup time rather than the
original computation time. The returned schedule never aliases cached state.
*/
func (e *Engine) OptimizeScheduling(
	ctx context.Context,
	tasks []schedule.Task,
	resources []schedule.Resource,
	opts ...CallOption,
) (schedule.Optimization, error) {
	start := time.Now()
	co := newCallOptions(opts)

	if err := schedule.Validate(tasks, resources); err != nil {
		e.metrics.RecordError(schedule.Op, err)
		return schedule.Optimization{}, err
	}

	// The key and the computation share one snapshot of mode and strategy.
	plan := e.scheduler.Plan(len(tasks))
	compute := func(ctx context.Context) (any, error) {
		return e.scheduler.Run(ctx, plan, tasks, resources)
	}

	if !co.useCache {
		v, err := compute(ctx)
		if err != nil {
			e.metrics.RecordError(schedule.Op, err)
			return schedule.Optimization{}, err
		}
		e.metrics.RecordOperation(schedule.Op, false, time.Since(start))
		return v.(schedule.Optimization), nil
	}

	kind := fmt.Sprintf("%s/%s/%s", schedule.Op, plan.Mode, plan.Strategy)
	key, err := cachekey.Of(kind, tasks, resources)
	if err != nil {
		err = errs.Wrap(schedule.Op, err)
		e.metrics.RecordError(schedule.Op, err)
		return schedule.Optimization{}, err
	}

	v, hit, err := e.memoize(ctx, schedule.Op, key, co.ttl, compute)
	if err != nil {
		return schedule.Optimization{}, err
	}
	out := v.(schedule.Optimization).Clone()
	if hit {
		out.ProcessingTimeMs = sinceMs(start)
	}
	e.metrics.RecordOperation(schedule.Op, hit, time.Since(start))
	return out, nil
}

// OptimizePricing computes a market-adjusted price. md may be nil. Caching works as
// in OptimizeScheduling.
func (e *Engine) OptimizePricing(
	ctx context.Context,
	basePrice, demandLevel float64,
	md *pricing.MarketData,
	opts ...CallOption,
) (pricing.Optimization, error) {
	start := time.Now()
	co := newCallOptions(opts)

	if err := pricing.Validate(basePrice, demandLevel, md); err != nil {
		e.metrics.RecordError(pricing.Op, err)
		return pricing.Optimization{}, err
	}

	compute := func(context.Context) (any, error) {
		return e.pricer.Optimize(basePrice, demandLevel, md)
	}

	if !co.useCache {
		v, err := compute(ctx)
		if err != nil {
			e.metrics.RecordError(pricing.Op, err)
			return pricing.Optimization{}, err
		}
		e.metrics.RecordOperation(pricing.Op, false, time.Since(start))
		return v.(pricing.Optimization), nil
	}

	// Demand outside [0, 1] prices the same as its clamped value, and infinities
	// do not encode, so the key uses the clamped level.
	key, err := cachekey.Of(pricing.Op, basePrice, math.Max(0, math.Min(1, demandLevel)), md)
	if err != nil {
		err = errs.Wrap(pricing.Op, err)
		e.metrics.RecordError(pricing.Op, err)
		return pricing.Optimization{}, err
	}

	v, hit, err := e.memoize(ctx, pricing.Op, key, co.ttl, compute)
	if err != nil {
		return pricing.Optimization{}, err
	}
	out := v.(pricing.Optimization)
	if hit {
		out.ProcessingTimeMs = sinceMs(start)
	}
	e.metrics.RecordOperation(pricing.Op, hit, time.Since(start))
	return out, nil
}

func (e *Engine) memoize(
	ctx context.Context,
	op, key string,
	ttl time.Duration,
	compute func(context.Context) (any, error),
) (any, bool, error) {
	v, hit, err := e.store.Memoize(ctx, key, ttl, compute)
	if err != nil {
		err = errs.Wrap(op, err)
		e.metrics.RecordError(op, err)
		return nil, false, err
	}
	if !hit {
		e.logger.WithFields(log.Fields{"op": op, "key": key}).Debug("cache miss")
	}
	return v, hit, nil
}

// CacheStats reports hit/miss accounting for the result cache.
func (e *Engine) CacheStats() types.Stats {
	return e.store.Stats()
}

// ClearCache drops every cached result and resets the cache counters.
func (e *Engine) ClearCache() {
	e.store.Clear()
	e.logger.Debug("cache cleared")
}

// Cache exposes the result cache, e.g. for hosts that want to invalidate single keys.
func (e *Engine) Cache() api.Cache {
	return e.store
}

// SetParallelProcessing toggles chunked parallel scheduling for subsequent calls.
func (e *Engine) SetParallelProcessing(enabled bool) {
	e.scheduler.SetParallel(enabled)
}

// SetSchedulingMode switches between preview and reserve allocation for subsequent calls.
func (e *Engine) SetSchedulingMode(m schedule.Mode) error {
	m, err := schedule.ParseMode(string(m))
	if err != nil {
		return err
	}
	e.scheduler.SetMode(m)
	return nil
}

// Close stops the cache sweeper and flushes pending sink writes. Safe to call more
// than once.
func (e *Engine) Close() {
	e.store.Close()
	e.cancel()
}

func sinceMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
