package opsengine

import (
	"time"

	"github.com/apex/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/krisalay/ops-engine/types"
)

type options struct {
	logger     log.Interface
	registerer prometheus.Registerer
	sink       types.Sink
	now        func() time.Time
}

// Option configures an Engine at construction.
type Option func(*options)

// WithLogger sets the logger used by the cache and both optimizers.
func WithLogger(l log.Interface) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer registers the engine's metrics on r instead of a private registry.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) { o.registerer = r }
}

// WithSink forwards freshly computed results to s according to the configured write
// policy. Without a sink the write policy is ignored.
func WithSink(s types.Sink) Option {
	return func(o *options) { o.sink = s }
}

// WithClock replaces the cache's time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

type callOptions struct {
	useCache bool
	ttl      time.Duration
}

// CallOption tunes a single optimization call.
type CallOption func(*callOptions)

// WithoutCache computes the result without reading or writing the cache.
func WithoutCache() CallOption {
	return func(o *callOptions) { o.useCache = false }
}

// WithTTL caches the result for d instead of the configured default.
func WithTTL(d time.Duration) CallOption {
	return func(o *callOptions) { o.ttl = d }
}

func newCallOptions(opts []CallOption) callOptions {
	co := callOptions{useCache: true}
	for _, opt := range opts {
		opt(&co)
	}
	return co
}
