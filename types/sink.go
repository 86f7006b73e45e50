package types

import "context"

// Sink is the contract between the cache and whatever the host uses to keep results.
type Sink interface {

	/*
		Put is called when a freshly computed result enters the cache.
		The engine never reads results back through the sink. Durability is the host's
		concern; write policies decide whether this call is synchronous.
	*/
	Put(ctx context.Context, key string, value any) error
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(ctx context.Context, key string, value any) error

// Put calls f.
func (f SinkFunc) Put(ctx context.Context, key string, value any) error {
	return f(ctx, key, value)
}
