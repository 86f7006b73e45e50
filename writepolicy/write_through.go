package writepolicy

import (
	"context"

	"github.com/apex/log"

	"github.com/krisalay/ops-engine/types"
)

// WriteThroughPolicy forwards every cached result to the sink synchronously.
type WriteThroughPolicy struct {
	sink   types.Sink
	logger log.Interface
}

func NewWriteThroughPolicy(sink types.Sink, logger log.Interface) *WriteThroughPolicy {
	if logger == nil {
		logger = log.Log
	}
	return &WriteThroughPolicy{sink: sink, logger: logger}
}

// OnWrite calls the sink inline. A failing sink never fails the optimization that
// produced the result; the failure is logged.
func (w *WriteThroughPolicy) OnWrite(ctx context.Context, key string, value any) {
	if err := w.sink.Put(ctx, key, value); err != nil {
		w.logger.WithError(err).WithField("key", key).Warn("result sink write failed")
	}
}

// Close has nothing to release.
func (w *WriteThroughPolicy) Close() {}
