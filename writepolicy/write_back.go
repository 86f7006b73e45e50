package writepolicy

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/apex/log"

	"github.com/krisalay/ops-engine/types"
)

// writeReq represents one pending write that needs to be sent to the sink.
type writeReq struct {
	ctx   context.Context
	key   string
	value any
}

/*
WriteBackPolicy queues results and hands them to the sink from one background worker.
*/
type WriteBackPolicy struct {
	sink   types.Sink
	logger log.Interface

	// ch holds pending writes. When it is full new writes are dropped rather than
	// blocking the optimization path.
	ch chan writeReq

	wg        sync.WaitGroup
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool

	dropped atomic.Int64
}

// NewWriteBackPolicy creates a new write-back policy and starts its worker.
func NewWriteBackPolicy(sink types.Sink, buffer int, logger log.Interface) *WriteBackPolicy {
	if buffer <= 0 {
		buffer = 1
	}
	if logger == nil {
		logger = log.Log
	}
	w := &WriteBackPolicy{
		sink:   sink,
		logger: logger,
		ch:     make(chan writeReq, buffer),
	}

	w.wg.Add(1)
	go w.worker()

	return w
}

// OnWrite enqueues the write, or drops it when the queue is full or the policy is closed.
func (w *WriteBackPolicy) OnWrite(ctx context.Context, key string, value any) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.dropped.Add(1)
		return
	}

	// The worker may outlive the request that produced the result.
	ctx = context.WithoutCancel(ctx)

	select {
	case w.ch <- writeReq{ctx, key, value}:
	default:
		w.dropped.Add(1)
		w.logger.WithField("key", key).Debug("write-back queue full, result not forwarded")
	}
}

// Dropped returns how many writes never reached the queue.
func (w *WriteBackPolicy) Dropped() int64 {
	return w.dropped.Load()
}

// worker drains the queue until Close.
func (w *WriteBackPolicy) worker() {
	defer w.wg.Done()

	for req := range w.ch {
		if err := w.sink.Put(req.ctx, req.key, req.value); err != nil {
			w.logger.WithError(err).WithField("key", req.key).Warn("result sink write failed")
		}
	}
}

/*
Close stops accepting writes, lets the worker finish what is already queued and waits
for it. Safe to call more than once.
*/
func (w *WriteBackPolicy) Close() {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.ch)
		w.mu.Unlock()
		w.wg.Wait()
	})
}
