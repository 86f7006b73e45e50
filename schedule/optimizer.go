// Package schedule assigns tasks to resource availability windows with a greedy
// first-fit heuristic. Large inputs can be split into chunks scheduled concurrently.
package schedule

import (
	"context"
	"math"
	"sort"
	"sync/atomic"
	"time"

	"github.com/apex/log"
	"golang.org/x/sync/errgroup"

	"github.com/krisalay/ops-engine/errs"
)

// Op names scheduling in errors and metrics.
const Op = "schedule"

// Strategies reported by Optimizer.Plan.
const (
	StrategySequential = "sequential"
	StrategyParallel   = "parallel"
)

const (
	// DefaultParallelThreshold is the task count above which the parallel path is used.
	DefaultParallelThreshold = 50

	// DefaultChunkCount is how many chunks the parallel path splits tasks into.
	DefaultChunkCount = 4
)

// Options tune an Optimizer. Zero fields take the package defaults.
type Options struct {
	Mode              Mode
	Parallel          bool
	ParallelThreshold int
	ChunkCount        int
}

// Optimizer runs the scheduling heuristic. It holds no per-call state and is safe
// for concurrent use; Parallel and Mode may be switched at runtime.
type Optimizer struct {
	parallel  atomic.Bool
	mode      atomic.Value // Mode
	threshold int
	chunks    int
	logger    log.Interface
}

// New builds an Optimizer. A nil logger falls back to log.Log.
func New(opts Options, logger log.Interface) *Optimizer {
	if opts.Mode == "" {
		opts.Mode = ModePreview
	}
	if opts.ParallelThreshold <= 0 {
		opts.ParallelThreshold = DefaultParallelThreshold
	}
	if opts.ChunkCount <= 0 {
		opts.ChunkCount = DefaultChunkCount
	}
	if logger == nil {
		logger = log.Log
	}
	o := &Optimizer{
		threshold: opts.ParallelThreshold,
		chunks:    opts.ChunkCount,
		logger:    logger,
	}
	o.parallel.Store(opts.Parallel)
	o.mode.Store(opts.Mode)
	return o
}

// SetParallel toggles the parallel path for subsequent calls.
func (o *Optimizer) SetParallel(enabled bool) {
	o.parallel.Store(enabled)
}

// SetMode switches the allocation mode for subsequent calls.
func (o *Optimizer) SetMode(m Mode) {
	o.mode.Store(m)
}

// Mode reports the current allocation mode.
func (o *Optimizer) Mode() Mode {
	return o.mode.Load().(Mode)
}

// Strategy reports which path a call with n tasks would take: StrategySequential
// or StrategyParallel.
func (o *Optimizer) Strategy(n int) string {
	if o.parallel.Load() && n > o.threshold {
		return StrategyParallel
	}
	return StrategySequential
}

// Plan is the mode and strategy one call runs with.
type Plan struct {
	Mode     Mode
	Strategy string
}

// Plan snapshots the current settings for a call with n tasks. Callers that key
// results by plan pass the same snapshot to Run.
func (o *Optimizer) Plan(n int) Plan {
	return Plan{Mode: o.Mode(), Strategy: o.Strategy(n)}
}

// Optimize validates the input and schedules it with the current settings.
func (o *Optimizer) Optimize(ctx context.Context, tasks []Task, resources []Resource) (Optimization, error) {
	return o.Run(ctx, o.Plan(len(tasks)), tasks, resources)
}

// Run validates the input and schedules it with plan, ignoring later SetMode or
// SetParallel calls. ProcessingTimeMs is the wall-clock time of the computation.
// Validation failures are returned as errs.ValidationError, anything that goes
// wrong afterwards as errs.ComputationError.
func (o *Optimizer) Run(ctx context.Context, plan Plan, tasks []Task, resources []Resource) (Optimization, error) {
	if err := Validate(tasks, resources); err != nil {
		return Optimization{}, err
	}

	start := time.Now()
	mode, strategy := plan.Mode, plan.Strategy

	var (
		out Optimization
		err error
	)
	l := newLedger(mode, resources)
	if strategy == StrategyParallel {
		out, err = runParallel(ctx, l, o.chunks, tasks, resources)
	} else {
		out, err = runSafely(l, tasks, resources)
	}
	if err != nil {
		o.logger.WithFields(log.Fields{
			"mode":     mode,
			"strategy": strategy,
			"tasks":    len(tasks),
		}).WithError(err).Error("scheduling failed")
		return Optimization{}, err
	}

	out.ProcessingTimeMs = sinceMs(start)
	o.logger.WithFields(log.Fields{
		"mode":      mode,
		"strategy":  strategy,
		"tasks":     len(tasks),
		"resources": len(resources),
		"assigned":  len(out.Schedule),
		"conflicts": out.ConflictCount,
	}).Debug("schedule computed")
	return out, nil
}

func newLedger(mode Mode, resources []Resource) ledger {
	if mode == ModeReserve {
		return newReserveLedger(resources)
	}
	return newPreviewLedger(resources)
}

// runSafely runs the sequential path and turns a panic into a computation error.
func runSafely(l ledger, tasks []Task, resources []Resource) (out Optimization, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.FromPanic(Op, r)
		}
	}()
	out = place(tasks, l)
	out.UtilizationRate = meanUtilization(resources)
	out.OptimizationScore = score(out.ConflictCount, len(tasks), out.UtilizationRate)
	return out, nil
}

// place sorts tasks by priority (highest first, input order on ties) and asks the
// ledger for a slot for each one.
func place(tasks []Task, l ledger) Optimization {
	sorted := append([]Task(nil), tasks...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	out := Optimization{Schedule: make([]Assignment, 0, len(sorted))}
	for _, t := range sorted {
		a, ok := l.place(t)
		if !ok {
			out.ConflictCount++
			continue
		}
		out.Schedule = append(out.Schedule, a)
	}
	return out
}

// runParallel places n contiguous chunks concurrently against one shared ledger.
func runParallel(ctx context.Context, l ledger, n int, tasks []Task, resources []Resource) (Optimization, error) {
	chunks := split(tasks, n)
	results := make([]Optimization, len(chunks))
	util := meanUtilization(resources)

	g, _ := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = errs.FromPanic(Op, r)
				}
			}()
			results[i] = place(chunk, l)
			results[i].UtilizationRate = util
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Optimization{}, errs.Wrap(Op, err)
	}
	return merge(results, len(tasks)), nil
}

// split cuts tasks into at most n contiguous chunks of ceil(len/n) tasks each,
// preserving order.
func split(tasks []Task, n int) [][]Task {
	size := (len(tasks) + n - 1) / n
	if size == 0 {
		return nil
	}
	chunks := make([][]Task, 0, n)
	for lo := 0; lo < len(tasks); lo += size {
		hi := min(lo+size, len(tasks))
		chunks = append(chunks, tasks[lo:hi])
	}
	return chunks
}

// merge concatenates chunk schedules in chunk order, sums conflicts, averages the
// chunk utilization rates and rescores against the full task count.
func merge(results []Optimization, total int) Optimization {
	out := Optimization{Schedule: make([]Assignment, 0, total)}
	var util float64
	for _, r := range results {
		out.Schedule = append(out.Schedule, r.Schedule...)
		out.ConflictCount += r.ConflictCount
		util += r.UtilizationRate
	}
	if len(results) > 0 {
		out.UtilizationRate = util / float64(len(results))
	}
	out.OptimizationScore = score(out.ConflictCount, total, out.UtilizationRate)
	return out
}

func score(conflicts, tasks int, util float64) float64 {
	if tasks == 0 {
		return util
	}
	return math.Max(0, 1-float64(conflicts)/float64(tasks)*0.5) * util
}

func sinceMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
