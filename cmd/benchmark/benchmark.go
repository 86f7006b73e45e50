// Command benchmark drives the result cache and the pricing path under concurrent load.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	opsengine "github.com/krisalay/ops-engine"
	"github.com/krisalay/ops-engine/cache"
	"github.com/krisalay/ops-engine/config"
	"github.com/krisalay/ops-engine/engine"
	"github.com/krisalay/ops-engine/eviction"
	"github.com/krisalay/ops-engine/logging"
)

func main() {
	logging.Init()

	cmd := &cli.Command{
		Name:  "benchmark",
		Usage: "concurrent load test for the result cache",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "shards", Value: 8, Usage: "cache shards"},
			&cli.IntFlag{Name: "capacity", Value: 200000, Usage: "max cached entries"},
			&cli.IntFlag{Name: "preload", Value: 100000, Usage: "keys stored before the run"},
			&cli.IntFlag{Name: "goroutines", Value: 200, Usage: "concurrent readers"},
			&cli.IntFlag{Name: "ops", Value: 5000, Usage: "lookups per goroutine"},
			&cli.StringFlag{Name: "eviction", Value: string(eviction.LowestHits), Usage: "lowest-hits, lru or fifo"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, os.Stdout, params{
				shards:     cmd.Int("shards"),
				capacity:   cmd.Int("capacity"),
				preload:    cmd.Int("preload"),
				goroutines: cmd.Int("goroutines"),
				ops:        cmd.Int("ops"),
				eviction:   cmd.String("eviction"),
			})
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type params struct {
	shards, capacity, preload, goroutines, ops int
	eviction                                   string
}

func run(ctx context.Context, w io.Writer, p params) error {
	policy, err := eviction.ParsePolicyType(p.eviction)
	if err != nil {
		return err
	}
	if p.preload <= 0 || p.goroutines <= 0 || p.ops <= 0 {
		return fmt.Errorf("preload, goroutines and ops must be > 0")
	}

	fmt.Fprintln(w, "\n================ CACHE LOAD BENCHMARK =================")
	fmt.Fprintln(w, "CONFIG")
	fmt.Fprintln(w, "---------------------------------")
	fmt.Fprintln(w, "Shards       :", p.shards)
	fmt.Fprintln(w, "Capacity     :", humanize.Comma(int64(p.capacity)))
	fmt.Fprintln(w, "Preload Keys :", humanize.Comma(int64(p.preload)))
	fmt.Fprintln(w, "Goroutines   :", p.goroutines)
	fmt.Fprintln(w, "Ops/Goroutine:", humanize.Comma(int64(p.ops)))
	fmt.Fprintln(w, "Eviction     :", policy)
	fmt.Fprintln(w, "---------------------------------")

	c := cache.New(ctx, cache.Config{
		Shards:   p.shards,
		MaxSize:  p.capacity,
		Eviction: policy,
	}, engine.NewCacheEngine(nil, nil, nil, nil))
	defer c.Close()

	var before runtime.MemStats
	runtime.ReadMemStats(&before)

	fmt.Fprintln(w, "Preloading cache...")
	for i := 0; i < p.preload; i++ {
		c.Put(ctx, fmt.Sprintf("key-%d", i), i)
	}

	var after runtime.MemStats
	runtime.ReadMemStats(&after)

	fmt.Fprintln(w, "Running concurrency benchmark...")
	lookups := measure(p.goroutines, p.ops, func(g, j int) {
		c.Get(fmt.Sprintf("key-%d", (g*p.ops+j)%p.preload))
	})

	stats := c.Stats()
	fmt.Fprintln(w, "\n================ RESULTS =================")
	fmt.Fprintf(w, "Total Operations : %s\n", humanize.Comma(int64(p.goroutines*p.ops)))
	fmt.Fprintf(w, "Total Time       : %v\n", lookups.Round(time.Microsecond))
	fmt.Fprintf(w, "Throughput       : %s ops/sec\n", humanize.Commaf(throughput(p.goroutines*p.ops, lookups)))
	fmt.Fprintf(w, "Hit Rate         : %.2f%%\n", stats.HitRate)
	fmt.Fprintf(w, "Evictions        : %s\n", humanize.Comma(int64(stats.Evictions)))
	fmt.Fprintf(w, "Heap Growth      : %s\n", humanize.IBytes(after.HeapAlloc-min(before.HeapAlloc, after.HeapAlloc)))
	fmt.Fprintln(w, "=========================================")

	return pricingLoad(ctx, w, p)
}

// pricingLoad runs the full engine path: a small set of distinct prices requested
// over and over, so nearly every call is a cache hit.
func pricingLoad(ctx context.Context, w io.Writer, p params) error {
	cfg := config.Default()
	cfg.Shards = p.shards
	e, err := opsengine.New(cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	var mu sync.Mutex
	var firstErr error
	elapsed := measure(p.goroutines, p.ops, func(g, j int) {
		base := float64(10 + (g+j)%100)
		if _, err := e.OptimizePricing(ctx, base, 0.5, nil); err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
		}
	})
	if firstErr != nil {
		return firstErr
	}

	stats := e.CacheStats()
	fmt.Fprintln(w, "\n================ PRICING PATH =================")
	fmt.Fprintf(w, "Calls            : %s\n", humanize.Comma(int64(p.goroutines*p.ops)))
	fmt.Fprintf(w, "Total Time       : %v\n", elapsed.Round(time.Microsecond))
	fmt.Fprintf(w, "Throughput       : %s calls/sec\n", humanize.Commaf(throughput(p.goroutines*p.ops, elapsed)))
	fmt.Fprintf(w, "Hit Rate         : %.2f%%\n", stats.HitRate)
	fmt.Fprintln(w, "=========================================")
	return nil
}

// measure runs fn ops times on each of n goroutines and returns the wall time.
func measure(n, ops int, fn func(g, j int)) time.Duration {
	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(n)
	for g := 0; g < n; g++ {
		go func() {
			defer wg.Done()
			for j := 0; j < ops; j++ {
				fn(g, j)
			}
		}()
	}
	wg.Wait()
	return time.Since(start)
}

func throughput(ops int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(int64(float64(ops) / d.Seconds()))
}
