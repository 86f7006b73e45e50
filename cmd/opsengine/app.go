package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/urfave/cli/v3"

	opsengine "github.com/krisalay/ops-engine"
	"github.com/krisalay/ops-engine/config"
	"github.com/krisalay/ops-engine/pricing"
	"github.com/krisalay/ops-engine/schedule"
	"github.com/krisalay/ops-engine/types"
)

// scheduleInput is the file format read by the schedule command.
type scheduleInput struct {
	Tasks     []schedule.Task     `json:"tasks"`
	Resources []schedule.Resource `json:"resources"`
}

// report is what every command prints: the last result plus cache accounting.
type report struct {
	Result     any         `json:"result"`
	Calls      int         `json:"calls"`
	CacheStats types.Stats `json:"cacheStats"`
}

func newApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "opsengine",
		Usage: "schedule tasks and price offers with a memoizing optimizer",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "engine config file (YAML)",
				Sources: cli.EnvVars(config.EnvPrefix + "CONFIG"),
			},
			&cli.IntFlag{
				Name:  "repeat",
				Usage: "run the optimization N times to exercise the cache",
				Value: 1,
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "bypass the result cache",
			},
			&cli.BoolFlag{
				Name:  "metrics",
				Usage: "dump Prometheus metrics to stderr when done",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "schedule",
				Usage: "assign tasks to resource availability windows",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "input",
						Aliases:  []string{"i"},
						Usage:    "JSON file with tasks and resources",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "mode",
						Usage: "allocation mode: preview or reserve (overrides config)",
					},
					&cli.BoolWithInverseFlag{
						Name:  "parallel",
						Usage: "split large inputs into concurrently scheduled chunks (overrides config)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return run(ctx, cmd, stdout, stderr, scheduleAction)
				},
			},
			{
				Name:  "price",
				Usage: "compute a market-adjusted price",
				Flags: []cli.Flag{
					&cli.FloatFlag{
						Name:     "base",
						Usage:    "base price, > 0",
						Required: true,
					},
					&cli.FloatFlag{
						Name:  "demand",
						Usage: "demand level in [0, 1]",
						Value: 0.5,
					},
					&cli.FloatSliceFlag{
						Name:  "competitor",
						Usage: "competitor price, repeatable",
					},
					&cli.FloatFlag{
						Name:  "seasonal",
						Usage: "seasonal factor (default 1.0)",
					},
					&cli.FloatFlag{
						Name:  "elasticity",
						Usage: "price elasticity of demand (default 1.2)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return run(ctx, cmd, stdout, stderr, priceAction)
				},
			},
		},
	}
}

// action performs one optimization against e.
type action func(ctx context.Context, cmd *cli.Command, e *opsengine.Engine, opts []opsengine.CallOption) (func() (any, error), error)

// run builds an engine from the common flags, repeats the action and prints a report.
func run(ctx context.Context, cmd *cli.Command, stdout, stderr io.Writer, act action) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	e, err := opsengine.New(cfg, opsengine.WithRegisterer(reg))
	if err != nil {
		return err
	}
	defer e.Close()

	var opts []opsengine.CallOption
	if cmd.Bool("no-cache") {
		opts = append(opts, opsengine.WithoutCache())
	}

	call, err := act(ctx, cmd, e, opts)
	if err != nil {
		return err
	}

	repeat := max(cmd.Int("repeat"), 1)
	var result any
	for range repeat {
		if result, err = call(); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report{Result: result, Calls: repeat, CacheStats: e.CacheStats()}); err != nil {
		return err
	}

	if cmd.Bool("metrics") {
		return dumpMetrics(stderr, reg)
	}
	return nil
}

func scheduleAction(ctx context.Context, cmd *cli.Command, e *opsengine.Engine, opts []opsengine.CallOption) (func() (any, error), error) {
	b, err := os.ReadFile(cmd.String("input"))
	if err != nil {
		return nil, err
	}
	var in scheduleInput
	if err := json.Unmarshal(b, &in); err != nil {
		return nil, fmt.Errorf("parse %s: %w", cmd.String("input"), err)
	}

	if m := cmd.String("mode"); m != "" {
		if err := e.SetSchedulingMode(schedule.Mode(m)); err != nil {
			return nil, err
		}
	}
	if cmd.IsSet("parallel") {
		e.SetParallelProcessing(cmd.Bool("parallel"))
	}

	return func() (any, error) {
		return e.OptimizeScheduling(ctx, in.Tasks, in.Resources, opts...)
	}, nil
}

func priceAction(ctx context.Context, cmd *cli.Command, e *opsengine.Engine, opts []opsengine.CallOption) (func() (any, error), error) {
	md := &pricing.MarketData{CompetitorPrices: cmd.FloatSlice("competitor")}
	if cmd.IsSet("seasonal") {
		v := cmd.Float("seasonal")
		md.SeasonalFactor = &v
	}
	if cmd.IsSet("elasticity") {
		v := cmd.Float("elasticity")
		md.Elasticity = &v
	}

	base, demand := cmd.Float("base"), cmd.Float("demand")
	return func() (any, error) {
		return e.OptimizePricing(ctx, base, demand, md, opts...)
	}, nil
}

func dumpMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
