package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/phrazzld/coordcore/internal/task"
	"github.com/spf13/cobra"
)

type pipelineOptions struct {
	items     int
	consumers int
	queueSize int
	rate      float64
	work      time.Duration
	json      bool

	metricsAddr string
}

func newPipelineCmd(g *globals) *cobra.Command {
	opts := pipelineOptions{}

	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run a producer/consumer pipeline with sentinel termination",
		Long: `Produce the integers 1..N into a bounded queue and let a pool of consumers
square them. After production one sentinel per consumer is queued; the run
ends once every item has been acknowledged and every consumer has exited.

Unset flags take their values from the pipeline section of the config.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("consumers") {
				opts.consumers = cfg.Pipeline.Consumers
			}
			if !cmd.Flags().Changed("queue-size") {
				opts.queueSize = cfg.Pipeline.QueueSize
			}
			if !cmd.Flags().Changed("rate") {
				opts.rate = cfg.Pipeline.ProduceRate
			}
			return runPipeline(cmd, g, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.items, "items", "n", 10, "Number of items to produce")
	defaults := task.DefaultPipelineConfig()
	cmd.Flags().IntVar(&opts.consumers, "consumers", defaults.Consumers, "Number of consumers")
	cmd.Flags().IntVar(&opts.queueSize, "queue-size", defaults.QueueSize, "Queue capacity")
	cmd.Flags().Float64Var(&opts.rate, "rate", 0, "Items produced per second (0 for unpaced)")
	cmd.Flags().DurationVar(&opts.work, "work", 0, "Simulated processing time per item")
	cmd.Flags().BoolVarP(&opts.json, "json", "j", false, "Print the report as JSON")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")

	return cmd
}

func runPipeline(cmd *cobra.Command, g *globals, opts pipelineOptions) error {
	if opts.items < 0 {
		return fmt.Errorf("items must not be negative")
	}

	logger, err := g.logger(cmd)
	if err != nil {
		return err
	}

	out := &syncWriter{w: cmd.OutOrStdout()}
	quiet := opts.json

	square := func(ctx context.Context, workerID int, item int) error {
		if opts.work > 0 {
			select {
			case <-time.After(opts.work):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if !quiet {
			fmt.Fprintf(out, "[consumer-%d] processed %d -> %d\n", workerID, item, item*item)
		}
		return nil
	}

	collector, stopMetrics, err := g.serveMetrics(cmd, opts.metricsAddr, logger)
	if err != nil {
		return err
	}
	defer stopMetrics()

	var pipelineOpts []task.PipelineOption
	if collector != nil {
		pipelineOpts = append(pipelineOpts, task.WithPipelineObserver(collector))
	}

	p, err := task.NewPipeline(task.PipelineConfig{
		Consumers:   opts.consumers,
		QueueSize:   opts.queueSize,
		ProduceRate: opts.rate,
	}, task.Range(opts.items), square, logger, pipelineOpts...)
	if err != nil {
		return err
	}

	report, err := p.Run(cmd.Context())
	if err != nil {
		return err
	}

	if opts.json {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format report: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintf(out, "\nProduced: %d  Processed: %d  Failed: %d  Duration: %s\n",
		report.Produced, report.Processed, report.Failed, report.Duration.Round(time.Millisecond))

	workers := make([]int, 0, len(report.Sentinels))
	for id := range report.Sentinels {
		workers = append(workers, id)
	}
	sort.Ints(workers)
	for _, id := range workers {
		fmt.Fprintf(out, "consumer-%d: %d items, %d sentinel(s)\n", id, report.PerWorker[id], report.Sentinels[id])
	}
	return nil
}
