package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/phrazzld/coordcore/internal/timer"
	"github.com/spf13/cobra"
)

type timerOptions struct {
	tick        time.Duration
	limit       int
	cancelWord  string
	reportEvery int
	metricsAddr string
}

func newTimerCmd(g *globals) *cobra.Command {
	opts := timerOptions{}

	cmd := &cobra.Command{
		Use:   "timer",
		Short: "Run a resettable countdown fed by stdin",
		Long: `Count ticks up to a limit. Every line read from stdin restarts the count;
the cancel word stops the timer early. Closing stdin leaves the timer
running until it reaches its limit.

Unset flags take their values from the timer section of the config.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("tick") {
				opts.tick = cfg.Timer.Tick
			}
			if !cmd.Flags().Changed("limit") {
				opts.limit = cfg.Timer.Limit
			}
			return runTimer(cmd, g, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.tick, "tick", 100*time.Millisecond, "Tick quantum")
	cmd.Flags().IntVar(&opts.limit, "limit", 100, "Ticks before the timer expires")
	cmd.Flags().StringVar(&opts.cancelWord, "cancel-word", timer.DefaultCancelWord, "Input line that stops the timer")
	cmd.Flags().IntVar(&opts.reportEvery, "report-every", 10, "Print progress every N ticks (0 disables)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")

	return cmd
}

// progress prints timer events for an interactive user.
type progress struct {
	out   io.Writer
	every int
	tick  time.Duration
}

func (p progress) OnTick(elapsed int) {
	if p.every > 0 && elapsed%p.every == 0 {
		fmt.Fprintf(p.out, "Time %s\n", time.Duration(elapsed)*p.tick)
	}
}

func (p progress) OnReset() {
	fmt.Fprintln(p.out, "Timer reset")
}

func (p progress) OnStop(reason timer.Reason, elapsed int) {
	fmt.Fprintf(p.out, "Timer stopped (%s) after %d ticks\n", reason, elapsed)
}

// timerObservers fans timer events out to several observers.
type timerObservers []timer.Observer

func (o timerObservers) OnTick(elapsed int) {
	for _, obs := range o {
		obs.OnTick(elapsed)
	}
}

func (o timerObservers) OnReset() {
	for _, obs := range o {
		obs.OnReset()
	}
}

func (o timerObservers) OnStop(reason timer.Reason, elapsed int) {
	for _, obs := range o {
		obs.OnStop(reason, elapsed)
	}
}

func runTimer(cmd *cobra.Command, g *globals, opts timerOptions) error {
	logger, err := g.logger(cmd)
	if err != nil {
		return err
	}

	collector, stopMetrics, err := g.serveMetrics(cmd, opts.metricsAddr, logger)
	if err != nil {
		return err
	}
	defer stopMetrics()

	out := &syncWriter{w: cmd.OutOrStdout()}
	observers := timerObservers{progress{out: out, every: opts.reportEvery, tick: opts.tick}}
	if collector != nil {
		observers = append(observers, collector)
	}

	t, err := timer.New(timer.Config{Tick: opts.tick, Limit: opts.limit}, logger,
		timer.WithObserver(observers))
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Counting to %s. Press Enter to reset, %q then Enter to cancel.\n",
		time.Duration(opts.limit)*opts.tick, opts.cancelWord)

	source := timer.NewSignalSource(t, cmd.InOrStdin(), opts.cancelWord, logger)
	if err := t.Start(); err != nil {
		return err
	}
	go source.Run()

	reason, err := t.Wait(cmd.Context())
	if err != nil {
		t.SignalStop()
		<-t.Done()
		fmt.Fprintln(out, "Interrupted")
		return nil
	}

	if reason == timer.ReasonLimit {
		fmt.Fprintf(out, "Time is up: reached %s\n", time.Duration(opts.limit)*opts.tick)
	}
	return nil
}
