package commands

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phrazzld/coordcore/internal/ledger"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type ledgerOptions struct {
	initial   int64
	operators int
	ops       int
	minAmount int64
	maxAmount int64
	hold      time.Duration
	pause     time.Duration
	seed      uint64
}

func newLedgerCmd(g *globals) *cobra.Command {
	opts := ledgerOptions{}

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Run concurrent operators against a shared ledger",
		Long: `Start several operators that each perform a series of random credits and
debits against one ledger. The hold time widens the critical section so
that an unsynchronized ledger would lose updates; the final balance is
checked against the sum of committed operations.

Run with --log-level info to see every committed mutation in commit order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("initial") {
				cfg, err := g.loadConfig()
				if err != nil {
					return err
				}
				opts.initial = cfg.Ledger.InitialBalance
			}
			return runLedger(cmd, g, opts)
		},
	}

	cmd.Flags().Int64Var(&opts.initial, "initial", 500, "Initial balance (default from ledger.initial_balance)")
	cmd.Flags().IntVar(&opts.operators, "operators", 3, "Number of concurrent operators")
	cmd.Flags().IntVar(&opts.ops, "ops", 5, "Operations per operator")
	cmd.Flags().Int64Var(&opts.minAmount, "min", 10, "Smallest amount")
	cmd.Flags().Int64Var(&opts.maxAmount, "max", 100, "Largest amount")
	cmd.Flags().DurationVar(&opts.hold, "hold", 20*time.Millisecond, "Time spent inside the critical section")
	cmd.Flags().DurationVar(&opts.pause, "pause", 0, "Maximum random pause between an operator's operations")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "Random seed (0 picks one from the clock)")

	return cmd
}

func runLedger(cmd *cobra.Command, g *globals, opts ledgerOptions) error {
	if opts.operators < 1 || opts.ops < 0 {
		return fmt.Errorf("operators must be positive and ops not negative")
	}
	if opts.minAmount < 1 || opts.maxAmount < opts.minAmount {
		return fmt.Errorf("amounts must satisfy 1 <= min <= max")
	}

	logger, err := g.logger(cmd)
	if err != nil {
		return err
	}

	seed := opts.seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	l := ledger.New(opts.initial, ledger.WithLogger(logger), ledger.WithHoldTime(opts.hold))
	out := &syncWriter{w: cmd.OutOrStdout()}
	fmt.Fprintf(out, "Initial balance: %d (seed %d)\n", opts.initial, seed)

	var credited, debited atomic.Int64
	var eg errgroup.Group
	for i := 1; i <= opts.operators; i++ {
		rng := rand.New(rand.NewPCG(seed, uint64(i)))
		eg.Go(func() error {
			for range opts.ops {
				amount := opts.minAmount + rng.Int64N(opts.maxAmount-opts.minAmount+1)

				if rng.IntN(2) == 0 {
					balance, err := l.Credit(cmd.Context(), amount)
					if err != nil {
						return err
					}
					credited.Add(amount)
					fmt.Fprintf(out, "[operator-%d] credit +%d | balance %d\n", i, amount, balance)
				} else {
					balance, err := l.Debit(cmd.Context(), amount)
					switch {
					case errors.Is(err, ledger.ErrInsufficientFunds):
						fmt.Fprintf(out, "[operator-%d] debit -%d rejected | %v\n", i, amount, err)
					case err != nil:
						return err
					default:
						debited.Add(amount)
						fmt.Fprintf(out, "[operator-%d] debit -%d | balance %d\n", i, amount, balance)
					}
				}

				if opts.pause > 0 {
					time.Sleep(time.Duration(rng.Int64N(int64(opts.pause))))
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	stats := l.Stats()
	expected := opts.initial + credited.Load() - debited.Load()
	final := l.Balance()

	fmt.Fprintf(out, "\nFinal balance: %d\n", final)
	fmt.Fprintf(out, "Credits: %d  Debits: %d  Rejected: %d\n", stats.Credits, stats.Debits, stats.Rejected)
	if final != expected {
		return fmt.Errorf("ledger inconsistent: balance %d, expected %d", final, expected)
	}
	fmt.Fprintf(out, "Consistent: balance equals initial + credits - debits\n")
	return nil
}

// syncWriter serializes writes from concurrent goroutines.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
