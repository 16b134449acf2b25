package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/phrazzld/coordcore/internal/platform/logger"
)

// Stats counts the mutations applied to a Ledger.
type Stats struct {
	Credits  int64 `json:"credits"`
	Debits   int64 `json:"debits"`
	Rejected int64 `json:"rejected"`
}

// Ledger is a balance shared by concurrent callers.
type Ledger struct {
	mu      sync.Mutex
	balance int64
	stats   Stats

	hold     time.Duration
	logger   *slog.Logger
	observer Observer
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger used when the call context carries none.
func WithLogger(l *slog.Logger) Option {
	return func(ld *Ledger) {
		if l != nil {
			ld.logger = l
		}
	}
}

// WithObserver registers an observer notified after every mutation.
func WithObserver(o Observer) Option {
	return func(ld *Ledger) {
		if o != nil {
			ld.observer = o
		}
	}
}

// WithHoldTime makes every mutation sleep for d between reading and writing
// the balance. It widens the critical section so that races would surface if
// the lock were missing; only the CLI demonstration uses it.
func WithHoldTime(d time.Duration) Option {
	return func(ld *Ledger) {
		ld.hold = d
	}
}

// New creates a Ledger holding the initial balance.
func New(initial int64, opts ...Option) *Ledger {
	l := &Ledger{
		balance:  initial,
		logger:   slog.Default(),
		observer: NoopObserver{},
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "ledger")
	return l
}

// Credit adds amount to the balance and returns the committed balance.
func (l *Ledger) Credit(ctx context.Context, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	log := logger.FromContextOr(ctx, l.logger)

	l.mu.Lock()
	defer l.mu.Unlock()

	previous := l.balance
	if previous > 0 && amount > math.MaxInt64-previous {
		return previous, fmt.Errorf("%w: %d + %d", ErrBalanceOverflow, previous, amount)
	}
	l.pause()
	l.balance = previous + amount
	l.stats.Credits++

	log.Info("credit committed", "amount", amount, "balance", l.balance)
	l.observer.OnCredit(amount, l.balance)

	return l.balance, nil
}

// Debit subtracts amount from the balance if the balance covers it.
// Otherwise it returns ErrInsufficientFunds and leaves the balance unchanged.
func (l *Ledger) Debit(ctx context.Context, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	log := logger.FromContextOr(ctx, l.logger)

	l.mu.Lock()
	defer l.mu.Unlock()

	previous := l.balance
	if previous < amount {
		l.stats.Rejected++
		err := fmt.Errorf("%w: requested %d, available %d", ErrInsufficientFunds, amount, previous)
		log.Warn("debit rejected", "amount", amount, "balance", previous)
		l.observer.OnDebit(amount, previous, err)
		return previous, err
	}

	l.pause()
	l.balance = previous - amount
	l.stats.Debits++

	log.Info("debit committed", "amount", amount, "balance", l.balance)
	l.observer.OnDebit(amount, l.balance, nil)

	return l.balance, nil
}

// Balance returns the current balance.
func (l *Ledger) Balance() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance
}

// Stats returns a copy of the mutation counters.
func (l *Ledger) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

func (l *Ledger) pause() {
	if l.hold > 0 {
		time.Sleep(l.hold)
	}
}
