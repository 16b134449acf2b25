package timer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Common errors returned by the Timer
var (
	ErrAlreadyStarted = errors.New("timer already started")
	ErrInvalidConfig  = errors.New("invalid timer configuration")
)

// State is the lifecycle state of a Timer.
type State int32

const (
	StateRunning State = iota
	StateStopped
)

func (s State) String() string {
	if s == StateStopped {
		return "stopped"
	}
	return "running"
}

// Reason records why a Timer stopped.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonLimit     Reason = "limit"
	ReasonCancelled Reason = "cancelled"
)

// Config holds the tick quantum and the number of ticks to count.
type Config struct {
	// Tick is the polling quantum between flag checks.
	Tick time.Duration

	// Limit is the number of uninterrupted ticks after which the timer stops.
	Limit int
}

// Ticker delivers ticks to the countdown loop.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a Ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Observer receives one notification per processed tick.
type Observer interface {
	OnTick(elapsed int)
	OnReset()
	OnStop(reason Reason, elapsed int)
}

// NoopObserver ignores all notifications.
type NoopObserver struct{}

func (NoopObserver) OnTick(int)         {}
func (NoopObserver) OnReset()           {}
func (NoopObserver) OnStop(Reason, int) {}

// Option configures a Timer.
type Option func(*Timer)

// WithTicker replaces the wall-clock ticker, mainly for tests.
func WithTicker(f TickerFactory) Option {
	return func(t *Timer) {
		if f != nil {
			t.newTicker = f
		}
	}
}

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(t *Timer) {
		if o != nil {
			t.observer = o
		}
	}
}

// Timer counts ticks up to a limit unless reset or stopped.
type Timer struct {
	config    Config
	logger    *slog.Logger
	observer  Observer
	newTicker TickerFactory

	resetRequested atomic.Bool
	stopRequested  atomic.Bool
	started        atomic.Bool

	elapsed atomic.Int64
	state   atomic.Int32

	mu     sync.Mutex
	reason Reason

	done     chan struct{}
	doneOnce sync.Once
}

// New validates config and returns a Timer in the running state with zero
// elapsed ticks. The countdown begins on Start.
func New(config Config, logger *slog.Logger, opts ...Option) (*Timer, error) {
	if config.Tick <= 0 {
		return nil, fmt.Errorf("%w: tick %s must be positive", ErrInvalidConfig, config.Tick)
	}
	if config.Limit <= 0 {
		return nil, fmt.Errorf("%w: limit %d must be positive", ErrInvalidConfig, config.Limit)
	}

	t := &Timer{
		config:    config,
		logger:    logger.With("component", "timer"),
		observer:  NoopObserver{},
		newTicker: newTimeTicker,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Start launches the countdown goroutine and returns immediately.
func (t *Timer) Start() error {
	if !t.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	ticker := t.newTicker(t.config.Tick)
	go t.run(ticker)

	t.logger.Info("timer started", "tick", t.config.Tick, "limit", t.config.Limit)
	return nil
}

func (t *Timer) run(ticker Ticker) {
	defer ticker.Stop()

	for range ticker.C() {
		if t.stopRequested.Load() {
			t.finish(ReasonCancelled)
			return
		}

		if t.resetRequested.CompareAndSwap(true, false) {
			// The tick that observes a reset does not count.
			t.elapsed.Store(0)
			t.logger.Info("timer reset")
			t.observer.OnReset()
			continue
		}

		elapsed := int(t.elapsed.Add(1))
		t.logger.Debug("tick", "elapsed", elapsed, "limit", t.config.Limit)
		t.observer.OnTick(elapsed)

		if elapsed >= t.config.Limit {
			// Raise the stop flag so the signal source ceases waiting too.
			t.stopRequested.Store(true)
			t.finish(ReasonLimit)
			return
		}
	}
}

func (t *Timer) finish(reason Reason) {
	t.doneOnce.Do(func() {
		t.mu.Lock()
		t.reason = reason
		t.mu.Unlock()
		t.state.Store(int32(StateStopped))

		elapsed := t.Elapsed()
		t.logger.Info("timer stopped", "reason", reason, "elapsed", elapsed)
		t.observer.OnStop(reason, elapsed)
		close(t.done)
	})
}

// SignalReset requests that the count restart from zero. It reports false,
// without raising the flag, once a stop has been requested or observed.
func (t *Timer) SignalReset() bool {
	if t.stopRequested.Load() {
		return false
	}
	t.resetRequested.Store(true)
	return true
}

// SignalStop requests termination. It is idempotent and takes precedence
// over any pending reset.
func (t *Timer) SignalStop() {
	if t.stopRequested.CompareAndSwap(false, true) {
		t.logger.Debug("stop requested")
	}
}

// StopRequested reports whether a stop was requested or the limit was reached.
func (t *Timer) StopRequested() bool {
	return t.stopRequested.Load()
}

// IsStopped reports whether the timer reached its terminal state.
func (t *Timer) IsStopped() bool {
	return t.State() == StateStopped
}

// State returns the current lifecycle state.
func (t *Timer) State() State {
	return State(t.state.Load())
}

// Elapsed returns the ticks counted in the current cycle.
func (t *Timer) Elapsed() int {
	return int(t.elapsed.Load())
}

// Limit returns the configured tick limit.
func (t *Timer) Limit() int {
	return t.config.Limit
}

// Reason returns why the timer stopped, or ReasonNone while running.
func (t *Timer) Reason() Reason {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}

// Done is closed when the timer stops.
func (t *Timer) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the timer stops or ctx ends.
func (t *Timer) Wait(ctx context.Context) (Reason, error) {
	select {
	case <-t.done:
		return t.Reason(), nil
	case <-ctx.Done():
		return ReasonNone, ctx.Err()
	}
}
