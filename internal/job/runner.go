package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Common errors returned by the Runner
var (
	ErrInvalidConfig  = errors.New("invalid job configuration")
	ErrAlreadyStarted = errors.New("job runner already started")
	ErrNotStarted     = errors.New("job runner not started")
)

// Action is the work performed on every cycle.
type Action func(ctx context.Context) error

// Config holds the cadence of a Runner
type Config struct {
	// Interval is the wait after a successful cycle
	Interval time.Duration

	// RetryDelay is the wait after a failed cycle
	RetryDelay time.Duration
}

// Status is a point-in-time view of a Runner.
type Status struct {
	Name                string        `json:"name"`
	Running             bool          `json:"running"`
	Runs                int64         `json:"runs"`
	Failures            int64         `json:"failures"`
	ConsecutiveFailures int64         `json:"consecutive_failures"`
	LastError           string        `json:"last_error,omitempty"`
	LastRun             time.Time     `json:"last_run,omitzero"`
	LastSuccess         time.Time     `json:"last_success,omitzero"`
	NextDelay           time.Duration `json:"next_delay"`
}

// Observer is notified after every cycle.
type Observer interface {
	OnCycle(name string, duration time.Duration, err error)
	OnScheduled(name string, delay time.Duration)
}

// NoopObserver ignores all notifications.
type NoopObserver struct{}

func (NoopObserver) OnCycle(string, time.Duration, error) {}
func (NoopObserver) OnScheduled(string, time.Duration)    {}

// Option configures a Runner.
type Option func(*Runner)

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(r *Runner) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithAfter replaces time.After for the between-cycle wait.
func WithAfter(after func(time.Duration) <-chan time.Time) Option {
	return func(r *Runner) {
		if after != nil {
			r.after = after
		}
	}
}

// Runner invokes an Action on a fixed cadence
type Runner struct {
	name     string
	action   Action
	config   Config
	logger   *slog.Logger
	observer Observer
	after    func(time.Duration) <-chan time.Time

	started atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}

	mu     sync.Mutex
	status Status
}

// NewRunner creates a new Runner. Both durations in config must be positive.
func NewRunner(name string, action Action, config Config, logger *slog.Logger, opts ...Option) (*Runner, error) {
	if action == nil {
		return nil, fmt.Errorf("%w: action is required", ErrInvalidConfig)
	}
	if config.Interval <= 0 {
		return nil, fmt.Errorf("%w: interval %s must be positive", ErrInvalidConfig, config.Interval)
	}
	if config.RetryDelay <= 0 {
		return nil, fmt.Errorf("%w: retry delay %s must be positive", ErrInvalidConfig, config.RetryDelay)
	}

	r := &Runner{
		name:     name,
		action:   action,
		config:   config,
		logger:   logger.With("component", "job_runner", "job", name),
		observer: NoopObserver{},
		after:    time.After,
		done:     make(chan struct{}),
		status:   Status{Name: name},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Name returns the runner's name.
func (r *Runner) Name() string {
	return r.name
}

// Start launches the loop on its own goroutine and returns immediately.
// Cancelling ctx stops the loop the same way Stop does.
func (r *Runner) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	loopCtx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.cancel = cancel
	r.status.Running = true
	r.mu.Unlock()

	r.logger.Info("starting job runner",
		"interval", r.config.Interval,
		"retry_delay", r.config.RetryDelay)

	go r.loop(loopCtx)
	return nil
}

// Stop cancels the loop and waits for it to exit or for ctx to expire.
// An action in flight is allowed to finish; if it outlives ctx, Stop
// returns ctx's error and the loop exits once the action returns.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel == nil {
		return ErrNotStarted
	}

	cancel()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		r.logger.Warn("job runner still busy at shutdown deadline")
		return fmt.Errorf("waiting for job %q to stop: %w", r.name, ctx.Err())
	}
}

// Done is closed once the loop has exited.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// RunOnce performs a single cycle synchronously and returns its error.
func (r *Runner) RunOnce(ctx context.Context) error {
	_, err := r.cycle(ctx)
	return err
}

// Status returns a snapshot of the runner's counters.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)
	defer func() {
		r.mu.Lock()
		r.status.Running = false
		r.mu.Unlock()
	}()

	// Actions keep the loop's values but are never cancelled with it.
	actionCtx := context.WithoutCancel(ctx)

	for {
		delay, _ := r.cycle(actionCtx)

		r.mu.Lock()
		r.status.NextDelay = delay
		r.mu.Unlock()
		r.observer.OnScheduled(r.name, delay)

		select {
		case <-ctx.Done():
			r.logger.Info("job runner stopped")
			return
		case <-r.after(delay):
		}
	}
}

// cycle invokes the action once, records the outcome and returns the delay
// before the next cycle.
func (r *Runner) cycle(ctx context.Context) (time.Duration, error) {
	logger := r.logger.With("cycle_id", uuid.New().String())
	logger.Debug("running job")

	start := time.Now()
	err := r.invoke(ctx)
	duration := time.Since(start)

	r.mu.Lock()
	r.status.Runs++
	r.status.LastRun = start
	if err != nil {
		r.status.Failures++
		r.status.ConsecutiveFailures++
		r.status.LastError = err.Error()
	} else {
		r.status.ConsecutiveFailures = 0
		r.status.LastError = ""
		r.status.LastSuccess = start
	}
	consecutive := r.status.ConsecutiveFailures
	r.mu.Unlock()

	r.observer.OnCycle(r.name, duration, err)

	if err != nil {
		logger.Error("job failed, retrying",
			"error", err,
			"duration", duration,
			"consecutive_failures", consecutive,
			"retry_in", r.config.RetryDelay)
		return r.config.RetryDelay, err
	}

	logger.Info("job completed", "duration", duration, "next_in", r.config.Interval)
	return r.config.Interval, nil
}

func (r *Runner) invoke(ctx context.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job panicked: %v", rec)
		}
	}()
	return r.action(ctx)
}
