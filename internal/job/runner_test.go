package job

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// fakeClock records every requested delay and fires immediately until
// limit delays have been requested; after that it never fires.
type fakeClock struct {
	mu      sync.Mutex
	delays  []time.Duration
	limit   int
	reached chan struct{}
	once    sync.Once
}

func newFakeClock(limit int) *fakeClock {
	return &fakeClock{limit: limit, reached: make(chan struct{})}
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.delays = append(c.delays, d)
	if len(c.delays) < c.limit {
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}
	c.once.Do(func() { close(c.reached) })
	return nil
}

func (c *fakeClock) Delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.delays...)
}

type recordingObserver struct {
	mu        sync.Mutex
	cycles    int
	failures  int
	scheduled []time.Duration
}

func (o *recordingObserver) OnCycle(_ string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cycles++
	if err != nil {
		o.failures++
	}
}

func (o *recordingObserver) OnScheduled(_ string, delay time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scheduled = append(o.scheduled, delay)
}

var testConfig = Config{Interval: 300 * time.Second, RetryDelay: 10 * time.Second}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}

func TestNewRunner_InvalidConfig(t *testing.T) {
	noop := func(context.Context) error { return nil }

	tests := []struct {
		name   string
		action Action
		config Config
	}{
		{"nil action", nil, testConfig},
		{"zero interval", noop, Config{Interval: 0, RetryDelay: time.Second}},
		{"negative retry", noop, Config{Interval: time.Second, RetryDelay: -time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRunner("test", tt.action, tt.config, setupTestLogger())
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestRunner_RetriesUntilSuccessThenResumesInterval(t *testing.T) {
	var calls atomic.Int32
	action := func(context.Context) error {
		if calls.Add(1) <= 3 {
			return errors.New("backend unreachable")
		}
		return nil
	}

	clock := newFakeClock(6)
	observer := &recordingObserver{}
	runner, err := NewRunner("backup", action, testConfig, setupTestLogger(),
		WithAfter(clock.After), WithObserver(observer))
	require.NoError(t, err)

	require.NoError(t, runner.Start(context.Background()))
	waitFor(t, clock.reached)

	r, i := testConfig.RetryDelay, testConfig.Interval
	assert.Equal(t, []time.Duration{r, r, r, i, i, i}, clock.Delays())

	status := runner.Status()
	assert.True(t, status.Running)
	assert.Equal(t, int64(6), status.Runs)
	assert.Equal(t, int64(3), status.Failures)
	assert.Zero(t, status.ConsecutiveFailures)
	assert.Empty(t, status.LastError)
	assert.False(t, status.LastSuccess.IsZero())
	assert.Equal(t, i, status.NextDelay)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, runner.Stop(ctx))
	assert.False(t, runner.Status().Running)

	observer.mu.Lock()
	defer observer.mu.Unlock()
	assert.Equal(t, 6, observer.cycles)
	assert.Equal(t, 3, observer.failures)
	assert.Len(t, observer.scheduled, 6)
}

func TestRunner_NeverStopsRetrying(t *testing.T) {
	action := func(context.Context) error { return errors.New("always down") }

	clock := newFakeClock(20)
	runner, err := NewRunner("flaky", action, testConfig, setupTestLogger(), WithAfter(clock.After))
	require.NoError(t, err)

	require.NoError(t, runner.Start(context.Background()))
	waitFor(t, clock.reached)

	for _, d := range clock.Delays() {
		assert.Equal(t, testConfig.RetryDelay, d)
	}
	status := runner.Status()
	assert.Equal(t, int64(20), status.ConsecutiveFailures)
	assert.Equal(t, "always down", status.LastError)

	require.NoError(t, runner.Stop(context.Background()))
}

func TestRunner_PanicIsAFailure(t *testing.T) {
	var calls atomic.Int32
	action := func(context.Context) error {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		return nil
	}

	clock := newFakeClock(2)
	runner, err := NewRunner("panicky", action, testConfig, setupTestLogger(), WithAfter(clock.After))
	require.NoError(t, err)

	require.NoError(t, runner.Start(context.Background()))
	waitFor(t, clock.reached)

	assert.Equal(t, []time.Duration{testConfig.RetryDelay, testConfig.Interval}, clock.Delays())
	assert.Equal(t, int64(1), runner.Status().Failures)

	require.NoError(t, runner.Stop(context.Background()))
}

func TestRunner_StartTwice(t *testing.T) {
	runner, err := NewRunner("test", func(context.Context) error { return nil }, testConfig,
		setupTestLogger(), WithAfter(newFakeClock(1).After))
	require.NoError(t, err)

	require.NoError(t, runner.Start(context.Background()))
	assert.ErrorIs(t, runner.Start(context.Background()), ErrAlreadyStarted)
	require.NoError(t, runner.Stop(context.Background()))
}

func TestRunner_StopWithoutStart(t *testing.T) {
	runner, err := NewRunner("test", func(context.Context) error { return nil }, testConfig, setupTestLogger())
	require.NoError(t, err)

	assert.ErrorIs(t, runner.Stop(context.Background()), ErrNotStarted)
}

func TestRunner_StopDoesNotAbortInFlightAction(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	actionErr := make(chan error, 1)

	action := func(ctx context.Context) error {
		close(entered)
		<-release
		actionErr <- ctx.Err()
		return nil
	}

	runner, err := NewRunner("slow", action, testConfig, setupTestLogger())
	require.NoError(t, err)
	require.NoError(t, runner.Start(context.Background()))
	waitFor(t, entered)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = runner.Stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "stop must give up at the caller's deadline")

	close(release)
	assert.NoError(t, <-actionErr, "the action context must not be cancelled by stop")

	waitFor(t, runner.Done())
	assert.NoError(t, runner.Stop(context.Background()))
}

func TestRunner_ParentContextCancelStopsLoop(t *testing.T) {
	runner, err := NewRunner("test", func(context.Context) error { return nil }, testConfig, setupTestLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, runner.Start(ctx))
	cancel()

	waitFor(t, runner.Done())
}

func TestRunner_RunOnce(t *testing.T) {
	var calls atomic.Int32
	runner, err := NewRunner("once", func(context.Context) error {
		if calls.Add(1) == 1 {
			return errors.New("first fails")
		}
		return nil
	}, testConfig, setupTestLogger())
	require.NoError(t, err)

	assert.EqualError(t, runner.RunOnce(context.Background()), "first fails")
	assert.NoError(t, runner.RunOnce(context.Background()))

	status := runner.Status()
	assert.Equal(t, "once", status.Name)
	assert.Equal(t, int64(2), status.Runs)
	assert.Equal(t, int64(1), status.Failures)
	assert.False(t, status.Running)
}
