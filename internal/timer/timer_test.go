package timer

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// manualTicker hands ticks to the loop one at a time. Sends block until the
// loop is ready for the next tick.
type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time)}
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               { m.stopped.Store(true) }

// event is what the recording observer saw for one tick.
type event struct {
	kind    string
	elapsed int
	reason  Reason
}

type recordingObserver struct {
	events chan event
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{events: make(chan event, 64)}
}

func (o *recordingObserver) OnTick(elapsed int) {
	o.events <- event{kind: "tick", elapsed: elapsed}
}

func (o *recordingObserver) OnReset() {
	o.events <- event{kind: "reset"}
}

func (o *recordingObserver) OnStop(reason Reason, elapsed int) {
	o.events <- event{kind: "stop", elapsed: elapsed, reason: reason}
}

type harness struct {
	t        *testing.T
	timer    *Timer
	ticker   *manualTicker
	observer *recordingObserver
}

func newHarness(t *testing.T, limit int) *harness {
	t.Helper()

	ticker := newManualTicker()
	observer := newRecordingObserver()
	tm, err := New(
		Config{Tick: time.Millisecond, Limit: limit},
		setupTestLogger(),
		WithTicker(func(time.Duration) Ticker { return ticker }),
		WithObserver(observer),
	)
	require.NoError(t, err)
	require.NoError(t, tm.Start())

	return &harness{t: t, timer: tm, ticker: ticker, observer: observer}
}

// tick delivers one tick and returns the event it produced.
func (h *harness) tick() event {
	h.t.Helper()
	h.ticker.ch <- time.Now()
	return h.next()
}

func (h *harness) next() event {
	h.t.Helper()
	select {
	case ev := <-h.observer.events:
		return ev
	case <-time.After(2 * time.Second):
		h.t.Fatal("timed out waiting for timer event")
		return event{}
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"zero tick", Config{Tick: 0, Limit: 10}},
		{"negative tick", Config{Tick: -time.Second, Limit: 10}},
		{"zero limit", Config{Tick: time.Millisecond, Limit: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config, setupTestLogger())
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestTimer_InitialState(t *testing.T) {
	tm, err := New(Config{Tick: time.Millisecond, Limit: 10}, setupTestLogger())
	require.NoError(t, err)

	assert.Equal(t, StateRunning, tm.State())
	assert.False(t, tm.IsStopped())
	assert.Equal(t, 0, tm.Elapsed())
	assert.Equal(t, 10, tm.Limit())
	assert.Equal(t, ReasonNone, tm.Reason())
}

func TestTimer_StartTwice(t *testing.T) {
	h := newHarness(t, 10)
	assert.ErrorIs(t, h.timer.Start(), ErrAlreadyStarted)
}

func TestTimer_ReachesLimit(t *testing.T) {
	h := newHarness(t, 3)

	assert.Equal(t, event{kind: "tick", elapsed: 1}, h.tick())
	assert.Equal(t, event{kind: "tick", elapsed: 2}, h.tick())
	assert.Equal(t, event{kind: "tick", elapsed: 3}, h.tick())
	assert.Equal(t, event{kind: "stop", elapsed: 3, reason: ReasonLimit}, h.next())

	<-h.timer.Done()
	assert.True(t, h.timer.IsStopped())
	assert.True(t, h.timer.StopRequested(), "limit raises the stop flag")
	assert.Equal(t, ReasonLimit, h.timer.Reason())
	assert.False(t, h.timer.SignalReset(), "reset after stop must be refused")

	assert.Eventually(t, h.ticker.stopped.Load, time.Second, time.Millisecond)
}

func TestTimer_ResetRestartsCount(t *testing.T) {
	h := newHarness(t, 10)

	for i := 1; i <= 4; i++ {
		assert.Equal(t, i, h.tick().elapsed)
	}

	require.True(t, h.timer.SignalReset())
	assert.Equal(t, event{kind: "reset"}, h.tick(), "the tick observing a reset is not counted")
	assert.Equal(t, 0, h.timer.Elapsed())

	// A full limit of ticks must pass after the reset.
	for i := 1; i <= 9; i++ {
		assert.Equal(t, event{kind: "tick", elapsed: i}, h.tick())
	}
	assert.False(t, h.timer.IsStopped())

	assert.Equal(t, event{kind: "tick", elapsed: 10}, h.tick())
	assert.Equal(t, event{kind: "stop", elapsed: 10, reason: ReasonLimit}, h.next())
}

func TestTimer_RepeatedResetsCoalesce(t *testing.T) {
	h := newHarness(t, 10)

	h.tick()
	h.tick()
	for i := 0; i < 5; i++ {
		require.True(t, h.timer.SignalReset())
	}

	assert.Equal(t, event{kind: "reset"}, h.tick())
	assert.Equal(t, event{kind: "tick", elapsed: 1}, h.tick())
}

func TestTimer_StopBeatsPendingReset(t *testing.T) {
	h := newHarness(t, 10)

	h.tick()
	h.tick()
	require.True(t, h.timer.SignalReset())
	h.timer.SignalStop()

	assert.Equal(t, event{kind: "stop", elapsed: 2, reason: ReasonCancelled}, h.tick())
	assert.Equal(t, 2, h.timer.Elapsed(), "a pending reset must not be applied once stop is seen")

	reason, err := h.timer.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReasonCancelled, reason)
}

func TestTimer_StopIsIdempotent(t *testing.T) {
	h := newHarness(t, 10)

	h.timer.SignalStop()
	h.timer.SignalStop()
	assert.Equal(t, event{kind: "stop", elapsed: 0, reason: ReasonCancelled}, h.tick())

	h.timer.SignalStop()
	assert.True(t, h.timer.IsStopped())
	assert.Equal(t, ReasonCancelled, h.timer.Reason())
	assert.Empty(t, h.observer.events, "timer must terminate exactly once")
}

func TestTimer_ResetRefusedAfterStopRequest(t *testing.T) {
	h := newHarness(t, 10)

	h.timer.SignalStop()
	assert.False(t, h.timer.SignalReset())
	assert.Equal(t, event{kind: "stop", elapsed: 0, reason: ReasonCancelled}, h.tick())
}

func TestTimer_WaitHonorsContext(t *testing.T) {
	h := newHarness(t, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	reason, err := h.timer.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, ReasonNone, reason)

	h.timer.SignalStop()
	h.tick()
}

func TestTimer_RealTicker(t *testing.T) {
	tm, err := New(Config{Tick: time.Millisecond, Limit: 5}, setupTestLogger())
	require.NoError(t, err)
	require.NoError(t, tm.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reason, err := tm.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReasonLimit, reason)
	assert.Equal(t, 5, tm.Elapsed())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopped", StateStopped.String())
}
