package task

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestLogger creates a logger that discards output
func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func newTestQueue[T any](t *testing.T, capacity int) *WorkQueue[T] {
	t.Helper()
	q, err := NewWorkQueue[T](capacity, setupTestLogger())
	require.NoError(t, err)
	return q
}

func TestNewWorkQueue(t *testing.T) {
	q := newTestQueue[int](t, 10)
	assert.Equal(t, 10, q.Cap())
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, q.Pending())

	_, err := NewWorkQueue[int](0, setupTestLogger())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestWorkQueue_FIFOAndSentinel(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue[string](t, 5)

	require.NoError(t, q.Push(ctx, "a"))
	require.NoError(t, q.Push(ctx, "b"))
	require.NoError(t, q.PushSentinel(ctx))
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, 2, q.Pending(), "sentinels are not counted as pending work")

	item, ok, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a", item)

	item, ok, err = q.Pop(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "b", item)

	item, ok, err = q.Pop(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "third entry is the sentinel")
	assert.Equal(t, "", item)
}

func TestWorkQueue_SentinelDisjointFromZeroValue(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue[int](t, 2)

	require.NoError(t, q.Push(ctx, 0))
	require.NoError(t, q.PushSentinel(ctx))

	item, ok, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "a zero value is real work, not a sentinel")
	assert.Equal(t, 0, item)

	_, ok, err = q.Pop(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWorkQueue_WaitDrain(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue[int](t, 4)

	// Nothing outstanding: returns immediately
	require.NoError(t, q.WaitDrain(ctx))

	require.NoError(t, q.Push(ctx, 1))
	require.NoError(t, q.Push(ctx, 2))

	drained := make(chan error, 1)
	go func() {
		drained <- q.WaitDrain(ctx)
	}()

	// Popping without acknowledging is not enough
	_, _, err := q.Pop(ctx)
	require.NoError(t, err)
	_, _, err = q.Pop(ctx)
	require.NoError(t, err)
	require.NoError(t, q.Ack())

	select {
	case <-drained:
		t.Fatal("WaitDrain returned with an unacknowledged item")
	case <-time.After(30 * time.Millisecond):
	}

	require.NoError(t, q.Ack())

	select {
	case err := <-drained:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for drain")
	}
	assert.Equal(t, 0, q.Pending())
}

func TestWorkQueue_WaitDrainContext(t *testing.T) {
	q := newTestQueue[int](t, 1)
	require.NoError(t, q.Push(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := q.WaitDrain(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWorkQueue_TooManyAcks(t *testing.T) {
	q := newTestQueue[int](t, 1)
	assert.ErrorIs(t, q.Ack(), ErrTooManyAcks)
}

func TestWorkQueue_Close(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue[int](t, 2)

	require.NoError(t, q.Push(ctx, 1))
	q.Close()
	q.Close()

	assert.ErrorIs(t, q.Push(ctx, 2), ErrQueueClosed)
	assert.NoError(t, q.PushSentinel(ctx), "sentinels are accepted after close")

	item, ok, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, item)
}

func TestWorkQueue_PushBlocksWhenFull(t *testing.T) {
	q := newTestQueue[int](t, 1)
	require.NoError(t, q.Push(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := q.Push(ctx, 2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, q.Pending(), "a push that never landed is not pending")
	assert.Equal(t, 1, q.Len())
}

func TestWorkQueue_PopContext(t *testing.T) {
	q := newTestQueue[int](t, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok, err := q.Pop(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}
