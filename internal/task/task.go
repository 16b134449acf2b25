package task

import (
	"context"
	"time"
)

// Producer generates a finite sequence of items, handing each one to emit.
// It returns when production is complete. An error from emit must be
// returned unchanged.
type Producer[T any] func(ctx context.Context, emit func(T) error) error

// Consumer performs the per-item transformation. A returned error is logged
// and counted; it never stops the consumer.
type Consumer[T any] func(ctx context.Context, workerID int, item T) error

// Observer receives queue and consumer events, typically for metrics.
// Implementations must be safe for concurrent use.
type Observer interface {
	// OnEnqueue is called after a real item was added; depth is the buffered count.
	OnEnqueue(depth int)

	// OnDequeue is called after a real item was removed.
	OnDequeue(depth int)

	// OnProcessed is called after a consumer finished an item.
	OnProcessed(workerID int, duration time.Duration, err error)

	// OnSentinel is called when a consumer receives its termination signal.
	OnSentinel(workerID int)
}

// NoopObserver ignores all events.
type NoopObserver struct{}

func (NoopObserver) OnEnqueue(int)                         {}
func (NoopObserver) OnDequeue(int)                         {}
func (NoopObserver) OnProcessed(int, time.Duration, error) {}
func (NoopObserver) OnSentinel(int)                        {}
