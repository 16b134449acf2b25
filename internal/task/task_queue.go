package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Common errors returned by the WorkQueue
var (
	ErrQueueClosed   = errors.New("work queue is closed")
	ErrTooManyAcks   = errors.New("ack called more times than items were pushed")
	ErrInvalidConfig = errors.New("invalid work queue configuration")
)

// envelope carries either a real item or a sentinel through the channel.
// The sentinel flag keeps termination disjoint from every value of T.
type envelope[T any] struct {
	item     T
	sentinel bool
}

// WorkQueue is a bounded FIFO channel of work items.
type WorkQueue[T any] struct {
	items    chan envelope[T]
	logger   *slog.Logger
	observer Observer

	mu         sync.Mutex
	closed     bool
	unfinished int
	// drained is closed whenever unfinished drops to zero and replaced when
	// the next item is pushed.
	drained chan struct{}
}

// QueueOption configures a WorkQueue.
type QueueOption func(*queueOptions)

type queueOptions struct {
	observer Observer
}

// WithQueueObserver attaches an observer to the queue.
func WithQueueObserver(o Observer) QueueOption {
	return func(opts *queueOptions) {
		if o != nil {
			opts.observer = o
		}
	}
}

// NewWorkQueue creates a queue holding at most capacity buffered entries.
func NewWorkQueue[T any](capacity int, logger *slog.Logger, opts ...QueueOption) (*WorkQueue[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity %d must be positive", ErrInvalidConfig, capacity)
	}

	options := queueOptions{observer: NoopObserver{}}
	for _, opt := range opts {
		opt(&options)
	}

	drained := make(chan struct{})
	close(drained)

	return &WorkQueue[T]{
		items:    make(chan envelope[T], capacity),
		logger:   logger.With("component", "work_queue"),
		observer: options.observer,
		drained:  drained,
	}, nil
}

// Push appends a real item, blocking while the queue is full.
// It returns ErrQueueClosed after Close and ctx.Err() if ctx ends first.
func (q *WorkQueue[T]) Push(ctx context.Context, item T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	// Count the item before it becomes visible so WaitDrain cannot observe
	// an empty queue while the item is in flight.
	q.unfinished++
	if q.unfinished == 1 {
		q.drained = make(chan struct{})
	}
	q.mu.Unlock()

	select {
	case q.items <- envelope[T]{item: item}:
		depth := len(q.items)
		q.logger.Debug("item enqueued", "queue_len", depth, "queue_cap", cap(q.items))
		q.observer.OnEnqueue(depth)
		return nil
	case <-ctx.Done():
		q.finish()
		return ctx.Err()
	}
}

// PushSentinel appends one termination signal. Sentinels are accepted after
// Close and are never counted by WaitDrain.
func (q *WorkQueue[T]) PushSentinel(ctx context.Context) error {
	select {
	case q.items <- envelope[T]{sentinel: true}:
		q.logger.Debug("sentinel enqueued", "queue_len", len(q.items))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pop removes the next entry, blocking until one is available.
// ok is false when the entry is a sentinel.
func (q *WorkQueue[T]) Pop(ctx context.Context) (item T, ok bool, err error) {
	select {
	case env := <-q.items:
		if env.sentinel {
			return item, false, nil
		}
		q.observer.OnDequeue(len(q.items))
		return env.item, true, nil
	case <-ctx.Done():
		return item, false, ctx.Err()
	}
}

// Ack marks one popped real item as fully processed.
func (q *WorkQueue[T]) Ack() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.unfinished <= 0 {
		return ErrTooManyAcks
	}
	q.unfinished--
	if q.unfinished == 0 {
		close(q.drained)
	}
	return nil
}

// WaitDrain blocks until every real item pushed so far has been popped and
// acknowledged. It returns immediately when nothing is outstanding.
func (q *WorkQueue[T]) WaitDrain(ctx context.Context) error {
	q.mu.Lock()
	drained := q.drained
	q.mu.Unlock()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close rejects further real items. Buffered entries remain poppable and
// sentinels may still be pushed.
func (q *WorkQueue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		q.logger.Info("work queue closed")
	}
}

// Len returns the number of buffered entries, sentinels included.
func (q *WorkQueue[T]) Len() int {
	return len(q.items)
}

// Cap returns the queue capacity.
func (q *WorkQueue[T]) Cap() int {
	return cap(q.items)
}

// Pending returns the number of real items pushed but not yet acknowledged.
func (q *WorkQueue[T]) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.unfinished
}

// finish undoes the accounting of a push that never reached the channel.
func (q *WorkQueue[T]) finish() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.unfinished--
	if q.unfinished == 0 {
		close(q.drained)
	}
}
