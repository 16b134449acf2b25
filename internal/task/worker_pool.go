package task

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// WorkerPool manages the consumer goroutines pulling from a WorkQueue.
// Each consumer runs until it pops a sentinel or its context ends.
type WorkerPool[T any] struct {
	// queue is the shared source of work items
	queue *WorkQueue[T]

	// consume is the per-item transformation
	consume Consumer[T]

	// workerCount is the number of concurrent consumers to start
	workerCount int

	// wg tracks active consumer goroutines
	wg sync.WaitGroup

	logger   *slog.Logger
	observer Observer

	// errorHandler is called when an item fails. If nil, errors are only logged
	errorHandler func(workerID int, item T, err error)

	started   atomic.Bool
	processed atomic.Int64
	failed    atomic.Int64

	mu        sync.Mutex
	sentinels map[int]int
	perWorker map[int]int
}

// WorkerPoolConfig holds configuration options for the worker pool
type WorkerPoolConfig struct {
	// WorkerCount determines how many consumers to start.
	// If zero or negative, defaults to 1
	WorkerCount int
}

// NewWorkerPool creates a pool of consumers for queue.
func NewWorkerPool[T any](queue *WorkQueue[T], consume Consumer[T], config WorkerPoolConfig, logger *slog.Logger) *WorkerPool[T] {
	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
	}

	return &WorkerPool[T]{
		queue:       queue,
		consume:     consume,
		workerCount: workerCount,
		logger:      logger.With("component", "worker_pool"),
		observer:    queue.observer,
		sentinels:   make(map[int]int, workerCount),
		perWorker:   make(map[int]int, workerCount),
	}
}

// SetErrorHandler sets a callback invoked for every failed item.
// It must be called before Start.
func (p *WorkerPool[T]) SetErrorHandler(handler func(workerID int, item T, err error)) {
	p.errorHandler = handler
}

// WorkerCount returns the number of consumers the pool runs.
func (p *WorkerPool[T]) WorkerCount() int {
	return p.workerCount
}

// Start launches the consumers. Calling Start more than once has no effect.
// Cancelling ctx stops consumers blocked in Pop; items already popped are
// still processed and acknowledged.
func (p *WorkerPool[T]) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}

	p.logger.Info("starting worker pool", "worker_count", p.workerCount)
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i+1)
	}
}

// Wait blocks until every consumer has exited.
func (p *WorkerPool[T]) Wait() {
	p.wg.Wait()
}

// worker pops items until it receives a sentinel or ctx ends.
func (p *WorkerPool[T]) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	logger := p.logger.With("worker_id", id)
	logger.Debug("starting worker")

	for {
		item, ok, err := p.queue.Pop(ctx)
		if err != nil {
			logger.Debug("context cancelled, stopping worker", "error", err)
			return
		}
		if !ok {
			p.mu.Lock()
			p.sentinels[id]++
			p.mu.Unlock()
			p.observer.OnSentinel(id)
			logger.Debug("sentinel received, stopping worker")
			return
		}

		p.process(ctx, id, item, logger)
	}
}

// process runs the consumer on one item and always acknowledges it.
func (p *WorkerPool[T]) process(ctx context.Context, id int, item T, logger *slog.Logger) {
	start := time.Now()
	err := p.safeConsume(ctx, id, item)
	duration := time.Since(start)

	p.processed.Add(1)
	p.mu.Lock()
	p.perWorker[id]++
	p.mu.Unlock()

	if err != nil {
		p.failed.Add(1)
		logger.Error("item processing failed", "error", err, "duration", duration)
		if p.errorHandler != nil {
			p.errorHandler(id, item, err)
		}
	} else {
		logger.Debug("item processed", "duration", duration)
	}
	p.observer.OnProcessed(id, duration, err)

	if ackErr := p.queue.Ack(); ackErr != nil {
		logger.Error("failed to acknowledge item", "error", ackErr)
	}
}

// safeConsume converts a panicking consumer into an error.
func (p *WorkerPool[T]) safeConsume(ctx context.Context, id int, item T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("consumer panic recovered",
				"worker_id", id,
				"panic", r,
				"stack", string(debug.Stack()))
			err = fmt.Errorf("consumer panic: %v", r)
		}
	}()
	return p.consume(ctx, id, item)
}

// Processed returns the number of items acknowledged so far.
func (p *WorkerPool[T]) Processed() int64 {
	return p.processed.Load()
}

// Failed returns the number of items whose consumer returned an error.
func (p *WorkerPool[T]) Failed() int64 {
	return p.failed.Load()
}

// Sentinels returns how many sentinels each consumer received, keyed by worker ID.
func (p *WorkerPool[T]) Sentinels() map[int]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[int]int, len(p.sentinels))
	for k, v := range p.sentinels {
		out[k] = v
	}
	return out
}

// PerWorker returns how many items each consumer processed.
func (p *WorkerPool[T]) PerWorker() map[int]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[int]int, len(p.perWorker))
	for k, v := range p.perWorker {
		out[k] = v
	}
	return out
}
