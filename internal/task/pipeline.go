package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// PipelineConfig holds configuration for a producer/consumer run.
type PipelineConfig struct {
	// Consumers is the number of consumer goroutines; each receives exactly
	// one sentinel.
	Consumers int

	// QueueSize bounds the number of buffered entries.
	QueueSize int

	// ProduceRate caps the items emitted per second. Zero means unpaced.
	ProduceRate float64
}

// DefaultPipelineConfig returns a PipelineConfig with reasonable defaults
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Consumers: 3,
		QueueSize: 100,
	}
}

// Report summarizes a completed pipeline run.
type Report struct {
	Produced  int           `json:"produced"`
	Processed int64         `json:"processed"`
	Failed    int64         `json:"failed"`
	Sentinels map[int]int   `json:"sentinels"`
	PerWorker map[int]int   `json:"per_worker"`
	Duration  time.Duration `json:"duration"`
}

// Pipeline wires one producer to a pool of consumers through a WorkQueue.
type Pipeline[T any] struct {
	config   PipelineConfig
	produce  Producer[T]
	consume  Consumer[T]
	logger   *slog.Logger
	observer Observer
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*pipelineOptions)

type pipelineOptions struct {
	observer Observer
}

// WithPipelineObserver attaches an observer to the queue and consumers.
func WithPipelineObserver(o Observer) PipelineOption {
	return func(opts *pipelineOptions) {
		if o != nil {
			opts.observer = o
		}
	}
}

// NewPipeline validates config and returns a Pipeline ready to Run.
func NewPipeline[T any](
	config PipelineConfig,
	produce Producer[T],
	consume Consumer[T],
	logger *slog.Logger,
	opts ...PipelineOption,
) (*Pipeline[T], error) {
	if config.Consumers <= 0 {
		return nil, fmt.Errorf("%w: consumers %d must be positive", ErrInvalidConfig, config.Consumers)
	}
	if config.QueueSize <= 0 {
		return nil, fmt.Errorf("%w: queue size %d must be positive", ErrInvalidConfig, config.QueueSize)
	}
	if config.ProduceRate < 0 {
		return nil, fmt.Errorf("%w: produce rate %v must not be negative", ErrInvalidConfig, config.ProduceRate)
	}
	if produce == nil || consume == nil {
		return nil, fmt.Errorf("%w: producer and consumer are required", ErrInvalidConfig)
	}

	options := pipelineOptions{observer: NoopObserver{}}
	for _, opt := range opts {
		opt(&options)
	}

	return &Pipeline[T]{
		config:   config,
		produce:  produce,
		consume:  consume,
		logger:   logger.With("component", "pipeline"),
		observer: options.observer,
	}, nil
}

// Run executes one full production cycle: it starts the consumers, runs the
// producer to completion, appends one sentinel per consumer, waits for the
// queue to drain and for every consumer to exit.
//
// A producer error does not strand consumers: sentinels are still delivered
// and already queued items are still processed. The error is returned with
// the report.
func (p *Pipeline[T]) Run(ctx context.Context) (Report, error) {
	start := time.Now()

	queue, err := NewWorkQueue[T](p.config.QueueSize, p.logger, WithQueueObserver(p.observer))
	if err != nil {
		return Report{}, err
	}

	pool := NewWorkerPool(queue, p.consume, WorkerPoolConfig{WorkerCount: p.config.Consumers}, p.logger)
	pool.Start(ctx)

	var limiter *rate.Limiter
	if p.config.ProduceRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(p.config.ProduceRate), 1)
	}

	produced := 0
	emit := func(item T) error {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if err := queue.Push(ctx, item); err != nil {
			return err
		}
		produced++
		return nil
	}

	var g errgroup.Group
	var produceErr error

	g.Go(func() error {
		produceErr = p.produce(ctx, emit)
		queue.Close()
		if produceErr != nil {
			p.logger.Error("producer failed", "error", produceErr, "produced", produced)
		} else {
			p.logger.Info("production finished", "produced", produced)
		}

		for i := 0; i < p.config.Consumers; i++ {
			if err := queue.PushSentinel(ctx); err != nil {
				return fmt.Errorf("failed to deliver sentinel %d: %w", i+1, err)
			}
		}

		if err := queue.WaitDrain(ctx); err != nil {
			return fmt.Errorf("failed waiting for drain: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		pool.Wait()
		return nil
	})

	waitErr := g.Wait()

	report := Report{
		Produced:  produced,
		Processed: pool.Processed(),
		Failed:    pool.Failed(),
		Sentinels: pool.Sentinels(),
		PerWorker: pool.PerWorker(),
		Duration:  time.Since(start),
	}

	p.logger.Info("pipeline finished",
		"produced", report.Produced,
		"processed", report.Processed,
		"failed", report.Failed,
		"duration", report.Duration)

	return report, errors.Join(produceErr, waitErr)
}

// Range returns a Producer emitting the integers 1..n in order.
func Range(n int) Producer[int] {
	return func(ctx context.Context, emit func(int) error) error {
		for i := 1; i <= n; i++ {
			if err := emit(i); err != nil {
				return err
			}
		}
		return nil
	}
}
