package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/phrazzld/coordcore/internal/backup"
	"github.com/phrazzld/coordcore/internal/job"
	"github.com/phrazzld/coordcore/internal/ledger"
	"github.com/phrazzld/coordcore/internal/task"
	"github.com/phrazzld/coordcore/internal/timer"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "coord"

// Collector records component activity as Prometheus metrics.
type Collector struct {
	ledgerOps     *prometheus.CounterVec
	ledgerBalance prometheus.Gauge

	queueDepth     prometheus.Gauge
	itemsProcessed *prometheus.CounterVec
	itemLatency    prometheus.Histogram
	sentinels      prometheus.Counter

	timerTicks   prometheus.Counter
	timerResets  prometheus.Counter
	timerStops   *prometheus.CounterVec
	timerElapsed prometheus.Gauge

	jobCycles   *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	jobNext     *prometheus.GaugeVec

	snapshots     *prometheus.CounterVec
	snapshotBytes prometheus.Gauge
	sectionErrors prometheus.Counter
	pruned        prometheus.Counter
}

var (
	_ ledger.Observer = (*Collector)(nil)
	_ task.Observer   = (*Collector)(nil)
	_ timer.Observer  = (*Collector)(nil)
	_ job.Observer    = (*Collector)(nil)
	_ backup.Observer = (*Collector)(nil)
)

// New creates a Collector and registers its metrics on reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		ledgerOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Ledger mutations by operation and outcome.",
		}, []string{"op", "outcome"}),
		ledgerBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "balance",
			Help:      "Balance after the most recent mutation.",
		}),

		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Entries waiting in the work queue.",
		}),
		itemsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "items_processed_total",
			Help:      "Work items handled by consumers, by worker and outcome.",
		}, []string{"worker", "outcome"}),
		itemLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "item_duration_seconds",
			Help:      "Time spent processing one work item.",
			Buckets:   prometheus.DefBuckets,
		}),
		sentinels: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "sentinels_total",
			Help:      "Termination sentinels consumed.",
		}),

		timerTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "timer",
			Name:      "ticks_total",
			Help:      "Counted timer ticks.",
		}),
		timerResets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "timer",
			Name:      "resets_total",
			Help:      "Applied timer resets.",
		}),
		timerStops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "timer",
			Name:      "stops_total",
			Help:      "Timer terminations by reason.",
		}, []string{"reason"}),
		timerElapsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "timer",
			Name:      "elapsed_ticks",
			Help:      "Ticks counted in the current timer cycle.",
		}),

		jobCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "job",
			Name:      "cycles_total",
			Help:      "Periodic job cycles by job and outcome.",
		}, []string{"job", "outcome"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "job",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of periodic job cycles.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
		jobNext: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "job",
			Name:      "next_delay_seconds",
			Help:      "Wait before the next cycle of each job.",
		}, []string{"job"}),

		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backup",
			Name:      "snapshots_total",
			Help:      "Backup snapshots by outcome (complete, partial, failed).",
		}, []string{"outcome"}),
		snapshotBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backup",
			Name:      "last_snapshot_bytes",
			Help:      "Encoded size of the most recent persisted snapshot.",
		}),
		sectionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backup",
			Name:      "section_errors_total",
			Help:      "Snapshot sections that could not be fetched.",
		}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backup",
			Name:      "pruned_total",
			Help:      "Backup artifacts removed by retention.",
		}),
	}

	reg.MustRegister(
		c.ledgerOps, c.ledgerBalance,
		c.queueDepth, c.itemsProcessed, c.itemLatency, c.sentinels,
		c.timerTicks, c.timerResets, c.timerStops, c.timerElapsed,
		c.jobCycles, c.jobDuration, c.jobNext,
		c.snapshots, c.snapshotBytes, c.sectionErrors, c.pruned,
	)
	return c
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// OnCredit implements ledger.Observer.
func (c *Collector) OnCredit(_, balance int64) {
	c.ledgerOps.WithLabelValues("credit", "ok").Inc()
	c.ledgerBalance.Set(float64(balance))
}

// OnDebit implements ledger.Observer.
func (c *Collector) OnDebit(_, balance int64, err error) {
	switch {
	case err == nil:
		c.ledgerOps.WithLabelValues("debit", "ok").Inc()
	case errors.Is(err, ledger.ErrInsufficientFunds):
		c.ledgerOps.WithLabelValues("debit", "insufficient_funds").Inc()
	default:
		c.ledgerOps.WithLabelValues("debit", "error").Inc()
	}
	c.ledgerBalance.Set(float64(balance))
}

// OnEnqueue implements task.Observer.
func (c *Collector) OnEnqueue(depth int) {
	c.queueDepth.Set(float64(depth))
}

// OnDequeue implements task.Observer.
func (c *Collector) OnDequeue(depth int) {
	c.queueDepth.Set(float64(depth))
}

// OnProcessed implements task.Observer.
func (c *Collector) OnProcessed(workerID int, duration time.Duration, err error) {
	c.itemsProcessed.WithLabelValues(strconv.Itoa(workerID), outcome(err)).Inc()
	c.itemLatency.Observe(duration.Seconds())
}

// OnSentinel implements task.Observer.
func (c *Collector) OnSentinel(int) {
	c.sentinels.Inc()
}

// OnTick implements timer.Observer.
func (c *Collector) OnTick(elapsed int) {
	c.timerTicks.Inc()
	c.timerElapsed.Set(float64(elapsed))
}

// OnReset implements timer.Observer.
func (c *Collector) OnReset() {
	c.timerResets.Inc()
	c.timerElapsed.Set(0)
}

// OnStop implements timer.Observer.
func (c *Collector) OnStop(reason timer.Reason, elapsed int) {
	c.timerStops.WithLabelValues(string(reason)).Inc()
	c.timerElapsed.Set(float64(elapsed))
}

// OnCycle implements job.Observer.
func (c *Collector) OnCycle(name string, duration time.Duration, err error) {
	c.jobCycles.WithLabelValues(name, outcome(err)).Inc()
	c.jobDuration.WithLabelValues(name).Observe(duration.Seconds())
}

// OnScheduled implements job.Observer.
func (c *Collector) OnScheduled(name string, delay time.Duration) {
	c.jobNext.WithLabelValues(name).Set(delay.Seconds())
}

// OnSnapshot implements backup.Observer.
func (c *Collector) OnSnapshot(size int, failedSections int, err error) {
	c.sectionErrors.Add(float64(failedSections))

	switch {
	case err != nil:
		c.snapshots.WithLabelValues("failed").Inc()
		return
	case failedSections > 0:
		c.snapshots.WithLabelValues("partial").Inc()
	default:
		c.snapshots.WithLabelValues("complete").Inc()
	}
	c.snapshotBytes.Set(float64(size))
}

// OnPrune implements backup.Observer.
func (c *Collector) OnPrune(deleted int) {
	c.pruned.Add(float64(deleted))
}
