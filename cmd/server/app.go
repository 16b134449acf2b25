package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/coordcore/internal/backup"
	"github.com/phrazzld/coordcore/internal/bootstrap"
	"github.com/phrazzld/coordcore/internal/config"
	"github.com/phrazzld/coordcore/internal/job"
	"github.com/phrazzld/coordcore/internal/ledger"
	"github.com/phrazzld/coordcore/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// application holds the daemon's dependencies
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	registry *prometheus.Registry
	metrics  *metrics.Collector

	ledger       *ledger.Ledger
	backup       *backup.Backup
	backupRunner *job.Runner
	heartbeat    *job.Runner
	started      time.Time
}

// newApplication wires every component from cfg. The database is opened
// only when a URL is configured.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config:   cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		started:  time.Now(),
	}
	app.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.metrics = metrics.New(app.registry)

	app.ledger = ledger.New(cfg.Ledger.InitialBalance,
		ledger.WithLogger(logger),
		ledger.WithObserver(app.metrics))

	db, err := bootstrap.OpenDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	app.db = db

	app.backup, err = bootstrap.NewBackup(ctx, cfg, app.db, logger, app.metrics)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to set up backup: %w", err)
	}

	app.backupRunner, err = job.NewRunner("backup", app.backup.Run, job.Config{
		Interval:   cfg.Backup.Interval,
		RetryDelay: cfg.Backup.RetryDelay,
	}, logger, job.WithObserver(app.metrics))
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create backup runner: %w", err)
	}

	app.heartbeat, err = job.NewRunner("heartbeat", app.beat, job.Config{
		Interval:   cfg.Heartbeat.Interval,
		RetryDelay: cfg.Heartbeat.Interval,
	}, logger, job.WithObserver(app.metrics))
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create heartbeat runner: %w", err)
	}

	logger.Info("application initialized")
	return app, nil
}

// beat logs a status line; it is the heartbeat job's action.
func (app *application) beat(ctx context.Context) error {
	stats := app.ledger.Stats()
	app.logger.InfoContext(ctx, "heartbeat",
		"uptime", time.Since(app.started).Round(time.Second),
		"balance", app.ledger.Balance(),
		"credits", stats.Credits,
		"debits", stats.Debits,
		"rejected", stats.Rejected)
	return nil
}

// Run starts the background jobs and serves HTTP until ctx is cancelled.
func (app *application) Run(ctx context.Context) error {
	if err := app.startJobs(ctx); err != nil {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), app.config.Server.ShutdownTimeout)
		defer cancel()
		app.stopJobs(stopCtx)
		app.cleanup()
		return err
	}

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (app *application) startJobs(ctx context.Context) error {
	if err := app.heartbeat.Start(ctx); err != nil {
		return fmt.Errorf("failed to start heartbeat: %w", err)
	}
	if !app.config.Backup.Enabled {
		app.logger.Info("periodic backup disabled")
		return nil
	}
	if err := app.backupRunner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start backup runner: %w", err)
	}
	return nil
}

// stopJobs stops both runners, giving up at ctx's deadline.
func (app *application) stopJobs(ctx context.Context) {
	for _, r := range []*job.Runner{app.backupRunner, app.heartbeat} {
		if r == nil {
			continue
		}
		if err := r.Stop(ctx); err != nil && !errors.Is(err, job.ErrNotStarted) {
			app.logger.Warn("job did not stop cleanly", "job", r.Name(), "error", err)
		}
	}
}

// cleanup releases resources held by the application.
func (app *application) cleanup() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}
	app.logger.Info("application shutdown completed")
}
