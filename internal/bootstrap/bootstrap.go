// Package bootstrap assembles the components that both binaries build from
// configuration: the optional database and the backup pipeline.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/phrazzld/coordcore/internal/backup"
	"github.com/phrazzld/coordcore/internal/config"
	"github.com/phrazzld/coordcore/internal/platform/objectstore"
	"github.com/phrazzld/coordcore/internal/platform/postgres"
	"github.com/phrazzld/coordcore/internal/platform/rest"
)

// ErrDatabaseRequired is returned when SQL sections are configured without
// a database URL.
var ErrDatabaseRequired = errors.New("backup.tables requires database.url")

// OpenDatabase opens the database named by cfg. It returns a nil *sql.DB
// and no error when no URL is configured.
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	return postgres.Open(ctx, cfg.URL, logger)
}

// NewBackup assembles the snapshot sources and sink described by cfg.Backup.
// REST sections come from the API base URL, SQL sections from the
// configured tables when a database is available. A nil observer is
// replaced by backup.NoopObserver.
func NewBackup(
	ctx context.Context,
	cfg *config.Config,
	db *sql.DB,
	logger *slog.Logger,
	observer backup.Observer,
) (*backup.Backup, error) {
	sources, err := Sources(cfg, db)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		logger.Warn("backup has no sources; snapshots will be empty")
	}

	sink, err := Sink(ctx, cfg.Backup)
	if err != nil {
		return nil, err
	}

	return backup.New(sources, sink, backup.Config{
		MaxFiles:    cfg.Backup.MaxFiles,
		Compression: backup.Compression(cfg.Backup.Compression),
	}, logger, backup.WithObserver(observer))
}

// Sources builds the snapshot sections in a stable order: REST endpoints
// first, then SQL sections sorted by name. SQL sections are bounded by
// cfg.Database.QueryTimeout.
func Sources(cfg *config.Config, db *sql.DB) ([]backup.Source, error) {
	var sources []backup.Source

	if cfg.Backup.APIBaseURL != "" {
		client, err := rest.NewClient(cfg.Backup.APIBaseURL, cfg.Backup.HTTPTimeout)
		if err != nil {
			return nil, err
		}
		for _, src := range rest.Sources(client, cfg.Backup.Endpoints) {
			sources = append(sources, src)
		}
	}

	if len(cfg.Backup.Tables) > 0 {
		if db == nil {
			return nil, ErrDatabaseRequired
		}
		sqlSources, err := postgres.SourcesFromConfig(db, cfg.Backup.Tables,
			postgres.WithQueryTimeout(cfg.Database.QueryTimeout))
		if err != nil {
			return nil, err
		}
		for _, src := range sqlSources {
			sources = append(sources, src)
		}
	}

	return sources, nil
}

// Sink returns the artifact store selected by cfg.Sink. The s3 bucket is
// created when missing.
func Sink(ctx context.Context, cfg config.BackupConfig) (backup.Sink, error) {
	switch cfg.Sink {
	case "s3":
		sink, err := objectstore.New(cfg.S3)
		if err != nil {
			return nil, err
		}
		if err := sink.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return sink, nil
	default:
		return backup.NewFileSink(cfg.Directory)
	}
}
