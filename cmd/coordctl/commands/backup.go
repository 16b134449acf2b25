package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/phrazzld/coordcore/internal/backup"
	"github.com/phrazzld/coordcore/internal/bootstrap"
	"github.com/phrazzld/coordcore/internal/config"
	"github.com/phrazzld/coordcore/internal/job"
	"github.com/spf13/cobra"
)

func newBackupCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Take, list and inspect snapshots",
		Long: `Work with the snapshots written by the periodic backup job.

Sources and sink come from the backup section of the config.

Examples:
  coordctl backup once                                  # Take one snapshot now
  coordctl backup list                                  # Newest first
  coordctl backup show                                  # Print the newest snapshot
  coordctl backup show backup_20250101_120000_000000000.json`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "once",
		Short: "Take one snapshot and prune old ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackup(cmd, g, func(ctx context.Context, b *backup.Backup, cfg *config.Config, logger *slog.Logger) error {
				runner, err := job.NewRunner("backup", b.Run, job.Config{
					Interval:   cfg.Backup.Interval,
					RetryDelay: cfg.Backup.RetryDelay,
				}, logger)
				if err != nil {
					return err
				}
				if err := runner.RunOnce(ctx); err != nil {
					return err
				}

				_, name, err := b.Latest(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Snapshot written: %s\n", name)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackup(cmd, g, func(ctx context.Context, b *backup.Backup, _ *config.Config, _ *slog.Logger) error {
				names, err := b.List(ctx)
				if err != nil {
					return err
				}
				if len(names) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No snapshots")
					return nil
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show [name]",
		Short: "Print a snapshot as JSON (the newest when no name is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackup(cmd, g, func(ctx context.Context, b *backup.Backup, _ *config.Config, _ *slog.Logger) error {
				var (
					snap backup.Snapshot
					err  error
				)
				if len(args) == 1 {
					snap, err = b.Load(ctx, args[0])
				} else {
					snap, _, err = b.Latest(ctx)
				}
				if err != nil {
					return err
				}

				data, err := json.MarshalIndent(snap, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to format snapshot: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			})
		},
	})

	return cmd
}

// withBackup builds the configured Backup, hands it to fn and releases
// the database afterwards.
func withBackup(cmd *cobra.Command, g *globals, fn func(context.Context, *backup.Backup, *config.Config, *slog.Logger) error) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	logger, err := g.logger(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	db, err := bootstrap.OpenDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	b, err := bootstrap.NewBackup(ctx, cfg, db, logger, nil)
	if err != nil {
		return err
	}
	return fn(ctx, b, cfg, logger)
}
