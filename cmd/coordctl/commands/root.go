// Package commands implements the coordctl subcommands.
package commands

import (
	"fmt"
	"log/slog"

	"github.com/phrazzld/coordcore/internal/config"
	"github.com/phrazzld/coordcore/internal/platform/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	configPath string
	logLevel   string

	// registry receives command metrics; nil means a fresh registry per command.
	registry *prometheus.Registry
}

// loadConfig reads the config file named by --config, or config.yaml in
// the working directory, falling back to defaults.
func (g *globals) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFrom(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// logger writes JSON logs to the command's stderr.
func (g *globals) logger(cmd *cobra.Command) (*slog.Logger, error) {
	return logger.SetupWithWriter(config.ServerConfig{LogLevel: g.logLevel}, cmd.ErrOrStderr())
}

// NewRootCmd builds the coordctl command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&globals{})
}

func newRootCmd(g *globals) *cobra.Command {
	root := &cobra.Command{
		Use:   "coordctl",
		Short: "Exercise the task coordination components",
		Long: `coordctl - drive the coordination primitives interactively.

Available commands:
  ledger    - Run concurrent operators against a shared ledger
  pipeline  - Run a producer/consumer pipeline with sentinel termination
  timer     - Run a resettable countdown fed by stdin
  backup    - Take, list and inspect snapshots

Examples:
  coordctl ledger --operators 3 --ops 5
  coordctl pipeline --items 10 --consumers 3
  coordctl pipeline --items 1000 --metrics-addr :9100
  coordctl timer --limit 100
  coordctl backup once
  coordctl backup list`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Path to a config file (default: ./config.yaml if present)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "Log level: debug, info, warn or error")

	root.AddCommand(newLedgerCmd(g))
	root.AddCommand(newPipelineCmd(g))
	root.AddCommand(newTimerCmd(g))
	root.AddCommand(newBackupCmd(g))

	return root
}
