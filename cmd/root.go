// Package cmd defines and implements the CLI commands for the fonapi executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/burakyilmaz321/fonapi/internal/config"
	"github.com/burakyilmaz321/fonapi/internal/logging"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fonapi",
		Short: "Crawls historical fund data from TEFAS, one day at a time.",
		Long: `fonapi walks a date range day by day, fetching every page of
historical fund data for each day and writing the raw results to disk.
Progress is checkpointed so an interrupted crawl resumes where it left
off, and every attempt is recorded in a queryable run log.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is built-in defaults plus FONAPI_* env vars)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newRunsCmd())

	return cmd
}

// loadConfig reads configuration and builds the logger commands share.
func loadConfig() (config.Config, func() error, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	undo := zap.ReplaceGlobals(logger)
	return cfg, func() error {
		undo()
		return logger.Sync()
	}, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fonapi: %v\n", err)
		os.Exit(1)
	}
}
