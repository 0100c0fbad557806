package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/burakyilmaz321/fonapi/internal/api"
	checkpointfile "github.com/burakyilmaz321/fonapi/internal/checkpoint/file"
	"github.com/burakyilmaz321/fonapi/internal/clock/system"
	"github.com/burakyilmaz321/fonapi/internal/config"
	"github.com/burakyilmaz321/fonapi/internal/crawl"
	"github.com/burakyilmaz321/fonapi/internal/fetcher/headless"
	"github.com/burakyilmaz321/fonapi/internal/fetcher/tefas"
	"github.com/burakyilmaz321/fonapi/internal/id/uuid"
	"github.com/burakyilmaz321/fonapi/internal/policy/ratelimit"
	runlogpg "github.com/burakyilmaz321/fonapi/internal/runlog/postgres"
	runlogsqlite "github.com/burakyilmaz321/fonapi/internal/runlog/sqlite"
	"github.com/burakyilmaz321/fonapi/internal/sink"
)

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	var startDate, endDate string

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls a date range of historical fund data",
		Long: `Crawls every day from --start-date through --end-date inclusive.
Dates use the DD.MM.YYYY format. When --end-date is omitted only the
start day is crawled. A day already covered by the checkpoint is
skipped, so rerunning the same range after an interruption continues
from the first incomplete day.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			window, err := parseWindow(startDate, endDate)
			if err != nil {
				return err
			}
			return runCrawl(cmd.Context(), window)
		},
	}

	cmd.Flags().StringVar(&startDate, "start-date", "", "first day to crawl (DD.MM.YYYY)")
	cmd.Flags().StringVar(&endDate, "end-date", "", "last day to crawl, inclusive (DD.MM.YYYY, defaults to --start-date)")
	_ = cmd.MarkFlagRequired("start-date")

	return cmd
}

// parseWindow validates the date flags and builds the crawl window.
func parseWindow(startDate, endDate string) (crawl.Window, error) {
	start, err := crawl.ParseDay(startDate)
	if err != nil {
		return crawl.Window{}, fmt.Errorf("invalid --start-date: %w", err)
	}
	end := start
	if endDate != "" {
		if end, err = crawl.ParseDay(endDate); err != nil {
			return crawl.Window{}, fmt.Errorf("invalid --end-date: %w", err)
		}
	}
	window, err := crawl.NewWindow(start, end)
	if err != nil {
		return crawl.Window{}, err
	}
	return window, nil
}

func runCrawl(ctx context.Context, window crawl.Window) error {
	cfg, cleanup, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = cleanup() }()
	logger := zap.L()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runLog, closeRunLog, err := buildRunLog(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRunLog()

	checkpoints, err := checkpointfile.New(cfg.Checkpoint.Path)
	if err != nil {
		return fmt.Errorf("init checkpoint store: %w", err)
	}

	fetcher, closeFetcher, err := buildFetcher(cfg)
	if err != nil {
		return err
	}
	defer closeFetcher()

	fsSink, err := sink.NewFileSystemSink(cfg.Output.Dir, cfg.Output.MaxPageBytes, logger)
	if err != nil {
		return fmt.Errorf("init sink: %w", err)
	}

	scheduler := crawl.NewScheduler(
		fetcher,
		fsSink,
		runLog,
		checkpoints,
		crawl.NewExponentialRetryPolicy(cfg.Crawler.MaxAttempts, cfg.Crawler.RetryBackoffBase, cfg.Crawler.RetryBackoffMax),
		system.New(),
		uuid.New(),
		crawl.SchedulerConfig{
			Concurrency:  cfg.Crawler.Concurrency,
			FetchTimeout: cfg.Crawler.FetchTimeout,
		},
		logger,
	)

	stopServer := startStatusServer(cfg, runLog, checkpoints, logger)
	defer stopServer()

	err = scheduler.Run(ctx, window)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		logger.Info("crawl interrupted, progress checkpointed")
		return nil
	default:
		return err
	}
}

// buildRunLog selects the run log backend from config.
func buildRunLog(ctx context.Context, cfg config.Config) (crawl.RunLog, func(), error) {
	switch cfg.RunLog.Driver {
	case config.RunLogDriverPostgres:
		runLog, err := runlogpg.New(ctx, cfg.RunLog.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("init postgres run log: %w", err)
		}
		return runLog, runLog.Close, nil
	default:
		runLog, err := runlogsqlite.New(cfg.RunLog.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("init sqlite run log: %w", err)
		}
		return runLog, func() { _ = runLog.Close() }, nil
	}
}

// buildFetcher picks between the JSON endpoint fetcher and the headless
// browser fallback.
func buildFetcher(cfg config.Config) (crawl.Fetcher, func(), error) {
	if cfg.Tefas.Headless {
		fetcher, err := headless.NewChromedp(headless.Config{
			URL:               cfg.Tefas.HistoryURL,
			UserAgent:         cfg.Tefas.UserAgent,
			NavigationTimeout: cfg.Tefas.NavTimeout,
			MaxParallel:       cfg.Crawler.Concurrency,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init headless fetcher: %w", err)
		}
		return fetcher, fetcher.Close, nil
	}
	fetcher := tefas.New(tefas.Config{
		BaseURL:   cfg.Tefas.BaseURL,
		FundType:  cfg.Tefas.FundType,
		PageSize:  cfg.Tefas.PageSize,
		UserAgent: cfg.Tefas.UserAgent,
		Timeout:   cfg.Crawler.FetchTimeout,
		Limiter: ratelimit.New(ratelimit.Config{
			RequestsPerSecond: cfg.Tefas.RequestsPerSecond,
			Burst:             cfg.Crawler.Concurrency,
		}),
	})
	return fetcher, func() {}, nil
}

// startStatusServer runs the operator HTTP server when enabled. The returned
// func shuts it down.
func startStatusServer(cfg config.Config, runLog crawl.RunLog, checkpoints crawl.CheckpointStore, logger *zap.Logger) func() {
	if !cfg.Server.Enabled {
		return func() {}
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(runLog, checkpoints, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("status server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server failed", zap.Error(err))
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("status server shutdown failed", zap.Error(err))
		}
	}
}
