package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/bank-product-crawler/internal/config"
	"github.com/JakeFAU/bank-product-crawler/internal/crawler"
	"github.com/JakeFAU/bank-product-crawler/internal/dispatcher"
	collyfetcher "github.com/JakeFAU/bank-product-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/bank-product-crawler/internal/id/uuid"
	"github.com/JakeFAU/bank-product-crawler/internal/logging"
	"github.com/JakeFAU/bank-product-crawler/internal/source"
)

// exitFailedSources is returned with --strict when any source failed.
const exitFailedSources = 2

type crawlOptions struct {
	reportPath string
	strict     bool
}

// flagBindings maps crawl flags onto config keys so flags override file and
// environment values.
var flagBindings = map[string]string{
	"sources":             "crawler.sources_file",
	"output":              "crawler.output_dir",
	"concurrency":         "crawler.concurrency",
	"product-concurrency": "crawler.product_concurrency",
	"timeout":             "http.timeout_seconds",
	"retries":             "http.max_retries",
	"backend":             "storage.backend",
	"metrics-addr":        "metrics.addr",
}

func newCrawlCmd(cfgFile *string) *cobra.Command {
	opts := &crawlOptions{}
	v := config.NewViper()
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Fetch every source's catalog and product details",
		Long: `Loads the source list, crawls each valid source on the worker pool and
prints an enumerated list of sources whose catalog could not be fetched or
saved. Product-level failures are logged but never fail their source.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, *cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return runCrawl(cmd.Context(), cfg, opts, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.String("sources", "", "source list file (.json or .toml)")
	flags.String("output", "", "output root directory for the local backend")
	flags.Int("concurrency", 0, "sources crawled in parallel")
	flags.Int("product-concurrency", 0, "product detail fetches in flight per source")
	flags.Int("timeout", 0, "per-request timeout in seconds")
	flags.Int("retries", 0, "retries for timeouts, 429 and 5xx responses")
	flags.String("backend", "", "storage backend: local, gcs or memory")
	flags.String("metrics-addr", "", "serve /metrics on this address during the crawl")
	flags.StringVar(&opts.reportPath, "report", "", "write the JSON run report to this path")
	flags.BoolVar(&opts.strict, "strict", false, "exit with status 2 when any source failed")
	bindFlags(v, cmd)
	return cmd
}

// bindFlags binds only flags the user set, so unset flags fall through to
// config and defaults.
func bindFlags(v *viper.Viper, cmd *cobra.Command) {
	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
		for name, key := range flagBindings {
			f := cmd.Flags().Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
		return nil
	}
}

func runCrawl(ctx context.Context, cfg config.Config, opts *crawlOptions, out io.Writer) error {
	baseLogger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = baseLogger.Sync() }()

	runID, err := uuid.New().NewRunID()
	if err != nil {
		return err
	}
	logger := logging.ForRun(baseLogger, runID.String())

	sources, err := source.LoadFile(cfg.Crawler.SourcesFile)
	if err != nil {
		return fmt.Errorf("load sources: %w", err)
	}
	logger.Info("loaded source list", zap.String("path", cfg.Crawler.SourcesFile), zap.Int("records", len(sources)))

	store, closeStore, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	obs, err := startObservability(cfg, logger)
	if err != nil {
		return err
	}
	defer obs.close(logger)

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:   cfg.Crawler.UserAgent,
		Timeout:     cfg.RequestTimeout(),
		MaxBodySize: cfg.HTTP.MaxBodyBytes,
	})
	retry := crawler.NewExponentialRetryPolicy(cfg.HTTP.MaxRetries, cfg.BackoffInitial(), cfg.BackoffMax())
	sf := crawler.NewSourceFetcher(fetcher, store, retry, obs.hub, crawler.Config{
		RunID:              runID,
		ProductConcurrency: cfg.Crawler.ProductConcurrency,
		UserAgent:          cfg.Crawler.UserAgent,
		RequestTimeout:     cfg.RequestTimeout(),
	}, logger)

	d := dispatcher.New(sf, dispatcher.Config{Workers: cfg.Crawler.Concurrency, RunID: runID}, obs.hub, logger)
	report := d.Run(ctx, sources)

	if err := report.WriteSummary(out); err != nil {
		return err
	}
	if opts.reportPath != "" {
		if err := writeReport(opts.reportPath, report); err != nil {
			return err
		}
		logger.Info("wrote run report", zap.String("path", opts.reportPath))
	}
	if report.HasFailures() {
		logger.Warn("some sources failed", zap.Strings("sources", report.FailedSources()))
		if opts.strict {
			return &exitError{
				code: exitFailedSources,
				msg:  fmt.Sprintf("%d source(s) failed", len(report.Failed)),
			}
		}
	}
	return nil
}

func writeReport(path string, report crawler.Report) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := report.WriteJSON(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	return nil
}

// shutdownTimeout bounds flushing progress sinks and stopping the metrics server.
const shutdownTimeout = 5 * time.Second
