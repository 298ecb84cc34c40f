// Package cmd defines the bankcrawler CLI.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/bank-product-crawler/internal/logging"
)

// exitError carries a process exit status without being logged as a failure.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	return e.msg
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "bankcrawler",
		Short: "Crawls bank product catalogs into per-bank JSON files.",
		Long: `bankcrawler reads a list of data holders, fetches each holder's product
catalog and every listed product's detail document, and writes them as
pretty-printed JSON under <output>/<bank>/. Sources are crawled on a fixed
pool of workers; failures are isolated per source and per product.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	cmd.AddCommand(newCrawlCmd(&cfgFile))
	return cmd
}

// Execute runs the CLI. SIGINT and SIGTERM cancel the running crawl.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	logger, lerr := logging.New(false)
	if lerr != nil {
		fmt.Fprintln(os.Stderr, "bankcrawler:", err)
		return 1
	}
	logger.Error("command failed", zap.Error(err))
	_ = logger.Sync()
	return 1
}
