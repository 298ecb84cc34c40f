package cmd

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/bank-product-crawler/internal/config"
	"github.com/JakeFAU/bank-product-crawler/internal/crawler"
	"github.com/JakeFAU/bank-product-crawler/internal/metrics"
	"github.com/JakeFAU/bank-product-crawler/internal/progress"
	"github.com/JakeFAU/bank-product-crawler/internal/progress/sinks"
	gcsstorage "github.com/JakeFAU/bank-product-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/bank-product-crawler/internal/storage/local"
	memorystorage "github.com/JakeFAU/bank-product-crawler/internal/storage/memory"
)

// buildStore selects the output backend. The returned func releases any
// client the store holds.
func buildStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (crawler.BlobStore, func(), error) {
	noop := func() {}
	switch cfg.Storage.Backend {
	case config.BackendLocal:
		store, err := localstorage.New(localstorage.Config{BaseDir: cfg.Crawler.OutputDir})
		if err != nil {
			return nil, noop, fmt.Errorf("init local storage: %w", err)
		}
		logger.Info("writing to local storage", zap.String("dir", store.BaseDir()))
		return store, noop, nil
	case config.BackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, noop, fmt.Errorf("init gcs client: %w", err)
		}
		closeClient := func() {
			if err := client.Close(); err != nil {
				logger.Warn("failed to close gcs client", zap.Error(err))
			}
		}
		store, err := gcsstorage.New(client, gcsstorage.Config{Bucket: cfg.Storage.GCSBucket, Prefix: cfg.Storage.Prefix})
		if err != nil {
			closeClient()
			return nil, noop, fmt.Errorf("init gcs storage: %w", err)
		}
		logger.Info("writing to gcs", zap.String("bucket", cfg.Storage.GCSBucket), zap.String("prefix", cfg.Storage.Prefix))
		return store, closeClient, nil
	case config.BackendMemory:
		store := memorystorage.NewBlobStore()
		logger.Info("dry run: documents are kept in memory only")
		return store, func() {
			logger.Info("dry run finished", zap.Int("documents", len(store.Paths())))
		}, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// observability owns the progress hub and the optional metrics endpoint.
type observability struct {
	hub     *progress.Hub
	metrics *metrics.Server
}

func startObservability(cfg config.Config, logger *zap.Logger) (*observability, error) {
	reg := prometheus.NewRegistry()
	promSink, err := sinks.NewPrometheusSink(reg)
	if err != nil {
		return nil, fmt.Errorf("init prometheus sink: %w", err)
	}

	obs := &observability{}
	if cfg.Metrics.Addr != "" {
		srv, err := metrics.NewServer(cfg.Metrics.Addr, reg, logger)
		if err != nil {
			return nil, err
		}
		if err := srv.Start(); err != nil {
			return nil, err
		}
		obs.metrics = srv
	}
	obs.hub = progress.NewHub(progress.Config{Logger: logger}, sinks.NewLogSink(logger), promSink)
	return obs, nil
}

func (o *observability) close(logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := o.hub.Close(ctx); err != nil {
		logger.Warn("failed to flush progress events", zap.Error(err))
	}
	if o.metrics != nil {
		if err := o.metrics.Shutdown(ctx); err != nil {
			logger.Warn("failed to stop metrics server", zap.Error(err))
		}
	}
}
