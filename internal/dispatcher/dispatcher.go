// Package dispatcher fans sources out to a fixed pool of workers and collects
// exactly one outcome per scheduled source.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/bank-product-crawler/internal/crawler"
	"github.com/JakeFAU/bank-product-crawler/internal/progress"
	"github.com/JakeFAU/bank-product-crawler/internal/source"
)

// DefaultWorkers is the source-level concurrency cap.
const DefaultWorkers = 10

// SourceCrawler processes one source to completion. Implementations must
// fold every remote or I/O error into the returned outcome.
type SourceCrawler interface {
	Fetch(ctx context.Context, src crawler.Source) crawler.Outcome
}

// Config controls the worker pool.
type Config struct {
	// Workers caps concurrently running sources; values below 1 use DefaultWorkers.
	Workers int
	// RunID tags the run in progress events and the report.
	RunID uuid.UUID
}

// Dispatcher runs a SourceCrawler over a list of sources.
type Dispatcher struct {
	crawler SourceCrawler
	cfg     Config
	emitter progress.Emitter
	logger  *zap.Logger
}

// New creates a Dispatcher. emitter and logger may be nil.
func New(sc SourceCrawler, cfg Config, emitter progress.Emitter, logger *zap.Logger) *Dispatcher {
	if cfg.Workers < 1 {
		cfg.Workers = DefaultWorkers
	}
	if emitter == nil {
		emitter = progress.Nop
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		crawler: sc,
		cfg:     cfg,
		emitter: emitter,
		logger:  logger,
	}
}

// Run skips records missing a name or URL, crawls the rest on the worker pool
// and blocks until every scheduled source has reported. Individual failures
// never abort the run; canceling ctx makes remaining sources fail fast.
func (d *Dispatcher) Run(ctx context.Context, sources []crawler.Source) crawler.Report {
	started := time.Now().UTC()
	valid, skipped := source.Partition(sources)
	d.emit(progress.Event{Stage: progress.StageRunStart, Note: fmt.Sprintf("%d sources", len(valid))})
	for _, src := range skipped {
		d.logger.Warn("skipping source with missing name or url",
			zap.String("source", src.Name),
			zap.String("base_url", src.BaseURL),
		)
		d.emit(progress.Event{
			Stage:  progress.StageSourceSkipped,
			Source: src.Name,
			URL:    src.BaseURL,
			Note:   "missing name or url",
		})
	}

	outcomes := d.dispatch(ctx, valid)

	report := crawler.NewReport(d.cfg.RunID.String(), started, time.Now().UTC(), outcomes, skipped)
	d.logger.Info("crawl finished",
		zap.Int("succeeded", len(report.Succeeded)),
		zap.Int("failed", len(report.Failed)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("products_fetched", report.Products.Fetched),
		zap.Int("products_failed", report.Products.Failed),
	)
	d.emit(progress.Event{Stage: progress.StageRunDone, Dur: report.Finished.Sub(started)})
	return report
}

// dispatch feeds sources to the pool and returns one outcome per source once
// all workers have exited.
func (d *Dispatcher) dispatch(ctx context.Context, sources []crawler.Source) []crawler.Outcome {
	jobs := make(chan crawler.Source)
	results := make(chan crawler.Outcome, len(sources))

	workers := min(d.cfg.Workers, len(sources))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for src := range jobs {
				results <- d.process(ctx, src)
			}
		}()
	}

	for _, src := range sources {
		jobs <- src
	}
	close(jobs)
	wg.Wait()
	close(results)

	outcomes := make([]crawler.Outcome, 0, len(sources))
	for o := range results {
		outcomes = append(outcomes, o)
	}
	return outcomes
}

// process runs one source and converts a panic into a Failure so that the
// source still yields an outcome.
func (d *Dispatcher) process(ctx context.Context, src crawler.Source) (out crawler.Outcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("source crawl panicked", zap.String("source", src.Name), zap.Any("panic", r))
			out = crawler.Failed(src.Name, fmt.Errorf("panic: %v", r), time.Since(start))
		}
	}()
	return d.crawler.Fetch(ctx, src)
}

func (d *Dispatcher) emit(evt progress.Event) {
	evt.RunID = progress.UUIDToBytes(d.cfg.RunID)
	evt.TS = time.Now().UTC()
	d.emitter.Emit(evt)
}
