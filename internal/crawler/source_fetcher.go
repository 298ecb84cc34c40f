package crawler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/bank-product-crawler/internal/progress"
)

// SourceFetcher crawls one source: the catalog phase decides the outcome,
// the detail phase fetches every listed product with per-product isolation.
type SourceFetcher struct {
	fetcher Fetcher
	store   BlobStore
	retry   RetryPolicy
	emitter progress.Emitter
	cfg     Config
	logger  *zap.Logger
}

// NewSourceFetcher wires a SourceFetcher. retry, emitter and logger may be nil.
func NewSourceFetcher(
	fetcher Fetcher,
	store BlobStore,
	retry RetryPolicy,
	emitter progress.Emitter,
	cfg Config,
	logger *zap.Logger,
) *SourceFetcher {
	if emitter == nil {
		emitter = progress.Nop
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProductConcurrency < 1 {
		cfg.ProductConcurrency = 1
	}
	return &SourceFetcher{
		fetcher: fetcher,
		store:   store,
		retry:   retry,
		emitter: emitter,
		cfg:     cfg,
		logger:  logger,
	}
}

// Fetch runs both phases for src and returns its outcome. It never panics on
// remote or I/O errors; they are folded into the outcome or logged.
func (f *SourceFetcher) Fetch(ctx context.Context, src Source) Outcome {
	start := time.Now()
	logger := f.logger.With(zap.String("source", src.Name))
	f.emit(progress.Event{Stage: progress.StageSourceStart, Source: src.Name, URL: src.BaseURL})

	ids, err := f.fetchCatalog(ctx, src, logger)
	if err != nil {
		dur := time.Since(start)
		logger.Error("catalog phase failed", zap.String("base_url", src.BaseURL), zap.Error(err))
		f.emit(progress.Event{
			Stage:  progress.StageSourceFailed,
			Source: src.Name,
			Dur:    dur,
			Note:   err.Error(),
		})
		return Failed(src.Name, err, dur)
	}

	stats := f.fetchProducts(ctx, src, ids, logger)
	dur := time.Since(start)
	logger.Info("source complete",
		zap.Int("listed", stats.Listed),
		zap.Int("fetched", stats.Fetched),
		zap.Int("failed", stats.Failed),
		zap.Int("skipped", stats.Skipped),
		zap.Duration("dur", dur),
	)
	f.emit(progress.Event{Stage: progress.StageSourceDone, Source: src.Name, Dur: dur})
	return Succeeded(src.Name, stats, dur)
}

func (f *SourceFetcher) fetchCatalog(ctx context.Context, src Source, logger *zap.Logger) ([]string, error) {
	if err := checkPathSegment(src.Name); err != nil {
		return nil, fmt.Errorf("%w: source name: %w", ErrPersist, err)
	}
	if err := f.store.EnsureDir(ctx, src.Name); err != nil {
		return nil, fmt.Errorf("%w: source dir %s: %w", ErrPersist, src.Name, err)
	}

	target := CatalogURL(src.BaseURL)
	resp, err := f.get(ctx, target, CatalogAPIVersion)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	doc, err := indentJSON(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", target, err)
	}
	uri, err := f.put(ctx, CatalogPath(src.Name), doc)
	if err != nil {
		return nil, err
	}

	ids := extractProductIDs(resp.Body)
	logger.Info("saved product list", zap.String("uri", uri), zap.Int("products", len(ids)))
	f.emit(progress.Event{
		Stage:       progress.StageCatalogDone,
		Source:      src.Name,
		URL:         target,
		Bytes:       int64(len(doc)),
		StatusClass: progress.ClassifyStatus(resp.StatusCode),
		Dur:         resp.Duration,
	})
	return ids, nil
}

func (f *SourceFetcher) fetchProducts(ctx context.Context, src Source, ids []string, logger *zap.Logger) ProductStats {
	var fetched, failed, skipped atomic.Int64
	var g errgroup.Group
	g.SetLimit(f.cfg.ProductConcurrency)
	for _, id := range ids {
		if id == "" {
			skipped.Add(1)
			logger.Warn("skipping product without productId")
			f.emit(progress.Event{Stage: progress.StageProductSkipped, Source: src.Name})
			continue
		}
		g.Go(func() error {
			if f.fetchProduct(ctx, src, id, logger) {
				fetched.Add(1)
			} else {
				failed.Add(1)
			}
			return nil
		})
	}
	// product tasks always return nil
	_ = g.Wait()
	return ProductStats{
		Listed:  len(ids),
		Fetched: int(fetched.Load()),
		Failed:  int(failed.Load()),
		Skipped: int(skipped.Load()),
	}
}

// fetchProduct fetches and persists one product. Every failure is logged and
// reported as false; nothing escapes to the source outcome.
func (f *SourceFetcher) fetchProduct(ctx context.Context, src Source, id string, logger *zap.Logger) bool {
	logger = logger.With(zap.String("product_id", id))
	target := ProductURL(src.BaseURL, id)
	evt := progress.Event{Source: src.Name, ProductID: id, URL: target}

	resp, uri, err := f.saveProduct(ctx, src, id, target)
	evt.Dur = resp.Duration
	if resp.StatusCode != 0 {
		evt.StatusClass = progress.ClassifyStatus(resp.StatusCode)
	}
	if err != nil {
		logger.Warn("product fetch failed", zap.String("url", target), zap.Error(err))
		evt.Stage = progress.StageProductFailed
		evt.Note = err.Error()
		f.emit(evt)
		return false
	}
	logger.Debug("saved product", zap.String("uri", uri))
	evt.Stage = progress.StageProductDone
	evt.Bytes = int64(len(resp.Body))
	f.emit(evt)
	return true
}

func (f *SourceFetcher) saveProduct(ctx context.Context, src Source, id, target string) (FetchResponse, string, error) {
	if err := checkPathSegment(id); err != nil {
		return FetchResponse{}, "", fmt.Errorf("%w: product id: %w", ErrPersist, err)
	}
	resp, err := f.get(ctx, target, DetailAPIVersion)
	if err != nil {
		return resp, "", fmt.Errorf("fetch product: %w", err)
	}
	doc, err := indentJSON(resp.Body)
	if err != nil {
		return resp, "", fmt.Errorf("product %s: %w", id, err)
	}
	uri, err := f.put(ctx, ProductPath(src.Name, id), doc)
	if err != nil {
		return resp, "", err
	}
	return resp, uri, nil
}

// get issues a JSON GET with the given API version, retrying transient
// failures when a policy is configured. Non-2xx responses become *StatusError.
func (f *SourceFetcher) get(ctx context.Context, target, version string) (FetchResponse, error) {
	req := FetchRequest{URL: target, Headers: http.Header{}}
	req.Headers.Set("Accept", jsonContentType)
	req.Headers.Set(APIVersionHeader, version)
	if f.cfg.UserAgent != "" {
		req.Headers.Set("User-Agent", f.cfg.UserAgent)
	}

	for attempt := 0; ; attempt++ {
		resp, err := f.fetchOnce(ctx, req)
		if err == nil {
			return resp, nil
		}
		if f.retry == nil || !f.retry.ShouldRetry(err, attempt) {
			return resp, err
		}
		wait := f.retry.Backoff(attempt)
		f.logger.Debug("retrying fetch", zap.String("url", target), zap.Int("attempt", attempt+1), zap.Duration("wait", wait))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return resp, fmt.Errorf("retry wait: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

func (f *SourceFetcher) fetchOnce(ctx context.Context, req FetchRequest) (FetchResponse, error) {
	if f.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.RequestTimeout)
		defer cancel()
	}
	resp, err := f.fetcher.Fetch(ctx, req)
	if err != nil {
		return resp, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, &StatusError{URL: req.URL, Code: resp.StatusCode}
	}
	return resp, nil
}

func (f *SourceFetcher) put(ctx context.Context, path string, doc []byte) (string, error) {
	uri, err := f.store.PutObject(ctx, path, jsonContentType, bytes.NewReader(doc))
	if err != nil {
		return "", fmt.Errorf("%w %s: %w", ErrPersist, path, err)
	}
	return uri, nil
}

func (f *SourceFetcher) emit(evt progress.Event) {
	evt.RunID = f.cfg.RunID
	evt.TS = time.Now().UTC()
	f.emitter.Emit(evt)
}
