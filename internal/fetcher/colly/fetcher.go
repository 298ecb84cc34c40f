// Package collyfetcher implements crawler.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/bank-product-crawler/internal/crawler"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxBodySize = 32 << 20
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	// Timeout bounds every request; zero selects a 30s default.
	Timeout time.Duration
	// MaxBodySize caps response bodies in bytes; zero selects 32 MiB.
	MaxBodySize int
	// Transport overrides the pooled HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Fetcher implements crawler.Fetcher with a Colly collector. Each Fetch runs
// on a clone, so a Fetcher is safe for concurrent use across sources.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. Non-2xx responses are parsed rather than treated as
// errors so callers can inspect the status; robots.txt is not consulted since
// the targets are JSON APIs.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = defaultMaxBodySize
	}
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.ParseHTTPErrorResponse(),
		colly.MaxBodySize(cfg.MaxBodySize),
	)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	transport := cfg.Transport
	if transport == nil {
		transport = newHTTPTransport()
	}
	c.WithTransport(transport)
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	var (
		result   crawler.FetchResponse
		fetchErr error
	)
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	f.configureCollectorHooks(collector, request, time.Now(), &result, &fetchErr)

	if err := f.runCollector(ctx, collector, request.URL, &fetchErr); err != nil {
		if ctx.Err() != nil {
			// the visit may still be running and owns result
			return crawler.FetchResponse{URL: request.URL}, err
		}
		return crawler.FetchResponse{URL: request.URL, StatusCode: result.StatusCode}, err
	}
	return result, nil
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	request crawler.FetchRequest,
	start time.Time,
	result *crawler.FetchResponse,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		f.copyHeaders(request, r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		*result = crawler.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			result.StatusCode = r.StatusCode
		}
		*fetchErr = err
	})
}

// runCollector visits url on a separate goroutine so ctx cancellation frees
// the caller immediately; the visit itself is bounded by the client timeout.
func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

func (f *Fetcher) copyHeaders(request crawler.FetchRequest, r *colly.Request) {
	for key, values := range request.Headers {
		r.Headers.Del(key)
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
	}
}
