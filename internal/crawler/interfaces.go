package crawler

import (
	"context"
	"io"
	"time"
)

// Fetcher performs a single HTTP GET. Implementations must bound every call
// with a finite timeout.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// BlobStore persists output documents under slash-separated paths relative to
// the output root.
type BlobStore interface {
	// EnsureDir creates dir if needed; an existing dir is not an error.
	EnsureDir(ctx context.Context, dir string) error
	// PutObject writes data to path and returns its URI. Writes must be atomic:
	// a reader never observes a partially written object under path.
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// RetryPolicy decides whether a failed fetch is attempted again.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}
