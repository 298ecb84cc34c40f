package crawler

import (
	"net/http"
	"strings"
	"time"
)

// Source is one external product catalog, identified by its display name.
type Source struct {
	Name    string `json:"name"`
	BaseURL string `json:"baseUrl"`
}

// Valid reports whether both the display name and base URL are present.
func (s Source) Valid() bool {
	return strings.TrimSpace(s.Name) != "" && strings.TrimSpace(s.BaseURL) != ""
}

// OutcomeStatus tags the verdict of a single source.
type OutcomeStatus string

// Outcome statuses.
const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailure OutcomeStatus = "failure"
)

// Outcome is the source-level result of a crawl. A source succeeds when its
// catalog was fetched and persisted; product failures only show up in Products.
type Outcome struct {
	Source   string        `json:"source"`
	Status   OutcomeStatus `json:"status"`
	Reason   string        `json:"reason,omitempty"`
	Products ProductStats  `json:"products"`
	Duration time.Duration `json:"duration"`
}

// Failed reports whether the outcome is a Failure.
func (o Outcome) Failed() bool {
	return o.Status == OutcomeFailure
}

// Succeeded builds a Success outcome.
func Succeeded(source string, stats ProductStats, dur time.Duration) Outcome {
	return Outcome{Source: source, Status: OutcomeSuccess, Products: stats, Duration: dur}
}

// Failed builds a Failure outcome carrying the cause.
func Failed(source string, err error, dur time.Duration) Outcome {
	reason := "unknown error"
	if err != nil {
		reason = err.Error()
	}
	return Outcome{Source: source, Status: OutcomeFailure, Reason: reason, Duration: dur}
}

// ProductStats counts detail-phase results for one source.
type ProductStats struct {
	Listed  int `json:"listed"`
	Fetched int `json:"fetched"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Add accumulates o into s.
func (s *ProductStats) Add(o ProductStats) {
	s.Listed += o.Listed
	s.Fetched += o.Fetched
	s.Failed += o.Failed
	s.Skipped += o.Skipped
}

// FetchRequest captures everything needed to GET a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the raw result returned by a Fetcher. Non-2xx responses are
// returned without an error; callers decide how to treat the status.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}
