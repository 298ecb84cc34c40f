package crawler

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"
)

// Report summarizes a crawl run once every scheduled source has reported.
type Report struct {
	RunID     string       `json:"run_id"`
	Started   time.Time    `json:"started_at"`
	Finished  time.Time    `json:"finished_at"`
	Succeeded []string     `json:"succeeded"`
	Failed    []Outcome    `json:"failed"`
	Skipped   []Source     `json:"skipped"`
	Products  ProductStats `json:"products"`
	Outcomes  []Outcome    `json:"-"`
}

// NewReport partitions outcomes into successes and failures. Names are sorted
// so the report does not depend on completion order.
func NewReport(runID string, started, finished time.Time, outcomes []Outcome, skipped []Source) Report {
	r := Report{
		RunID:     runID,
		Started:   started,
		Finished:  finished,
		Succeeded: []string{},
		Failed:    []Outcome{},
		Skipped:   append([]Source{}, skipped...),
		Outcomes:  outcomes,
	}
	for _, o := range outcomes {
		r.Products.Add(o.Products)
		if o.Failed() {
			r.Failed = append(r.Failed, o)
			continue
		}
		r.Succeeded = append(r.Succeeded, o.Source)
	}
	sort.Strings(r.Succeeded)
	sort.Slice(r.Failed, func(i, j int) bool { return r.Failed[i].Source < r.Failed[j].Source })
	return r
}

// FailedSources lists the names of sources whose outcome is Failure.
func (r Report) FailedSources() []string {
	names := make([]string, 0, len(r.Failed))
	for _, o := range r.Failed {
		names = append(names, o.Source)
	}
	return names
}

// HasFailures reports whether any source failed.
func (r Report) HasFailures() bool {
	return len(r.Failed) > 0
}

// WriteSummary renders the enumerated list of failed sources. Nothing is
// written when every source succeeded.
func (r Report) WriteSummary(w io.Writer) error {
	if !r.HasFailures() {
		return nil
	}
	if _, err := fmt.Fprintln(w, "\n--- Failed Banks ---"); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	for i, o := range r.Failed {
		if _, err := fmt.Fprintf(w, "%d. %s\n", i+1, o.Source); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	return nil
}

// WriteJSON encodes the report as indented JSON.
func (r Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
