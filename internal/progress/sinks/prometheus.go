package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/bank-product-crawler/internal/progress"
)

// PrometheusSink exports crawl progress as Prometheus collectors.
type PrometheusSink struct {
	sourcesStarted   prometheus.Counter
	sourcesCompleted *prometheus.CounterVec
	sourcesSkipped   prometheus.Counter
	sourcesRunning   prometheus.Gauge
	sourceRuntime    *prometheus.HistogramVec

	productResults *prometheus.CounterVec
	fetchBytes     *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
}

// NewPrometheusSink registers the collectors against reg, falling back to the
// default registerer when reg is nil.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		sourcesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bankcrawler_sources_started_total",
			Help: "Sources whose catalog phase has started.",
		}),
		sourcesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bankcrawler_sources_completed_total",
			Help: "Sources completed, partitioned by outcome.",
		}, []string{"outcome"}),
		sourcesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bankcrawler_sources_skipped_total",
			Help: "Source records skipped because they were malformed.",
		}),
		sourcesRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bankcrawler_sources_running",
			Help: "Sources currently being fetched.",
		}),
		sourceRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bankcrawler_source_runtime_seconds",
			Help:    "Wall time per source, partitioned by outcome.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"outcome"}),
		productResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bankcrawler_products_total",
			Help: "Product detail results partitioned by source and result.",
		}, []string{"source", "result"}),
		fetchBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bankcrawler_persisted_bytes_total",
			Help: "Bytes persisted per source.",
		}, []string{"source"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bankcrawler_fetch_duration_seconds",
			Help:    "Fetch latency partitioned by phase and status class.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"phase", "status_class"}),
	}
	for _, collector := range []prometheus.Collector{
		s.sourcesStarted,
		s.sourcesCompleted,
		s.sourcesSkipped,
		s.sourcesRunning,
		s.sourceRuntime,
		s.productResults,
		s.fetchBytes,
		s.fetchDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageSourceStart:
		s.sourcesStarted.Inc()
		s.sourcesRunning.Inc()
	case progress.StageSourceSkipped:
		s.sourcesSkipped.Inc()
	case progress.StageCatalogDone:
		s.observeFetch("catalog", evt)
	case progress.StageSourceDone:
		s.completeSource("success", evt)
	case progress.StageSourceFailed:
		s.completeSource("failure", evt)
	case progress.StageProductDone:
		s.productResults.WithLabelValues(evt.Source, "fetched").Inc()
		s.observeFetch("detail", evt)
	case progress.StageProductFailed:
		s.productResults.WithLabelValues(evt.Source, "failed").Inc()
		s.observeFetch("detail", evt)
	case progress.StageProductSkipped:
		s.productResults.WithLabelValues(evt.Source, "skipped").Inc()
	}
}

func (s *PrometheusSink) completeSource(outcome string, evt progress.Event) {
	s.sourcesCompleted.WithLabelValues(outcome).Inc()
	s.sourcesRunning.Dec()
	if evt.Dur > 0 {
		s.sourceRuntime.WithLabelValues(outcome).Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) observeFetch(phase string, evt progress.Event) {
	if evt.Bytes > 0 {
		s.fetchBytes.WithLabelValues(evt.Source).Add(float64(evt.Bytes))
	}
	if evt.Dur <= 0 {
		return
	}
	class := string(evt.StatusClass)
	if class == "" {
		class = string(progress.StatusOther)
	}
	s.fetchDuration.WithLabelValues(phase, class).Observe(evt.Dur.Seconds())
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
