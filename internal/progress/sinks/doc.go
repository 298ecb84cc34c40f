// Package sinks implements progress consumers: a structured zap log sink and
// a Prometheus sink that turns crawl events into counters and histograms.
package sinks
