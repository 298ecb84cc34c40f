// Package progress carries crawl progress events from source fetchers to
// pluggable sinks. Emitters never block: events are buffered on a channel,
// batched on a background goroutine, and fanned out to every sink.
package progress
