// Package crawler implements the per-source product crawl: the catalog phase
// that lists a source's products and the detail phase that fetches each one,
// plus the outcome and report types the dispatcher aggregates.
package crawler
