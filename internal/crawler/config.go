package crawler

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Remote contract of the product endpoints. The catalog and detail calls use
// different API versions.
const (
	APIVersionHeader  = "x-v"
	CatalogAPIVersion = "3"
	DetailAPIVersion  = "4"
	// CatalogPageSize is requested with page=1 only; larger catalogs are
	// truncated to this many products.
	CatalogPageSize = 1000
	jsonContentType = "application/json"
)

// Config controls a SourceFetcher.
type Config struct {
	// RunID tags every progress event emitted during the run.
	RunID [16]byte
	// ProductConcurrency bounds in-flight detail fetches per source; values
	// below 1 fetch products sequentially.
	ProductConcurrency int
	// UserAgent is sent with every request when set.
	UserAgent string
	// RequestTimeout bounds each fetch attempt on top of the fetcher's own
	// client timeout.
	RequestTimeout time.Duration
}

// CatalogURL returns the listing endpoint for baseURL.
func CatalogURL(baseURL string) string {
	return fmt.Sprintf("%s/banking/products?page=1&page-size=%d", trimBase(baseURL), CatalogPageSize)
}

// ProductURL returns the detail endpoint for one product.
func ProductURL(baseURL, productID string) string {
	return fmt.Sprintf("%s/banking/products/%s", trimBase(baseURL), url.PathEscape(productID))
}

// CatalogPath is the output path of a source's catalog document.
func CatalogPath(sourceName string) string {
	return sourceName + "/" + sourceName + "_products.json"
}

// ProductPath is the output path of a single product document.
func ProductPath(sourceName, productID string) string {
	return sourceName + "/" + productID + ".json"
}

func trimBase(baseURL string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/")
}
