package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/bank-product-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/bank-product-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/bank-product-crawler/internal/storage/local"
)

// bankServer serves catalogs and product details for several banks under
// /<bank>/banking/products. Unknown paths return 404.
type bankServer struct {
	*httptest.Server

	mu       sync.Mutex
	catalogs map[string]int
	products map[string]map[string]int
	hits     map[string]int
}

func newBankServer(t *testing.T) *bankServer {
	t.Helper()
	s := &bankServer{
		catalogs: make(map[string]int),
		products: make(map[string]map[string]int),
		hits:     make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// bank registers a catalog with the given status and product detail statuses.
func (s *bankServer) bank(name string, status int, products map[string]int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalogs[name] = status
	s.products[name] = products
	return s.URL + "/" + name
}

func (s *bankServer) hitsFor(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[name]
}

func (s *bankServer) serve(w http.ResponseWriter, r *http.Request) {
	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	bank, rest := parts[0], parts[1]

	s.mu.Lock()
	s.hits[bank]++
	status, ok := s.catalogs[bank]
	products := s.products[bank]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	switch {
	case rest == "banking/products":
		if r.Header.Get("X-V") != "3" || r.URL.Query().Get("page-size") != "1000" {
			http.Error(w, "bad catalog request", http.StatusBadRequest)
			return
		}
		if status != http.StatusOK {
			http.Error(w, "catalog error", status)
			return
		}
		list := make([]map[string]string, 0, len(products))
		for id := range products {
			list = append(list, map[string]string{"productId": id, "name": "Product " + id})
		}
		writeJSON(w, map[string]any{"data": map[string]any{"products": list}})
	case strings.HasPrefix(rest, "banking/products/"):
		if r.Header.Get("X-V") != "4" {
			http.Error(w, "bad detail request", http.StatusBadRequest)
			return
		}
		id := strings.TrimPrefix(rest, "banking/products/")
		code, ok := products[id]
		if !ok || code != http.StatusOK {
			if !ok {
				code = http.StatusNotFound
			}
			http.Error(w, "detail error", code)
			return
		}
		writeJSON(w, map[string]any{"data": map[string]any{"productId": id, "bank": bank}})
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newCrawlDispatcher(t *testing.T, root string) *Dispatcher {
	t.Helper()
	store, err := local.New(local.Config{BaseDir: root})
	require.NoError(t, err)
	fetcher := collyfetcher.New(collyfetcher.Config{UserAgent: "bankcrawler-test", Timeout: 2 * time.Second})
	sf := crawler.NewSourceFetcher(fetcher, store, nil, nil, crawler.Config{
		ProductConcurrency: 2,
		RequestTimeout:     2 * time.Second,
	}, zap.NewNop())
	return New(sf, Config{Workers: DefaultWorkers, RunID: uuid.New()}, nil, zap.NewNop())
}

func listFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestCrawlAllSucceed(t *testing.T) {
	t.Parallel()

	srv := newBankServer(t)
	root := t.TempDir()
	a := srv.bank("BankA", http.StatusOK, map[string]int{"p1": http.StatusOK, "p2": http.StatusOK})
	b := srv.bank("BankB", http.StatusOK, map[string]int{})

	report := newCrawlDispatcher(t, root).Run(context.Background(), []crawler.Source{
		{Name: "BankA", BaseURL: a},
		{Name: "BankB", BaseURL: b},
	})

	assert.Empty(t, report.FailedSources())
	assert.ElementsMatch(t, []string{"BankA_products.json", "p1.json", "p2.json"}, listFiles(t, filepath.Join(root, "BankA")))
	assert.Equal(t, []string{"BankB_products.json"}, listFiles(t, filepath.Join(root, "BankB")))

	raw, err := os.ReadFile(filepath.Join(root, "BankA", "p1.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":{"productId":"p1","bank":"BankA"}}`, string(raw))
	assert.Contains(t, string(raw), "\n    \"data\"", "documents are pretty-printed")
}

func TestCrawlCatalogServerError(t *testing.T) {
	t.Parallel()

	srv := newBankServer(t)
	root := t.TempDir()
	a := srv.bank("BankA", http.StatusInternalServerError, map[string]int{"p1": http.StatusOK})
	b := srv.bank("BankB", http.StatusOK, map[string]int{"p1": http.StatusOK})

	report := newCrawlDispatcher(t, root).Run(context.Background(), []crawler.Source{
		{Name: "BankA", BaseURL: a},
		{Name: "BankB", BaseURL: b},
	})

	assert.Equal(t, []string{"BankA"}, report.FailedSources())
	assert.Empty(t, listFiles(t, filepath.Join(root, "BankA")))
	assert.ElementsMatch(t, []string{"BankB_products.json", "p1.json"}, listFiles(t, filepath.Join(root, "BankB")))

	var summary strings.Builder
	require.NoError(t, report.WriteSummary(&summary))
	assert.Contains(t, summary.String(), "1. BankA")
}

func TestCrawlProductNotFoundIsIsolated(t *testing.T) {
	t.Parallel()

	srv := newBankServer(t)
	root := t.TempDir()
	a := srv.bank("BankA", http.StatusOK, map[string]int{"p1": http.StatusOK, "p2": http.StatusNotFound})

	report := newCrawlDispatcher(t, root).Run(context.Background(), []crawler.Source{{Name: "BankA", BaseURL: a}})

	assert.False(t, report.HasFailures())
	files := listFiles(t, filepath.Join(root, "BankA"))
	assert.Contains(t, files, "p1.json")
	assert.NotContains(t, files, "p2.json")
	assert.Equal(t, 1, report.Products.Fetched)
	assert.Equal(t, 1, report.Products.Failed)
}

func TestCrawlSkipsRecordWithoutName(t *testing.T) {
	t.Parallel()

	srv := newBankServer(t)
	root := t.TempDir()
	z := srv.bank("z", http.StatusOK, map[string]int{})

	report := newCrawlDispatcher(t, root).Run(context.Background(), []crawler.Source{{Name: "", BaseURL: z}})

	assert.Zero(t, srv.hitsFor("z"))
	assert.Empty(t, listFiles(t, root))
	assert.Empty(t, report.FailedSources())
	assert.Len(t, report.Skipped, 1)
}

func TestCrawlPartialProductFailures(t *testing.T) {
	t.Parallel()

	srv := newBankServer(t)
	root := t.TempDir()
	products := map[string]int{}
	for i := range 8 {
		code := http.StatusOK
		if i%3 == 0 {
			code = http.StatusBadGateway
		}
		products[fmt.Sprintf("p%d", i)] = code
	}
	a := srv.bank("BankA", http.StatusOK, products)

	report := newCrawlDispatcher(t, root).Run(context.Background(), []crawler.Source{{Name: "BankA", BaseURL: a}})

	require.False(t, report.HasFailures())
	// p0, p3 and p6 fail; the catalog file accounts for the extra entry.
	assert.Len(t, listFiles(t, filepath.Join(root, "BankA")), 8-3+1)
}

func TestCrawlRerunOverwrites(t *testing.T) {
	t.Parallel()

	srv := newBankServer(t)
	root := t.TempDir()
	a := srv.bank("BankA", http.StatusOK, map[string]int{"p1": http.StatusOK})
	sources := []crawler.Source{{Name: "BankA", BaseURL: a}}

	first := newCrawlDispatcher(t, root).Run(context.Background(), sources)
	require.False(t, first.HasFailures())
	second := newCrawlDispatcher(t, root).Run(context.Background(), sources)
	require.False(t, second.HasFailures())

	assert.ElementsMatch(t, []string{"BankA_products.json", "p1.json"}, listFiles(t, filepath.Join(root, "BankA")))
}

func TestCrawlUnreachableSource(t *testing.T) {
	t.Parallel()

	srv := newBankServer(t)
	root := t.TempDir()
	b := srv.bank("BankB", http.StatusOK, map[string]int{"p1": http.StatusOK})

	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	report := newCrawlDispatcher(t, root).Run(context.Background(), []crawler.Source{
		{Name: "BankA", BaseURL: deadURL},
		{Name: "BankB", BaseURL: b},
	})
	assert.Equal(t, []string{"BankA"}, report.FailedSources())
	assert.Equal(t, []string{"BankB"}, report.Succeeded)
}
