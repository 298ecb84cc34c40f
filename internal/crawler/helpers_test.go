package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/bank-product-crawler/internal/progress"
)

type fakeRoute struct {
	status int
	body   string
	err    error
}

type fakeFetcher struct {
	mu       sync.Mutex
	routes   map[string]fakeRoute
	requests []FetchRequest
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{routes: make(map[string]fakeRoute)}
}

func (f *fakeFetcher) route(url string, status int, body string) *fakeFetcher {
	f.routes[url] = fakeRoute{status: status, body: body}
	return f
}

func (f *fakeFetcher) fail(url string, err error) *fakeFetcher {
	f.routes[url] = fakeRoute{err: err}
	return f
}

func (f *fakeFetcher) Fetch(_ context.Context, req FetchRequest) (FetchResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	route, ok := f.routes[req.URL]
	f.mu.Unlock()
	if !ok {
		return FetchResponse{URL: req.URL, StatusCode: http.StatusNotFound}, nil
	}
	if route.err != nil {
		return FetchResponse{}, route.err
	}
	return FetchResponse{
		URL:        req.URL,
		StatusCode: route.status,
		Body:       []byte(route.body),
		Duration:   time.Millisecond,
	}, nil
}

func (f *fakeFetcher) Requests() []FetchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FetchRequest(nil), f.requests...)
}

func (f *fakeFetcher) RequestFor(url string) (FetchRequest, bool) {
	for _, r := range f.Requests() {
		if r.URL == url {
			return r, true
		}
	}
	return FetchRequest{}, false
}

type memStore struct {
	mu      sync.Mutex
	dirs    map[string]int
	objects map[string][]byte
	failing map[string]error
	dirErr  error
}

func newMemStore() *memStore {
	return &memStore{
		dirs:    make(map[string]int),
		objects: make(map[string][]byte),
		failing: make(map[string]error),
	}
}

func (s *memStore) EnsureDir(_ context.Context, dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dirErr != nil {
		return s.dirErr
	}
	s.dirs[dir]++
	return nil
}

func (s *memStore) PutObject(_ context.Context, path string, _ string, data io.Reader) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failing[path]; ok {
		return "", err
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read data: %w", err)
	}
	s.objects[path] = b
	return "memory://" + path, nil
}

func (s *memStore) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.objects))
	for p := range s.objects {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (s *memStore) Object(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[path]
	return b, ok
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recordingEmitter) Emit(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) count(stage progress.Stage) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, evt := range r.events {
		if evt.Stage == stage {
			n++
		}
	}
	return n
}
