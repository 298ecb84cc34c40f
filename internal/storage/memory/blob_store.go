// Package memory keeps output documents in memory; it backs dry runs and tests.
package memory

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
)

// BlobStore stores objects in a map and returns memory:// URIs.
type BlobStore struct {
	mu   sync.RWMutex
	dirs map[string]struct{}
	data map[string][]byte
}

// NewBlobStore creates an empty in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{
		dirs: make(map[string]struct{}),
		data: make(map[string][]byte),
	}
}

// EnsureDir records dir.
func (s *BlobStore) EnsureDir(_ context.Context, dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirs[dir] = struct{}{}
	return nil
}

// PutObject stores a copy of the content under path.
func (s *BlobStore) PutObject(_ context.Context, path string, _ string, data io.Reader) (string, error) {
	byteData, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("failed to read data from reader: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[path] = byteData
	return fmt.Sprintf("memory://%s", path), nil
}

// Get returns the stored content for path.
func (s *BlobStore) Get(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.data[path]
	return append([]byte(nil), b...), ok
}

// Paths lists stored object paths in sorted order.
func (s *BlobStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.data))
	for p := range s.data {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
