// Package gcs provides a BlobStore backed by Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
)

// Config captures the parameters required to write to GCS.
type Config struct {
	Bucket string
	// Prefix is prepended to every object name, e.g. "crawls/2024-06-01".
	Prefix string
}

// BlobStore writes output documents to a bucket using the same
// <source>/<file>.json layout as the local store. GCS objects only become
// visible once the writer is closed, so uploads are atomic.
type BlobStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed blob store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// EnsureDir is a no-op; GCS has no directories.
func (s *BlobStore) EnsureDir(context.Context, string) error {
	return nil
}

// PutObject uploads data and returns a gs:// URI.
func (s *BlobStore) PutObject(ctx context.Context, name string, contentType string, r io.Reader) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("path is required")
	}
	object := s.objectName(name)
	// Canceling the writer's context aborts the upload; Close would commit it.
	uploadCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	writer := s.client.Bucket(s.bucket).Object(object).NewWriter(uploadCtx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := io.Copy(writer, r); err != nil {
		cancel()
		_ = writer.Close()
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, object), nil
}

func (s *BlobStore) objectName(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}
