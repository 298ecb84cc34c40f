// Package local implements a filesystem blob store with atomic writes.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Config captures the parameters for the local filesystem blob store.
type Config struct {
	// BaseDir is the output root under which every object is written.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// BlobStore writes objects below a base directory. Each object is written to
// a temporary file in the target directory and renamed into place, so readers
// never see a partially written file under its final name.
type BlobStore struct {
	baseDir string
}

// New creates the base directory if needed and checks it is writable.
func New(cfg Config) (*BlobStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	probe, err := os.CreateTemp(cfg.BaseDir, ".writable-*")
	if err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	name := probe.Name()
	if err := probe.Close(); err != nil {
		return nil, fmt.Errorf("failed to close probe file: %w", err)
	}
	if err := os.Remove(name); err != nil {
		return nil, fmt.Errorf("failed to clean up probe file: %w", err)
	}

	return &BlobStore{baseDir: filepath.Clean(cfg.BaseDir)}, nil
}

// BaseDir returns the output root.
func (s *BlobStore) BaseDir() string {
	return s.baseDir
}

// EnsureDir creates dir below the base directory. An existing directory is
// not an error.
func (s *BlobStore) EnsureDir(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	full, err := s.resolve(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(full, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", full, err)
	}
	return nil
}

// PutObject atomically writes data to path and returns a file:// URI. An
// existing object is replaced.
func (s *BlobStore) PutObject(ctx context.Context, path string, _ string, data io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context canceled: %w", err)
	}
	fullPath, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	if fullPath == s.baseDir {
		return "", fmt.Errorf("path %q resolves to the base directory", path)
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create parent directories: %w", err)
	}
	if err := writeAtomic(dir, fullPath, data); err != nil {
		return "", err
	}
	return fmt.Sprintf("file://%s", fullPath), nil
}

// resolve maps a slash-separated relative path below the base directory and
// rejects anything that escapes it.
func (s *BlobStore) resolve(rel string) (string, error) {
	full := filepath.Join(s.baseDir, filepath.FromSlash(rel))
	if full != s.baseDir && !strings.HasPrefix(full, s.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected: %q", rel)
	}
	return full, nil
}

func writeAtomic(dir, target string, data io.Reader) (err error) {
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = io.Copy(tmp, data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err = os.Chmod(tmpName, 0o640); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err = os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("failed to rename file into place: %w", err)
	}
	return nil
}
