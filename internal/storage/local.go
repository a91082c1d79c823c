package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

type LocalProvider struct {
	basePath string
}

func NewLocalProvider(basePath string) (*LocalProvider, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create local storage directory %s: %w", basePath, err)
	}
	return &LocalProvider{basePath: basePath}, nil
}

func (p *LocalProvider) path(key string) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", fmt.Errorf("%w: %q", err, key)
	}
	return filepath.Join(p.basePath, filepath.FromSlash(clean)), nil
}

// Create writes to a temporary file beside the target and renames it into
// place on Close, so readers never see a partial export.
func (p *LocalProvider) Create(ctx context.Context, key, contentType string) (Writer, <-chan error) {
	fullPath, err := p.path(key)
	if err != nil {
		return nil, failed(err)
	}
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, failed(fmt.Errorf("failed to create directory %s: %w", dir, err))
	}

	f, err := os.CreateTemp(dir, ".partial-*")
	if err != nil {
		return nil, failed(fmt.Errorf("failed to create file for %s: %w", key, err))
	}

	errChan := make(chan error, 1)
	return &localWriter{f: f, path: fullPath, errChan: errChan}, errChan
}

func (p *LocalProvider) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	fullPath, err := p.path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(fullPath)
}

func (p *LocalProvider) URL(key string) string {
	fullPath, err := p.path(key)
	if err != nil {
		return ""
	}
	abs, _ := filepath.Abs(fullPath)
	return "file://" + filepath.ToSlash(abs)
}

type localWriter struct {
	f       *os.File
	path    string
	errChan chan error
	once    sync.Once
}

func (w *localWriter) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

func (w *localWriter) Close() error {
	err := w.f.Close()
	if err == nil {
		err = os.Rename(w.f.Name(), w.path)
	}
	if err != nil {
		_ = os.Remove(w.f.Name())
	} else {
		slog.Info("Local export written", "path", w.path)
	}
	w.finish(err)
	return err
}

func (w *localWriter) Abort(cause error) {
	_ = w.f.Close()
	_ = os.Remove(w.f.Name())
	w.finish(fmt.Errorf("export aborted: %w", cause))
}

func (w *localWriter) finish(err error) {
	w.once.Do(func() {
		w.errChan <- err
		close(w.errChan)
	})
}
