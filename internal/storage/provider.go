// Package storage holds finished exports on the local filesystem or in an
// S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

var ErrInvalidKey = errors.New("invalid storage key")

// Writer streams one object to its destination. Close commits the object;
// Abort discards whatever was written.
type Writer interface {
	io.WriteCloser
	Abort(err error)
}

// Provider defines where exported data is stored.
type Provider interface {
	// Create returns a Writer for key. The channel receives a single error (or
	// nil) once the object is committed or aborted.
	Create(ctx context.Context, key, contentType string) (Writer, <-chan error)

	// Open opens a stored object for reading.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// URL returns a locator for the stored object.
	URL(key string) string
}

// cleanKey rejects absolute keys and keys escaping the storage root.
func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return "", ErrInvalidKey
	}
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidKey
	}
	return clean, nil
}

// failed returns a closed channel carrying err.
func failed(err error) <-chan error {
	ch := make(chan error, 1)
	ch <- err
	close(ch)
	return ch
}
