// Package storage is the uploaded-file collaborator. Paths are backend-relative keys.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Read and Delete when no object exists at the path.
var ErrNotFound = errors.New("stored file not found")

type Store interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte, contentType string) error
	Delete(ctx context.Context, path string) error
	// URL returns the public URL the platform serves the object under.
	URL(path string) string
}
