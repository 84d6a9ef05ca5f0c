package domain

import (
	"context"
	"io"
)

// BlobWriter uploads objects to cold storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	Exists(ctx context.Context, path string) (bool, error)
}
