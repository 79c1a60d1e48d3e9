// Package storage defines the blob store used to archive analysis records.
// Implementations live in the memory, local, and gcs subpackages.
package storage

import (
	"context"
	"io"
)

// BlobStore writes one object and returns a URI that locates it.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}
