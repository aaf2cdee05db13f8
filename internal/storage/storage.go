package storage

import "context"

// BlobStore persists a rendered video and returns a URL callers can fetch it
// from. Implementations are pluggable: object storage in production, the
// local filesystem for development and single-host deployments.
type BlobStore interface {
	Put(ctx context.Context, path string, data []byte, contentType string) (publicURL string, err error)
}
