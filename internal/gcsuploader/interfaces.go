package gcsuploader

import (
	"context"
	"io"
)

// StorageService provides an interface for cloud storage operations.
// This interface enables mocking and testing of storage functionality.
type StorageService interface {
	// Upload streams r into bucket/object and returns the gs:// URI.
	Upload(ctx context.Context, bucketName, objectName string, r io.Reader) (string, error)

	// Open returns a reader over the object at a gs:// URI.
	Open(ctx context.Context, gcsURI string) (io.ReadCloser, error)
}
