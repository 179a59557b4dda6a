package gcsuploader

import (
	"context"
	"io"
	"sync"
)

// LazyStorageService creates the GCS client on first use, so processes that
// never touch gs:// URIs need no credentials.
type LazyStorageService struct {
	once sync.Once
	svc  *GCSStorageService
	err  error
}

// NewLazyStorageService returns a service with no client yet.
func NewLazyStorageService() *LazyStorageService {
	return &LazyStorageService{}
}

func (l *LazyStorageService) get(ctx context.Context) (*GCSStorageService, error) {
	l.once.Do(func() {
		l.svc, l.err = NewGCSStorageService(context.WithoutCancel(ctx))
	})
	return l.svc, l.err
}

// Upload implements StorageService.
func (l *LazyStorageService) Upload(ctx context.Context, bucketName, objectName string, r io.Reader) (string, error) {
	svc, err := l.get(ctx)
	if err != nil {
		return "", err
	}
	return svc.Upload(ctx, bucketName, objectName, r)
}

// Open implements StorageService.
func (l *LazyStorageService) Open(ctx context.Context, gcsURI string) (io.ReadCloser, error) {
	if _, _, err := ParseGCSURI(gcsURI); err != nil {
		return nil, err
	}
	svc, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return svc.Open(ctx, gcsURI)
}

// Close releases the client if one was created.
func (l *LazyStorageService) Close() error {
	if l.svc == nil {
		return nil
	}
	return l.svc.Close()
}

var _ StorageService = (*LazyStorageService)(nil)
