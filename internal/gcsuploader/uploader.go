// Package gcsuploader moves dataset files in and out of Google Cloud Storage.
package gcsuploader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const uploadTimeout = 2 * time.Minute

// GCSStorageService is the concrete implementation of StorageService
// that interacts with Google Cloud Storage.
type GCSStorageService struct {
	client *storage.Client
}

// NewGCSStorageService creates a storage client.
// It assumes Application Default Credentials are configured (gcloud auth application-default login).
func NewGCSStorageService(ctx context.Context) (*GCSStorageService, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCSStorageService: create storage client: %w", err)
	}
	return NewGCSStorageServiceWithClient(client), nil
}

// NewGCSStorageServiceWithClient uses an existing client.
func NewGCSStorageServiceWithClient(client *storage.Client) *GCSStorageService {
	return &GCSStorageService{client: client}
}

// Close releases the client.
func (s *GCSStorageService) Close() error {
	return s.client.Close()
}

// Upload implements StorageService.
func (s *GCSStorageService) Upload(ctx context.Context, bucketName, objectName string, r io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := s.client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType(objectName)

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("Upload: copy to GCS writer: %w", err)
	}

	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Upload: finalize upload: %w", err)
	}
	return ObjectURI(bucketName, objectName), nil
}

// UploadFile uploads a local file to a GCS bucket under the given object name.
func (s *GCSStorageService) UploadFile(ctx context.Context, bucketName, objectName, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("UploadFile: open file %q: %w", filePath, err)
	}
	defer f.Close()

	return s.Upload(ctx, bucketName, objectName, f)
}

// Open implements StorageService.
func (s *GCSStorageService) Open(ctx context.Context, gcsURI string) (io.ReadCloser, error) {
	bucketName, objectPath, err := ParseGCSURI(gcsURI)
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}

	rc, err := s.client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Open: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	return rc, nil
}

// ParseGCSURI splits gs://bucket/path/to/file.csv into bucket and object path.
func ParseGCSURI(gcsURI string) (bucket, object string, err error) {
	trimmed, ok := strings.CutPrefix(gcsURI, "gs://")
	if !ok {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}

	bucket, object, ok = strings.Cut(trimmed, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return bucket, object, nil
}

// ObjectURI builds the gs:// URI of an object.
func ObjectURI(bucket, object string) string {
	return "gs://" + bucket + "/" + strings.TrimPrefix(object, "/")
}

func contentType(objectName string) string {
	switch strings.ToLower(path.Ext(objectName)) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// Ensure GCSStorageService implements StorageService.
var _ StorageService = (*GCSStorageService)(nil)
