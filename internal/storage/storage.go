package storage

import (
	"context"
	"io"
)

// ObjectInfo represents metadata for a stored file/object.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
}

// ObjectStorage captures the minimal operations needed for batch quality
// certificates (COA scans and PDFs).
type ObjectStorage interface {
	UploadObject(ctx context.Context, key string, contentType string, size int64, body io.Reader) error
	DownloadObject(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
}
