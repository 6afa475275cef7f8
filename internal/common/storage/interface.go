package storage

import (
	"context"
	"io"
)

// ObjectReader streams object content.
type ObjectReader interface {
	io.Reader
	io.Closer
}

// ObjectStat describes stored object metadata.
type ObjectStat struct {
	SizeBytes   int64
	ETag        string
	ContentType string
}

// ObjectStorage defines the interface for archiving and retrieving blobs.
// Used for submission source archives, which outlive the database row's
// truncated code column.
type ObjectStorage interface {
	// PutObject uploads an object. sizeBytes must match the reader length.
	PutObject(ctx context.Context, bucket, objectKey string, reader io.Reader, sizeBytes int64, contentType string) error

	// GetObject streams an object back. The caller must close the reader.
	GetObject(ctx context.Context, bucket, objectKey string) (ObjectReader, error)

	// StatObject returns object metadata without downloading the body.
	StatObject(ctx context.Context, bucket, objectKey string) (ObjectStat, error)
}
