package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrObjectNotFound is returned by StatObject for a missing key.
var ErrObjectNotFound = errors.New("storage: object not found")

// Storage is the object store the mail spool writes to. Every backend maps
// its own not-found errors to ErrObjectNotFound, and DeleteObject on a
// missing key succeeds.
type Storage interface {
	io.Closer

	BucketExists(ctx context.Context, bucket string) (bool, error)
	PutObject(ctx context.Context, bucket, key string, r io.Reader, opts PutOptions) (ObjectInfo, error)
	StatObject(ctx context.Context, bucket, key string) (ObjectInfo, error)
	DeleteObject(ctx context.Context, bucket, key string) error
}

// PutOptions describes an upload. Size is the exact length of the reader
// when known and zero otherwise.
type PutOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

type ObjectInfo struct {
	Bucket      string
	Key         string
	Size        int64
	ETag        string
	ContentType string
	Metadata    map[string]string
	UpdatedAt   time.Time
}

// uploaded is the ObjectInfo for a put whose response carries only an ETag.
func (o PutOptions) uploaded(bucket, key, etag string) ObjectInfo {
	return ObjectInfo{
		Bucket:      bucket,
		Key:         key,
		Size:        o.Size,
		ETag:        etag,
		ContentType: o.ContentType,
		Metadata:    o.Metadata,
	}
}

// opError prefixes err with the backend and operation. A nil err stays nil.
func opError(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("storage: %s %s: %w", backend, op, err)
}
