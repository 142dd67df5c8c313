package storage

import (
	"context"
	"errors"
	"io"

	gcs "cloud.google.com/go/storage"
)

const backendGCS = "gcs"

// GCSOptions carries a prepared client. A nil Client is created from
// application default credentials.
type GCSOptions struct {
	Client *gcs.Client
}

// GCSAdapter implements Storage on Google Cloud Storage.
type GCSAdapter struct {
	client *gcs.Client
}

func NewGCS(ctx context.Context, opts GCSOptions) (*GCSAdapter, error) {
	if opts.Client != nil {
		return &GCSAdapter{client: opts.Client}, nil
	}

	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, opError(backendGCS, "new client", err)
	}
	return &GCSAdapter{client: client}, nil
}

func (g *GCSAdapter) BucketExists(ctx context.Context, bucket string) (bool, error) {
	_, err := g.client.Bucket(bucket).Attrs(ctx)
	if errors.Is(err, gcs.ErrBucketNotExist) {
		return false, nil
	}
	return err == nil, opError(backendGCS, "bucket attrs", err)
}

// PutObject streams r through an object writer. The object only becomes
// visible once the writer closes cleanly.
func (g *GCSAdapter) PutObject(ctx context.Context, bucket, key string, r io.Reader, opts PutOptions) (ObjectInfo, error) {
	w := g.client.Bucket(bucket).Object(key).NewWriter(ctx)
	w.ContentType = opts.ContentType
	if len(opts.Metadata) > 0 {
		w.Metadata = opts.Metadata
	}

	if _, err := io.Copy(w, r); err != nil {
		return ObjectInfo{}, opError(backendGCS, "write "+key, errors.Join(err, w.Close()))
	}
	if err := w.Close(); err != nil {
		return ObjectInfo{}, opError(backendGCS, "close "+key, err)
	}

	if attrs := w.Attrs(); attrs != nil {
		return fromGCSAttrs(attrs), nil
	}
	return opts.uploaded(bucket, key, ""), nil
}

func (g *GCSAdapter) StatObject(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	attrs, err := g.client.Bucket(bucket).Object(key).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		err = ErrObjectNotFound
	}
	if err != nil {
		return ObjectInfo{}, opError(backendGCS, "object attrs "+key, err)
	}
	return fromGCSAttrs(attrs), nil
}

func (g *GCSAdapter) DeleteObject(ctx context.Context, bucket, key string) error {
	err := g.client.Bucket(bucket).Object(key).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil
	}
	return opError(backendGCS, "delete "+key, err)
}

func (g *GCSAdapter) Close() error { return g.client.Close() }

func fromGCSAttrs(a *gcs.ObjectAttrs) ObjectInfo {
	return ObjectInfo{
		Bucket:      a.Bucket,
		Key:         a.Name,
		Size:        a.Size,
		ETag:        a.Etag,
		ContentType: a.ContentType,
		Metadata:    a.Metadata,
		UpdatedAt:   a.Updated,
	}
}
