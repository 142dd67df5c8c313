package storage

import (
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const backendS3 = "s3"

// fallbackRegion signs requests to S3-compatible endpoints that ignore the region.
const fallbackRegion = "us-east-1"

// S3Options configures the AWS SDK client. Empty credentials fall back to
// the default provider chain.
type S3Options struct {
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	SessionToken string
	UsePathStyle bool
}

func (o S3Options) loadOptions() []func(*awsconfig.LoadOptions) error {
	var out []func(*awsconfig.LoadOptions) error

	switch {
	case o.Region != "":
		out = append(out, awsconfig.WithRegion(o.Region))
	case o.Endpoint != "":
		out = append(out, awsconfig.WithRegion(fallbackRegion))
	}

	if o.AccessKey != "" || o.SecretKey != "" {
		creds := credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, o.SessionToken)
		out = append(out, awsconfig.WithCredentialsProvider(creds))
	}
	return out
}

// S3Adapter implements Storage on AWS S3 or any S3-compatible endpoint.
type S3Adapter struct {
	client *s3.Client
}

func NewS3(ctx context.Context, opts S3Options) (*S3Adapter, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts.loadOptions()...)
	if err != nil {
		return nil, opError(backendS3, "load config", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = opts.UsePathStyle
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
	return &S3Adapter{client: client}, nil
}

func (s *S3Adapter) BucketExists(ctx context.Context, bucket string) (bool, error) {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if isS3NotFound(err) {
		return false, nil
	}
	return err == nil, opError(backendS3, "head bucket", err)
}

func (s *S3Adapter) PutObject(ctx context.Context, bucket, key string, r io.Reader, opts PutOptions) (ObjectInfo, error) {
	in := &s3.PutObjectInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		Body:     r,
		Metadata: opts.Metadata,
	}
	if opts.ContentType != "" {
		in.ContentType = aws.String(opts.ContentType)
	}
	if opts.Size > 0 {
		in.ContentLength = aws.Int64(opts.Size)
	}

	out, err := s.client.PutObject(ctx, in)
	if err != nil {
		return ObjectInfo{}, opError(backendS3, "put "+key, err)
	}
	return opts.uploaded(bucket, key, aws.ToString(out.ETag)), nil
}

func (s *S3Adapter) StatObject(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if isS3NotFound(err) {
		return ObjectInfo{}, opError(backendS3, "head "+key, ErrObjectNotFound)
	}
	if err != nil {
		return ObjectInfo{}, opError(backendS3, "head "+key, err)
	}

	return ObjectInfo{
		Bucket:      bucket,
		Key:         key,
		Size:        aws.ToInt64(out.ContentLength),
		ETag:        aws.ToString(out.ETag),
		ContentType: aws.ToString(out.ContentType),
		Metadata:    out.Metadata,
		UpdatedAt:   aws.ToTime(out.LastModified),
	}, nil
}

// DeleteObject relies on S3 treating a missing key as a successful delete.
func (s *S3Adapter) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	return opError(backendS3, "delete "+key, err)
}

func (s *S3Adapter) Close() error { return nil }

func isS3NotFound(err error) bool {
	var (
		notFound *types.NotFound
		noKey    *types.NoSuchKey
		noBucket *types.NoSuchBucket
	)
	return errors.As(err, &notFound) || errors.As(err, &noKey) || errors.As(err, &noBucket)
}
