package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Supported values of storage.driver.
const (
	DriverS3    = "s3"
	DriverGCS   = "gcs"
	DriverMinIO = "minio"
)

var (
	// ErrUnknownDriver is returned for a driver name no backend is registered under.
	ErrUnknownDriver = errors.New("storage: unknown driver")
	// ErrDriverRequired is returned for a blank driver name.
	ErrDriverRequired = errors.New("storage: driver is required")
)

// FactoryOptions carries the settings of every backend; only the one
// matching the driver is read.
type FactoryOptions struct {
	S3    S3Options
	GCS   GCSOptions
	MinIO MinIOOptions
}

type constructor func(ctx context.Context, opts FactoryOptions) (Storage, error)

var backends = map[string]constructor{
	DriverS3:    func(ctx context.Context, o FactoryOptions) (Storage, error) { return NewS3(ctx, o.S3) },
	DriverGCS:   func(ctx context.Context, o FactoryOptions) (Storage, error) { return NewGCS(ctx, o.GCS) },
	DriverMinIO: func(_ context.Context, o FactoryOptions) (Storage, error) { return NewMinIO(o.MinIO) },
}

// Drivers lists the accepted driver names, sorted.
func Drivers() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NewFromDriver builds the backend registered under driver. Matching ignores
// case and surrounding spaces.
func NewFromDriver(ctx context.Context, driver string, opts FactoryOptions) (Storage, error) {
	name := strings.ToLower(strings.TrimSpace(driver))
	if name == "" {
		return nil, ErrDriverRequired
	}

	build, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (want one of %s)", ErrUnknownDriver, driver, strings.Join(Drivers(), ", "))
	}

	stg, err := build(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("storage: init %s: %w", name, err)
	}
	return stg, nil
}
