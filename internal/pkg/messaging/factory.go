package messaging

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Supported values of messaging.driver.
const (
	DriverNSQ          = "nsq"
	DriverNATS         = "nats"
	DriverKafka        = "kafka"
	DriverGooglePubSub = "google-pubsub"
)

var (
	// ErrUnknownDriver is returned for a driver name no backend is registered under.
	ErrUnknownDriver = errors.New("messaging: unknown driver")
	// ErrDriverRequired is returned for a blank driver name.
	ErrDriverRequired = errors.New("messaging: driver is required")
)

// FactoryOptions carries the settings of every backend; only the one
// matching the driver is read.
type FactoryOptions struct {
	NSQ    NSQConfig
	Kafka  KafkaConfig
	NATS   NATSConfig
	PubSub PubSubConfig
}

type constructor func(ctx context.Context, opts FactoryOptions) (Messaging, error)

var backends = map[string]constructor{
	DriverNSQ:   func(_ context.Context, o FactoryOptions) (Messaging, error) { return NewNSQ(o.NSQ) },
	DriverKafka: func(_ context.Context, o FactoryOptions) (Messaging, error) { return NewKafka(o.Kafka) },
	DriverNATS:  func(_ context.Context, o FactoryOptions) (Messaging, error) { return NewNATS(o.NATS) },
	DriverGooglePubSub: func(ctx context.Context, o FactoryOptions) (Messaging, error) {
		return NewPubSub(ctx, o.PubSub)
	},
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
func NewFromDriver(ctx context.Context, driver string, opts FactoryOptions) (Messaging, error) {
	name := strings.ToLower(strings.TrimSpace(driver))
	if name == "" {
		return nil, ErrDriverRequired
	}

	build, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (want one of %s)", ErrUnknownDriver, driver, strings.Join(Drivers(), ", "))
	}

	m, err := build(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("messaging: init %s: %w", name, err)
	}
	return m, nil
}
