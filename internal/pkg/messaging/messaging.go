package messaging

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrDestinationRequired is returned when a topic/subject is empty.
	ErrDestinationRequired = errors.New("messaging: destination is required")
	// ErrHandlerRequired is returned when Consume is called with a nil handler.
	ErrHandlerRequired = errors.New("messaging: handler is required")
	// ErrGroupRequired is returned when a driver needs a consumer group and none was given.
	ErrGroupRequired = errors.New("messaging: consumer group is required")
)

// HeaderCorrelationID carries the request correlation ID across the broker.
const HeaderCorrelationID = "cID"

func checkPublish(ctx context.Context, destination string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if destination == "" {
		return ErrDestinationRequired
	}
	return nil
}

func checkConsume(ctx context.Context, source string, handler Handler) error {
	if err := checkPublish(ctx, source); err != nil {
		return err
	}
	if handler == nil {
		return ErrHandlerRequired
	}
	return nil
}

// Messaging is a broker-agnostic client that can publish and consume messages.
type Messaging interface {
	io.Closer

	Publisher
	Consumer
}

// Publisher publishes messages to a destination (topic or subject).
type Publisher interface {
	Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error)
}

// Consumer consumes messages from a source. Consume blocks until ctx is done
// or the underlying subscription fails.
type Consumer interface {
	Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error
}

// Handler processes a received message.
type Handler func(ctx context.Context, msg Message) error

// OutgoingMessage is a broker-agnostic message to be published.
type OutgoingMessage struct {
	// Body is the message payload.
	Body []byte
	// Key is used by Kafka for partitioning.
	Key []byte
	// Headers map to Kafka/NATS headers and Pub/Sub attributes.
	// NSQ has no headers, so they travel in a small envelope there.
	Headers map[string]string
}

// PublishResult carries broker publish metadata.
type PublishResult struct {
	// MessageID is the broker-assigned message ID, when the broker assigns one.
	MessageID string
	Topic     string
	Timestamp time.Time
}

// Message is a broker-agnostic received message.
type Message interface {
	ID() string
	Body() []byte
	// Header returns the first value of key, or "".
	Header(key string) string
	Headers() map[string]string
	Timestamp() time.Time

	// Ack acknowledges successful processing.
	Ack(ctx context.Context) error
	// Nack asks the broker to redeliver when it supports it.
	Nack(ctx context.Context) error
}
