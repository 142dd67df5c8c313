package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shandysiswandi/mailrelay/internal/pkg/instrument"
	"github.com/shandysiswandi/mailrelay/internal/pkg/messaging"
	"go.uber.org/atomic"
)

var (
	// ErrBrokerTopicRequired is returned when no topic is configured.
	ErrBrokerTopicRequired = errors.New("mail: broker topic is required")
	// ErrBrokerPublisherRequired is returned when no publisher is given.
	ErrBrokerPublisherRequired = errors.New("mail: broker publisher is required")
)

// BrokerConfig configures the Broker transport.
type BrokerConfig struct {
	// Name identifies the transport in logs and metrics.
	Name string
	// Topic is the destination the envelopes are published to.
	Topic string
	// From is the default sender when Message.From is empty.
	From string
}

// BrokerEnvelope is the payload published for every message. Raw holds the
// rendered RFC 5322 message, ready for an external sender.
type BrokerEnvelope struct {
	ID         string    `json:"id"`
	From       string    `json:"from"`
	Recipients []string  `json:"recipients"`
	Raw        []byte    `json:"raw"`
	QueuedAt   time.Time `json:"queued_at"`
}

// Broker hands messages to a message broker. A successful publish counts
// every recipient as accepted.
type Broker struct {
	cfg       BrokerConfig
	publisher messaging.Publisher
	now       func() time.Time
	started   *atomic.Bool
	events    eventBus
}

// NewBroker constructs a Broker transport.
func NewBroker(publisher messaging.Publisher, cfg BrokerConfig) (*Broker, error) {
	if publisher == nil {
		return nil, ErrBrokerPublisherRequired
	}
	if cfg.Topic == "" {
		return nil, ErrBrokerTopicRequired
	}
	if cfg.Name == "" {
		cfg.Name = "broker://" + cfg.Topic
	}

	return &Broker{
		cfg:       cfg,
		publisher: publisher,
		now:       time.Now,
		started:   atomic.NewBool(false),
	}, nil
}

// Name implements Namer.
func (b *Broker) Name() string { return b.cfg.Name }

// IsStarted implements Transport.
func (b *Broker) IsStarted() bool { return b.started.Load() }

// BindListener implements Transport.
func (b *Broker) BindListener(l Listener) { b.events.bind(l) }

// Start marks the transport ready. The publisher owns the connection.
func (b *Broker) Start(ctx context.Context) error {
	if b.started.CompareAndSwap(false, true) {
		b.events.emit(ctx, TransportEvent{Kind: EventStarted, Source: b})
	}
	return nil
}

// Stop implements Transport.
func (b *Broker) Stop(ctx context.Context) error {
	if b.started.CompareAndSwap(true, false) {
		b.events.emit(ctx, TransportEvent{Kind: EventStopped, Source: b})
	}
	return nil
}

// Send renders msg and publishes it as a BrokerEnvelope.
func (b *Broker) Send(ctx context.Context, msg *Message, _ *FailedRecipients) (int, error) {
	if msg == nil {
		return 0, ErrNilMessage
	}
	if !b.started.Load() {
		return 0, ErrNotStarted
	}

	accepted, err := b.publish(ctx, msg)
	if err != nil {
		b.events.emit(ctx, TransportEvent{Kind: EventFailed, Source: b, Message: msg, Err: err})
		return 0, err
	}

	b.events.emit(ctx, TransportEvent{Kind: EventSent, Source: b, Message: msg, Accepted: accepted})
	return accepted, nil
}

func (b *Broker) publish(ctx context.Context, msg *Message) (int, error) {
	now := b.now()
	raw, err := Render(msg, RenderOptions{DefaultFrom: b.cfg.From, Now: func() time.Time { return now }})
	if err != nil {
		return 0, err
	}
	from, _ := senderOf(msg, b.cfg.From) //nolint:errcheck // checked by Render

	recipients := msg.Recipients()
	body, err := json.Marshal(BrokerEnvelope{
		ID:         msg.ID,
		From:       from,
		Recipients: recipients,
		Raw:        raw,
		QueuedAt:   now,
	})
	if err != nil {
		return 0, fmt.Errorf("mail: broker encode envelope: %w", err)
	}

	headers := map[string]string{"Message-Id": msg.ID}
	if cID := instrument.GetCorrelationID(ctx); cID != "" {
		headers[messaging.HeaderCorrelationID] = cID
	}

	if _, err := b.publisher.Publish(ctx, b.cfg.Topic, messaging.OutgoingMessage{
		Body:    body,
		Key:     []byte(msg.ID),
		Headers: headers,
	}); err != nil {
		return 0, fmt.Errorf("mail: broker publish: %w", err)
	}

	return len(recipients), nil
}
