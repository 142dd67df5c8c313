package messaging

import (
	"context"
	"time"

	"cloud.google.com/go/pubsub/v2"
)

type pubSubMessage struct {
	responseGuard

	msg *pubsub.Message
}

func newPubSubMessage(msg *pubsub.Message) *pubSubMessage {
	return &pubSubMessage{msg: msg}
}

func (m *pubSubMessage) ID() string { return m.msg.ID }

func (m *pubSubMessage) Body() []byte { return m.msg.Data }

func (m *pubSubMessage) Header(key string) string { return firstHeader(m.msg.Attributes, key) }

func (m *pubSubMessage) Headers() map[string]string { return m.msg.Attributes }

func (m *pubSubMessage) Timestamp() time.Time { return m.msg.PublishTime }

func (m *pubSubMessage) Ack(ctx context.Context) error {
	return m.settle(ctx, func() error {
		m.msg.Ack()
		return nil
	})
}

func (m *pubSubMessage) Nack(ctx context.Context) error {
	return m.settle(ctx, func() error {
		m.msg.Nack()
		return nil
	})
}
