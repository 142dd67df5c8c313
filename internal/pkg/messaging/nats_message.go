package messaging

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
)

// natsMessage wraps a core NATS or JetStream message. Core messages carry
// no ack state, so settling them is a no-op.
type natsMessage struct {
	responseGuard

	msg        *nats.Msg
	receivedAt time.Time
}

func newNATSMessage(msg *nats.Msg, receivedAt time.Time) *natsMessage {
	return &natsMessage{msg: msg, receivedAt: receivedAt}
}

// ID is the JetStream deduplication ID, empty for core publishes.
func (m *natsMessage) ID() string           { return m.msg.Header.Get(nats.MsgIdHdr) }
func (m *natsMessage) Body() []byte         { return m.msg.Data }
func (m *natsMessage) Timestamp() time.Time { return m.receivedAt }

func (m *natsMessage) Header(key string) string { return m.msg.Header.Get(key) }

// Headers flattens multi-valued headers to their first value.
func (m *natsMessage) Headers() map[string]string {
	out := make(map[string]string, len(m.msg.Header))
	for k := range m.msg.Header {
		out[k] = m.msg.Header.Get(k)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (m *natsMessage) Ack(ctx context.Context) error {
	return m.settle(ctx, func() error { return ignoreNoReply(m.msg.Ack()) })
}

func (m *natsMessage) Nack(ctx context.Context) error {
	return m.settle(ctx, func() error { return ignoreNoReply(m.msg.Nak()) })
}

func ignoreNoReply(err error) error {
	if errors.Is(err, nats.ErrMsgNoReply) || errors.Is(err, nats.ErrMsgNotBound) {
		return nil
	}
	return err
}
