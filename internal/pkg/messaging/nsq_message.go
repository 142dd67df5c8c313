package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	nsq "github.com/nsqio/go-nsq"
)

type nsqMessage struct {
	responseGuard

	msg      *nsq.Message
	envelope nsqEnvelope
}

// newNSQMessage unwraps the header envelope. Bodies published by other
// producers are passed through untouched.
func newNSQMessage(msg *nsq.Message) *nsqMessage {
	m := &nsqMessage{msg: msg}
	if err := json.Unmarshal(msg.Body, &m.envelope); err != nil || m.envelope.Body == nil {
		m.envelope = nsqEnvelope{Body: msg.Body}
	}
	return m
}

func (m *nsqMessage) ID() string { return fmt.Sprintf("%x", m.msg.ID) }

func (m *nsqMessage) Body() []byte { return m.envelope.Body }

func (m *nsqMessage) Header(key string) string { return firstHeader(m.envelope.Headers, key) }

func (m *nsqMessage) Headers() map[string]string { return m.envelope.Headers }

func (m *nsqMessage) Timestamp() time.Time { return time.Unix(0, m.msg.Timestamp) }

func (m *nsqMessage) Ack(ctx context.Context) error {
	return m.settle(ctx, func() error {
		m.msg.Finish()
		return nil
	})
}

// Nack requeues with the consumer's default backoff.
func (m *nsqMessage) Nack(ctx context.Context) error {
	return m.settle(ctx, func() error {
		m.msg.Requeue(-1)
		return nil
	})
}
