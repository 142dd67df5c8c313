package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type kafkaMessage struct {
	responseGuard

	reader *kafka.Reader
	msg    kafka.Message
}

func newKafkaMessage(reader *kafka.Reader, msg kafka.Message) *kafkaMessage {
	return &kafkaMessage{reader: reader, msg: msg}
}

func (m *kafkaMessage) ID() string {
	return fmt.Sprintf("%s/%d/%d", m.msg.Topic, m.msg.Partition, m.msg.Offset)
}

func (m *kafkaMessage) Body() []byte { return m.msg.Value }

func (m *kafkaMessage) Header(key string) string {
	for _, h := range m.msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (m *kafkaMessage) Headers() map[string]string {
	if len(m.msg.Headers) == 0 {
		return nil
	}

	out := make(map[string]string, len(m.msg.Headers))
	for _, h := range m.msg.Headers {
		if _, ok := out[h.Key]; !ok {
			out[h.Key] = string(h.Value)
		}
	}
	return out
}

func (m *kafkaMessage) Timestamp() time.Time { return m.msg.Time }

func (m *kafkaMessage) Ack(ctx context.Context) error {
	return m.settle(ctx, func() error { return m.reader.CommitMessages(ctx, m.msg) })
}

// Nack leaves the offset uncommitted; the group redelivers after a rebalance.
func (m *kafkaMessage) Nack(ctx context.Context) error {
	return m.settle(ctx, func() error { return nil })
}
