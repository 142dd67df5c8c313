package inbound

import (
	"context"
	"log/slog"
	"slices"

	"github.com/shandysiswandi/mailrelay/internal/pkg/config"
	"github.com/shandysiswandi/mailrelay/internal/pkg/goroutine"
	"github.com/shandysiswandi/mailrelay/internal/pkg/instrument"
	"github.com/shandysiswandi/mailrelay/internal/pkg/messaging"
	"github.com/shandysiswandi/mailrelay/internal/pkg/uid"
	"github.com/shandysiswandi/mailrelay/internal/shared/event"
)

// RegisterMQConsumer starts one goroutine per consumer listed in
// modules.relay.consumer_names.
func RegisterMQConsumer(
	ctx context.Context,
	cfg config.Config,
	routine *goroutine.Manager,
	messenger messaging.Consumer,
	uuid uid.StringID,
	uc ucConsumer,
	ins instrument.Instrumentation,
) {
	handler := &MQHandler{uc: uc, uuid: uuid, ins: ins}

	enabled := cfg.GetArray("modules.relay.consumer_names")

	concurrency := cfg.GetInt("modules.relay.consumer_concurrency")
	if concurrency <= 0 {
		concurrency = 10
	}

	consumers := []struct {
		name    string
		topic   string // destination where publisher sent message
		group   string // kafka group, nsq channel, nats queue group or pubsub subscription
		handler messaging.Handler
	}{
		{
			name:    event.MailRequestedConsumerRelay,
			topic:   event.MailRequestedDestination,
			group:   event.MailRequestedConsumerRelay,
			handler: handler.MailRequested,
		},
	}

	for _, consumer := range consumers {
		if !slices.Contains(enabled, consumer.name) {
			continue
		}

		routine.Go(ctx, func(pCtx context.Context) error {
			slog.InfoContext(ctx, "Running job for handling consumer", "consumer", consumer.name)
			return messenger.Consume(pCtx,
				consumer.topic,
				consumer.handler,
				messaging.WithGroup(consumer.group),
				messaging.WithAutoAck(true),
				messaging.WithConcurrency(concurrency),
				messaging.WithMaxInFlight(concurrency),
			)
		})
	}
}
