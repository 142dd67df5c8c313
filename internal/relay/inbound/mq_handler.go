package inbound

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/shandysiswandi/mailrelay/internal/pkg/instrument"
	"github.com/shandysiswandi/mailrelay/internal/pkg/messaging"
	"github.com/shandysiswandi/mailrelay/internal/pkg/uid"
	"github.com/shandysiswandi/mailrelay/internal/relay/usecase"
	"github.com/shandysiswandi/mailrelay/internal/shared/event"
)

type MQHandler struct {
	uc   ucConsumer
	uuid uid.StringID
	ins  instrument.Instrumentation
}

func (h *MQHandler) ensureCorrelationID(ctx context.Context, msg messaging.Message) context.Context {
	if cID := msg.Header(messaging.HeaderCorrelationID); cID != "" {
		return instrument.SetCorrelationID(ctx, cID)
	}
	return instrument.SetCorrelationID(ctx, h.uuid.Generate())
}

// MailRequested relays a mail_requested event. Unparseable bodies are
// dropped; an error asks the broker to redeliver.
func (h *MQHandler) MailRequested(ctx context.Context, msg messaging.Message) error {
	ctx = h.ensureCorrelationID(ctx, msg)

	ctx, span := h.ins.Tracer("relay.inbound.mq").Start(ctx, "MailRequested")
	defer span.End()

	body := msg.Body()
	slog.InfoContext(ctx, "consume: mail requested", "msg_id", msg.ID(), "msg_size", len(body))

	var payload event.MailRequestedMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse message body of mail requested", "msg_body", string(body), "error", err)
		return nil
	}

	in := usecase.ConsumeMailRequestedInput{
		IdempotencyKey: payload.IdempotencyKey,
		From:           payload.From,
		To:             payload.To,
		Cc:             payload.Cc,
		Bcc:            payload.Bcc,
		Subject:        payload.Subject,
		TextBody:       payload.TextBody,
		HTMLBody:       payload.HTMLBody,
		Headers:        payload.Headers,
	}
	for _, a := range payload.Attachments {
		in.Attachments = append(in.Attachments, usecase.SendMailAttachment(a))
	}

	if err := h.uc.ConsumeMailRequested(ctx, in); err != nil {
		slog.ErrorContext(ctx, "failed to consume mail requested", "msg_id", msg.ID(), "error", err)
		return err
	}

	return nil
}
