package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/mailrelay/internal/pkg/goerror"
	"github.com/shandysiswandi/mailrelay/internal/pkg/idempotency"
	"github.com/shandysiswandi/mailrelay/internal/pkg/mail"
	"github.com/shandysiswandi/mailrelay/internal/relay/entity"
)

// ConsumeMailRequestedInput mirrors SendMailInput for queue deliveries.
type ConsumeMailRequestedInput = SendMailInput

// ConsumeMailRequested relays a queued mail request. It returns an error
// only when redelivery could succeed: the pool is exhausted or the relay
// itself failed. Invalid and duplicate requests are logged and dropped.
func (s *Usecase) ConsumeMailRequested(ctx context.Context, in ConsumeMailRequestedInput) error {
	ctx, span := s.startSpan(ctx, "ConsumeMailRequested")
	defer span.End()

	in.Source = entity.SourceQueue

	out, err := s.send(ctx, in)
	if err == nil {
		slog.InfoContext(ctx, "consume: mail request relayed", "message_id", out.MessageID, "status", out.Status.String())
		return nil
	}

	var gerr *goerror.Error
	switch {
	case errors.As(err, &gerr) && gerr.Type() == goerror.TypeValidation:
		slog.ErrorContext(ctx, "consume: invalid mail request dropped", "error", err)
		return nil
	case errors.Is(err, idempotency.ErrAlreadyCompleted), errors.Is(err, idempotency.ErrAlreadyInProgress),
		errors.Is(err, idempotency.ErrAlreadyFailed):
		slog.WarnContext(ctx, "consume: duplicate mail request dropped", "idempotency_key", in.IdempotencyKey, "error", err)
		return nil
	case errors.Is(err, mail.ErrInvalidMessage):
		slog.ErrorContext(ctx, "consume: undeliverable mail request dropped", "error", err)
		return nil
	default:
		return err
	}
}
