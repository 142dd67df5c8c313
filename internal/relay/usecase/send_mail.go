package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/sethvargo/go-retry"
	"github.com/shandysiswandi/mailrelay/internal/pkg/goerror"
	"github.com/shandysiswandi/mailrelay/internal/pkg/idempotency"
	"github.com/shandysiswandi/mailrelay/internal/pkg/instrument"
	pkgmail "github.com/shandysiswandi/mailrelay/internal/pkg/mail"
	"github.com/shandysiswandi/mailrelay/internal/pkg/valueobject"
	"github.com/shandysiswandi/mailrelay/internal/relay/entity"
	"go.opentelemetry.io/otel/attribute"
)

type (
	SendMailInput struct {
		IdempotencyKey string `validate:"omitempty,max=128"`
		Source         entity.DeliverySource
		From           string   `validate:"omitempty,mailbox"`
		To             []string `validate:"max=100,dive,mailbox"`
		Cc             []string `validate:"max=100,dive,mailbox"`
		Bcc            []string `validate:"max=100,dive,mailbox"`
		Subject        string   `validate:"required,max=998"`
		TextBody       string   `validate:"required_without=HTMLBody"`
		HTMLBody       string
		Headers        map[string]string    `validate:"max=50,dive,keys,header_name,endkeys,header_value"`
		Attachments    []SendMailAttachment `validate:"max=20,dive"`
	}

	SendMailAttachment struct {
		Filename    string `validate:"required,max=255"`
		ContentType string `validate:"omitempty,max=255"`
		Inline      bool
		ContentID   string `validate:"omitempty,max=255"`
		Data        []byte `validate:"required"`
	}

	SendMailOutput struct {
		MessageID string
		Status    entity.DeliveryStatus
		Accepted  int
		Failed    []string
	}
)

// SendMail relays one message through the pool and records the outcome.
// With an idempotency key, a repeated request fails with a conflict
// instead of sending twice.
func (s *Usecase) SendMail(ctx context.Context, in SendMailInput) (*SendMailOutput, error) {
	ctx, span := s.startSpan(ctx, "SendMail")
	defer span.End()

	if in.Source == "" {
		in.Source = entity.SourceHTTP
	}

	out, err := s.send(ctx, in)
	if err != nil {
		return nil, apiError(err)
	}
	return out, nil
}

// send validates, dedupes and delivers. Errors are returned unmapped.
func (s *Usecase) send(ctx context.Context, in SendMailInput) (*SendMailOutput, error) {
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	in.To, in.Cc, in.Bcc = dedupeRecipients(in.To, in.Cc, in.Bcc)
	if len(in.To)+len(in.Cc)+len(in.Bcc) == 0 {
		return nil, goerror.NewInvalidInput(nil, "to", "at least one recipient is required")
	}

	if in.IdempotencyKey == "" || s.idemp == nil {
		return s.deliver(ctx, in)
	}

	var out *SendMailOutput
	err := s.idemp.Exec(ctx, in.IdempotencyKey, func(ctx context.Context) error {
		var err error
		out, err = s.deliver(ctx, in)
		return err
	}, idempotency.WithStateTTL(s.cfg.GetSecond("mail.idempotency.ttl_seconds")))
	if err != nil {
		if retryable(err) {
			if fErr := s.idemp.Forget(ctx, in.IdempotencyKey); fErr != nil {
				slog.WarnContext(ctx, "failed to release idempotency key", "idempotency_key", in.IdempotencyKey, "error", fErr)
			}
		}
		return nil, err
	}
	return out, nil
}

func (s *Usecase) deliver(ctx context.Context, in SendMailInput) (*SendMailOutput, error) {
	msg := buildMessage(strconv.FormatInt(s.uid.Generate(), 10), in)

	ctx = instrument.SetMessageID(ctx, msg.ID)
	ctx, span := s.startSpan(ctx, "deliver")
	defer span.End()
	span.SetAttributes(attribute.String("mail.message_id", msg.ID), attribute.Int("mail.recipients", len(msg.Recipients())))

	accepted, failed, attempts, sendErr := s.sendWithRecovery(ctx, msg)

	out := &SendMailOutput{MessageID: msg.ID, Accepted: accepted, Failed: failed}
	switch {
	case sendErr != nil:
		out.Status = entity.DeliveryFailed
	case accepted == 0:
		out.Status = entity.DeliveryRejected
	default:
		out.Status = entity.DeliverySent
	}

	s.recordDelivery(ctx, in, msg, out, attempts, sendErr)

	if sendErr != nil {
		slog.ErrorContext(ctx, "mail delivery failed", "attempts", attempts, "error", sendErr)
		return nil, sendErr
	}

	slog.InfoContext(ctx, "mail relayed", "status", out.Status.String(), "accepted", accepted, "failed", len(out.Failed))
	return out, nil
}

// sendWithRecovery retries a send that exhausted the pool, re-arming the
// quarantined transports before each retry. The refused addresses are those
// of the last send, each listed once.
func (s *Usecase) sendWithRecovery(ctx context.Context, msg *pkgmail.Message) (accepted int, failed []string, attempts int, err error) {
	maxRetries, base, maxDelay := s.recoveryPolicy()

	b := retry.NewExponential(base)
	b = retry.WithCappedDuration(maxDelay, b)
	b = retry.WithMaxRetries(maxRetries, b)

	err = retry.Do(ctx, b, func(ctx context.Context) error {
		attempts++

		var refused pkgmail.FailedRecipients
		n, sendErr := s.pool.Send(ctx, msg, &refused)
		failed = lo.Uniq(refused.List())
		if sendErr == nil {
			accepted = n
			return nil
		}

		var exhausted *pkgmail.ExhaustedError
		if !errors.As(sendErr, &exhausted) || (exhausted.Empty() && len(s.pool.Quarantined()) == 0) {
			return sendErr
		}

		slog.WarnContext(ctx, "mail pool exhausted, restoring quarantined transports", "attempt", attempts, "error", sendErr)
		if startErr := s.pool.Start(ctx); startErr != nil {
			return errors.Join(sendErr, startErr)
		}
		return retry.RetryableError(sendErr)
	})

	return accepted, failed, attempts, err
}

func (s *Usecase) recordDelivery(
	ctx context.Context,
	in SendMailInput,
	msg *pkgmail.Message,
	out *SendMailOutput,
	attempts int,
	sendErr error,
) {
	d := entity.Delivery{
		IdempotencyKey: in.IdempotencyKey,
		Source:         in.Source,
		From:           msg.From,
		Subject:        msg.Subject,
		Recipients:     msg.Recipients(),
		Accepted:       out.Accepted,
		Failed:         lo.Ternary(out.Failed == nil, []string{}, out.Failed),
		Status:         out.Status,
		Attempts:       attempts,
		Metadata: valueobject.JSONMap{
			"attachments":    len(msg.Attachments),
			"correlation_id": instrument.GetCorrelationID(ctx),
		},
		CreatedAt: s.clock.Now(),
	}
	d.ID, _ = strconv.ParseInt(msg.ID, 10, 64) //nolint:errcheck // msg.ID is formatted from an int64
	if sendErr != nil {
		d.Error = sendErr.Error()
	}

	if err := s.repoDB.CreateDelivery(ctx, d); err != nil {
		slog.ErrorContext(ctx, "failed to repo create delivery", "status", d.Status.String(), "error", err)
	}
}

func buildMessage(id string, in SendMailInput) *pkgmail.Message {
	return &pkgmail.Message{
		ID:       id,
		From:     strings.TrimSpace(in.From),
		To:       in.To,
		Cc:       in.Cc,
		Bcc:      in.Bcc,
		Subject:  in.Subject,
		TextBody: in.TextBody,
		HTMLBody: in.HTMLBody,
		Headers:  in.Headers,
		Attachments: lo.Map(in.Attachments, func(a SendMailAttachment, _ int) pkgmail.Attachment {
			return pkgmail.Attachment{
				Filename:    a.Filename,
				ContentType: a.ContentType,
				Disposition: lo.Ternary(a.Inline, pkgmail.DispositionInline, pkgmail.DispositionAttachment),
				ContentID:   a.ContentID,
				Data:        a.Data,
			}
		}),
	}
}

// dedupeRecipients trims every address and drops repeats, comparing bare
// addresses case-insensitively. An address keeps its first position across
// the lists, so one listed in To is removed from Cc and Bcc.
func dedupeRecipients(to, cc, bcc []string) ([]string, []string, []string) {
	seen := make(map[string]struct{})
	keep := func(list []string) []string {
		return lo.Filter(lo.Map(list, func(addr string, _ int) string {
			return strings.TrimSpace(addr)
		}), func(addr string, _ int) bool {
			key := addressKey(addr)
			if _, dup := seen[key]; dup {
				return false
			}
			seen[key] = struct{}{}
			return true
		})
	}

	return keep(to), keep(cc), keep(bcc)
}

func addressKey(addr string) string {
	if parsed, err := mail.ParseAddress(addr); err == nil {
		return strings.ToLower(parsed.Address)
	}
	return strings.ToLower(addr)
}

// retryable reports whether the same request may succeed later.
func retryable(err error) bool {
	return errors.Is(err, pkgmail.ErrPoolExhausted) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

// apiError maps delivery and idempotency failures to HTTP-facing errors.
func apiError(err error) error {
	var gerr *goerror.Error
	switch {
	case errors.As(err, &gerr):
		return err
	case errors.Is(err, idempotency.ErrAlreadyInProgress), errors.Is(err, idempotency.ErrAlreadyCompleted):
		return goerror.NewBusiness("Mail request already processed", goerror.CodeConflict)
	case errors.Is(err, idempotency.ErrAlreadyFailed):
		return goerror.NewBusiness("Mail request already failed, retry with a new idempotency key", goerror.CodeConflict)
	case errors.Is(err, pkgmail.ErrInvalidMessage):
		return goerror.NewInvalidInput(nil, "message", err.Error())
	case errors.Is(err, pkgmail.ErrPoolExhausted):
		return goerror.NewUnavailable(err, "No mail transport available")
	case errors.Is(err, context.DeadlineExceeded):
		return goerror.NewBusiness("Mail delivery timed out", goerror.CodeTimeout)
	default:
		return goerror.NewServer(err)
	}
}
