package usecase

import (
	"context"
	"time"

	"github.com/shandysiswandi/mailrelay/internal/pkg/clock"
	"github.com/shandysiswandi/mailrelay/internal/pkg/config"
	"github.com/shandysiswandi/mailrelay/internal/pkg/idempotency"
	"github.com/shandysiswandi/mailrelay/internal/pkg/instrument"
	"github.com/shandysiswandi/mailrelay/internal/pkg/mail"
	"github.com/shandysiswandi/mailrelay/internal/pkg/uid"
	"github.com/shandysiswandi/mailrelay/internal/pkg/validator"
	"github.com/shandysiswandi/mailrelay/internal/relay/entity"
	"go.opentelemetry.io/otel/trace"
)

type repoDB interface {
	CreateDelivery(ctx context.Context, d entity.Delivery) error
	ListDeliveries(ctx context.Context, f entity.DeliveryFilter) ([]entity.Delivery, error)
	GetDelivery(ctx context.Context, id int64) (*entity.Delivery, error)
}

// mailPool is the part of *mail.Pool the relay drives.
type mailPool interface {
	Send(ctx context.Context, msg *mail.Message, failed *mail.FailedRecipients) (int, error)
	Start(ctx context.Context) error
	Active() []mail.Transport
	Quarantined() []mail.Transport
}

type Usecase struct {
	repoDB    repoDB
	pool      mailPool
	idemp     idempotency.Idempotency
	cfg       config.Config
	uid       uid.NumberID
	clock     clock.Clocker
	validator validator.Validator
	ins       instrument.Instrumentation
}

type Dependency struct {
	RepoDB repoDB
	Pool   mailPool
	// Idempotency is optional; without it Idempotency-Key is ignored.
	Idempotency idempotency.Idempotency
	Config      config.Config
	UID         uid.NumberID
	Clock       clock.Clocker
	Validator   validator.Validator
	Instrument  instrument.Instrumentation
}

func New(dep Dependency) *Usecase {
	return &Usecase{
		repoDB:    dep.RepoDB,
		pool:      dep.Pool,
		idemp:     dep.Idempotency,
		cfg:       dep.Config,
		uid:       dep.UID,
		clock:     dep.Clock,
		validator: dep.Validator,
		ins:       dep.Instrument,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("relay.usecase").Start(ctx, name)
}

// recoveryPolicy reads mail.recovery.* on every call so hot reloads apply.
func (s *Usecase) recoveryPolicy() (maxRetries uint64, base, maxDelay time.Duration) {
	retries := s.cfg.GetInt("mail.recovery.max_retries")
	if retries < 0 {
		retries = 0
	}

	base = time.Duration(s.cfg.GetInt("mail.recovery.base_delay_ms")) * time.Millisecond
	if base <= 0 {
		base = 200 * time.Millisecond
	}

	maxDelay = s.cfg.GetSecond("mail.recovery.max_delay_seconds")
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}

	return uint64(retries), base, maxDelay
}
