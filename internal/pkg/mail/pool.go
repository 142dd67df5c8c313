package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shandysiswandi/mailrelay/internal/pkg/instrument"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Pool load-balances messages across transports in strict round-robin order.
//
// A transport that fails is stopped and quarantined: it receives no more
// messages until Start (or Configure) puts it back into rotation. Send tries
// each active transport at most once and fails with an *ExhaustedError when
// nothing is left in rotation.
//
// Pool is itself a Transport, so pools can be nested. It is safe for
// concurrent use; sends are serialized.
type Pool struct {
	mu         sync.Mutex
	active     rotation
	quarantine quarantine
	listeners  *listenerRegistry

	name           string
	attemptTimeout time.Duration
	classify       FailureClassifier

	ins            instrument.Instrumentation
	tracer         trace.Tracer
	attempts       metric.Int64Counter
	quarantined    metric.Int64Counter
	exhausted      metric.Int64Counter
	stopSuppressed metric.Int64Counter
}

// NewPool creates a pool over transports.
func NewPool(transports []Transport, opts ...Option) *Pool {
	p := &Pool{
		listeners: newListenerRegistry(),
		name:      "pool",
		classify:  DefaultFailureClassifier,
		ins:       instrument.NewNoop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.tracer = p.ins.Tracer("mail.pool")
	p.initMetrics(p.ins.Meter("mail.pool"))
	p.Configure(transports)
	return p
}

func (p *Pool) initMetrics(meter metric.Meter) {
	var err error

	p.attempts, err = meter.Int64Counter("mail.pool.attempts", metric.WithDescription("Number of delivery attempts per transport"))
	if err != nil {
		slog.Error("failed to create mail pool attempts counter", "error", err)
	}

	p.quarantined, err = meter.Int64Counter("mail.pool.quarantined", metric.WithDescription("Number of transports moved to quarantine"))
	if err != nil {
		slog.Error("failed to create mail pool quarantined counter", "error", err)
	}

	p.exhausted, err = meter.Int64Counter("mail.pool.exhausted", metric.WithDescription("Number of sends that found no usable transport"))
	if err != nil {
		slog.Error("failed to create mail pool exhausted counter", "error", err)
	}

	p.stopSuppressed, err = meter.Int64Counter("mail.pool.stop_suppressed", metric.WithDescription("Number of ignored stop errors during quarantine"))
	if err != nil {
		slog.Error("failed to create mail pool stop counter", "error", err)
	}
}

// Name implements Namer.
func (p *Pool) Name() string { return p.name }

// Configure replaces the active transports and empties the quarantine.
// Duplicates are dropped, keeping the first occurrence. Transports the pool
// did not know before receive every listener bound so far.
func (p *Pool) Configure(transports []Transport) {
	p.mu.Lock()
	defer p.mu.Unlock()

	unique := make([]Transport, 0, len(transports))
	seen := make(map[Transport]struct{}, len(transports))
	for _, t := range transports {
		if t == nil {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		unique = append(unique, t)
	}

	for _, t := range unique {
		p.listeners.catchUp(t)
	}

	p.active.reset(unique)
	p.quarantine.clear()
	p.listeners.retain(unique)
}

// Transports returns the active transports followed by the quarantined ones.
func (p *Pool) Transports() []Transport {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append(p.active.snapshot(), p.quarantine.snapshot()...)
}

// Active returns the transports in rotation, next-to-use first.
func (p *Pool) Active() []Transport {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.active.snapshot()
}

// Quarantined returns the transports removed after a failure.
func (p *Pool) Quarantined() []Transport {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.quarantine.snapshot()
}

// IsStarted reports whether any transport is in rotation.
func (p *Pool) IsStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.active.len() > 0
}

// Start puts every quarantined transport back into rotation.
// Transports are started lazily by Send.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, t := range p.quarantine.drainInto(&p.active) {
		p.listeners.catchUp(t)
		slog.InfoContext(ctx, "mail transport restored", "pool", p.name, "transport", TransportName(t))
	}
	return nil
}

// Stop stops every active transport. All transports are stopped even if
// some fail; the failures are joined.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for _, t := range p.active.snapshot() {
		if err := t.Stop(ctx); err != nil {
			errs = append(errs, &TransportError{Transport: t, Op: "stop", Err: err})
		}
	}
	return errors.Join(errs...)
}

// BindListener binds l to every active transport and to any transport
// that joins the rotation later.
func (p *Pool) BindListener(l Listener) {
	if l == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.listeners.add(l)
	for _, t := range p.active.snapshot() {
		p.listeners.catchUp(t)
	}
}

// Send delivers msg through the first transport that accepts it.
//
// A message without recipients is rejected before any transport is tried.
// At most as many transports as were active when Send began are tried.
// A failed transport is quarantined and the next one is tried; a transport
// that accepts zero recipients without error is skipped but kept.
func (p *Pool) Send(ctx context.Context, msg *Message, failed *FailedRecipients) (int, error) {
	if msg == nil {
		return 0, ErrNilMessage
	}
	if len(msg.Recipients()) == 0 {
		return 0, fmt.Errorf("%w: %w", ErrInvalidMessage, ErrNoRecipients)
	}

	ctx, span := p.tracer.Start(ctx, "mail.Pool.Send", trace.WithAttributes(
		attribute.String("mail.pool", p.name),
		attribute.String("mail.message_id", msg.ID),
	))
	defer span.End()

	p.mu.Lock()
	defer p.mu.Unlock()

	size := p.active.len()
	attempts := 0
	var lastErr error

	for range size {
		t, ok := p.active.next()
		if !ok {
			break
		}
		attempts++

		accepted, err := p.attempt(ctx, t, msg, failed)
		if err == nil {
			if accepted > 0 {
				span.SetAttributes(attribute.Int("mail.accepted", accepted), attribute.Int("mail.attempts", attempts))
				span.SetStatus(codes.Ok, "")
				return accepted, nil
			}
			continue
		}

		if p.classify(ctx, err) == FailureAbort {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return 0, err
		}

		lastErr = err
		p.moveToQuarantine(ctx, err)
	}

	if p.active.len() == 0 {
		p.count(ctx, p.exhausted)
		exErr := &ExhaustedError{Configured: size, Attempts: attempts, Cause: lastErr}
		span.RecordError(exErr)
		span.SetStatus(codes.Error, exErr.Error())
		slog.ErrorContext(ctx, "mail pool exhausted", "pool", p.name, "attempts", attempts, "error", lastErr)
		return 0, exErr
	}

	span.SetAttributes(attribute.Int("mail.accepted", 0), attribute.Int("mail.attempts", attempts))
	return 0, nil
}

// attempt starts t when needed and sends through it. Failures are
// returned as *TransportError.
func (p *Pool) attempt(ctx context.Context, t Transport, msg *Message, failed *FailedRecipients) (int, error) {
	name := TransportName(t)

	if p.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.attemptTimeout)
		defer cancel()
	}

	ctx, span := p.tracer.Start(ctx, "mail.Pool.attempt", trace.WithAttributes(attribute.String("mail.transport", name)))
	defer span.End()

	p.count(ctx, p.attempts, attribute.String("mail.transport", name))

	if !t.IsStarted() {
		if err := t.Start(ctx); err != nil {
			tErr := &TransportError{Transport: t, Op: "start", Err: err}
			span.RecordError(tErr)
			span.SetStatus(codes.Error, tErr.Error())
			return 0, tErr
		}
	}

	accepted, err := t.Send(ctx, msg, failed)
	if err != nil {
		tErr := &TransportError{Transport: t, Op: "send", Err: err}
		span.RecordError(tErr)
		span.SetStatus(codes.Error, tErr.Error())
		return 0, tErr
	}

	span.SetAttributes(attribute.Int("mail.accepted", accepted))
	return accepted, nil
}

// moveToQuarantine takes the transport just used off the back of the
// rotation and quarantines it.
func (p *Pool) moveToQuarantine(ctx context.Context, cause error) {
	t, ok := p.active.removeTail()
	if !ok {
		return
	}

	name := TransportName(t)
	p.count(ctx, p.quarantined, attribute.String("mail.transport", name))
	slog.WarnContext(ctx, "mail transport quarantined", "pool", p.name, "transport", name, "error", cause)

	if res := p.quarantine.add(ctx, t); res.suppressed() {
		p.count(ctx, p.stopSuppressed, attribute.String("mail.transport", name))
		slog.WarnContext(ctx, "mail transport stop failed", "pool", p.name, "transport", name, "error", res.err)
	}
}

func (p *Pool) count(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}
