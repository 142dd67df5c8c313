package mail

import (
	"context"
	"errors"
	"time"

	"github.com/shandysiswandi/mailrelay/internal/pkg/instrument"
)

// FailureAction tells the pool what to do with a failed attempt.
type FailureAction int

const (
	// FailureQuarantine moves the transport to quarantine and tries the next one.
	FailureQuarantine FailureAction = iota
	// FailureAbort returns the error from Send immediately.
	FailureAbort
)

// FailureClassifier decides how a failed attempt is handled.
// ctx is the caller's context, not the per-attempt one.
type FailureClassifier func(ctx context.Context, err error) FailureAction

// DefaultFailureClassifier aborts when the caller gave up or the message
// is invalid for every transport, and quarantines the transport otherwise.
// Errors that depend on the transport's own settings, such as ErrNoSender,
// quarantine.
func DefaultFailureClassifier(ctx context.Context, err error) FailureAction {
	if ctx.Err() != nil {
		return FailureAbort
	}
	if errors.Is(err, ErrInvalidMessage) {
		return FailureAbort
	}
	return FailureQuarantine
}

// Option configures a Pool.
type Option func(*Pool)

// WithInstrument sets the tracer and meter source.
func WithInstrument(ins instrument.Instrumentation) Option {
	return func(p *Pool) {
		if ins != nil {
			p.ins = ins
		}
	}
}

// WithAttemptTimeout bounds a single Start+Send attempt. Zero disables it.
func WithAttemptTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.attemptTimeout = d
		}
	}
}

// WithFailureClassifier replaces DefaultFailureClassifier.
func WithFailureClassifier(fc FailureClassifier) Option {
	return func(p *Pool) {
		if fc != nil {
			p.classify = fc
		}
	}
}

// WithName sets the name reported by Pool.Name.
func WithName(name string) Option {
	return func(p *Pool) {
		p.name = name
	}
}
