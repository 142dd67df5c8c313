package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/mailrelay/internal/pkg/mail"
	"github.com/shandysiswandi/mailrelay/internal/relay/entity"
)

type (
	RestartTransportsOutput struct {
		Restored []string
	}

	HealthOutput struct {
		// Status is "ok", "degraded" when some transports are quarantined,
		// or "down" when none is in rotation.
		Status      string
		Active      int
		Quarantined int
	}
)

// ListTransports returns the active transports in rotation order followed
// by the quarantined ones.
func (s *Usecase) ListTransports(ctx context.Context) []entity.TransportStatus {
	_, span := s.startSpan(ctx, "ListTransports")
	defer span.End()

	active := s.pool.Active()
	quarantined := s.pool.Quarantined()

	out := make([]entity.TransportStatus, 0, len(active)+len(quarantined))
	for i, t := range active {
		out = append(out, transportStatus(t, entity.TransportActive, i))
	}
	for i, t := range quarantined {
		out = append(out, transportStatus(t, entity.TransportQuarantined, i))
	}
	return out
}

func transportStatus(t mail.Transport, state entity.TransportState, pos int) entity.TransportStatus {
	return entity.TransportStatus{
		Name:     mail.TransportName(t),
		State:    state,
		Started:  t.IsStarted(),
		Position: pos,
	}
}

// RestartTransports puts every quarantined transport back into rotation.
func (s *Usecase) RestartTransports(ctx context.Context) (*RestartTransportsOutput, error) {
	ctx, span := s.startSpan(ctx, "RestartTransports")
	defer span.End()

	restored := make([]string, 0)
	for _, t := range s.pool.Quarantined() {
		restored = append(restored, mail.TransportName(t))
	}

	if err := s.pool.Start(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to restart mail transports", "error", err)
		return nil, apiError(err)
	}

	slog.InfoContext(ctx, "mail transports restarted", "restored", restored)
	return &RestartTransportsOutput{Restored: restored}, nil
}

// Health summarizes the pool for load balancers.
func (s *Usecase) Health(context.Context) HealthOutput {
	out := HealthOutput{Active: len(s.pool.Active()), Quarantined: len(s.pool.Quarantined())}
	switch {
	case out.Active == 0:
		out.Status = "down"
	case out.Quarantined > 0:
		out.Status = "degraded"
	default:
		out.Status = "ok"
	}
	return out
}
