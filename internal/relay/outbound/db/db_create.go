package db

import (
	"context"

	"github.com/shandysiswandi/mailrelay/internal/relay/entity"
)

const insertDelivery = `
INSERT INTO mail_deliveries (
    id, idempotency_key, source, sender, subject, recipients,
    accepted, failed, status, attempts, error, metadata, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

func (s *DB) CreateDelivery(ctx context.Context, d entity.Delivery) (err error) {
	ctx, span := s.startSpan(ctx, "CreateDelivery")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, insertDelivery,
		d.ID,
		d.IdempotencyKey,
		string(d.Source),
		d.From,
		d.Subject,
		nonNil(d.Recipients),
		d.Accepted,
		nonNil(d.Failed),
		d.Status.String(),
		d.Attempts,
		d.Error,
		d.Metadata,
		d.CreatedAt,
	)
	return s.mapError(err)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
