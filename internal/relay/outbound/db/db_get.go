package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shandysiswandi/mailrelay/internal/pkg/valueobject"
	"github.com/shandysiswandi/mailrelay/internal/relay/entity"
)

const deliveryColumns = `id, idempotency_key, source, sender, subject, recipients,
    accepted, failed, status, attempts, error, metadata, created_at`

const selectDeliveries = `SELECT ` + deliveryColumns + `
FROM mail_deliveries
WHERE ($1::text = '' OR status = $1)
  AND ($2::timestamptz IS NULL OR created_at >= $2)
ORDER BY created_at DESC, id DESC
LIMIT $3`

const selectDeliveryByID = `SELECT ` + deliveryColumns + ` FROM mail_deliveries WHERE id = $1`

func (s *DB) ListDeliveries(ctx context.Context, f entity.DeliveryFilter) (_ []entity.Delivery, err error) {
	ctx, span := s.startSpan(ctx, "ListDeliveries")
	defer func() { s.endSpan(span, err) }()

	var since *time.Time
	if !f.Since.IsZero() {
		since = &f.Since
	}

	rows, err := s.conn.Query(ctx, selectDeliveries, f.Status.String(), since, f.Limit)
	if err != nil {
		return nil, s.mapError(err)
	}

	items, err := pgx.CollectRows(rows, scanDelivery)
	if err != nil {
		return nil, s.mapError(err)
	}

	return items, nil
}

func (s *DB) GetDelivery(ctx context.Context, id int64) (_ *entity.Delivery, err error) {
	ctx, span := s.startSpan(ctx, "GetDelivery")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx, selectDeliveryByID, id)
	if err != nil {
		return nil, s.mapError(err)
	}

	d, err := pgx.CollectExactlyOneRow(rows, scanDelivery)
	if err != nil {
		return nil, s.mapError(err)
	}

	return &d, nil
}

func scanDelivery(row pgx.CollectableRow) (entity.Delivery, error) {
	var (
		d              entity.Delivery
		source, status string
		accepted       int32
		attempts       int32
		metadata       valueobject.JSONMap
	)

	err := row.Scan(
		&d.ID,
		&d.IdempotencyKey,
		&source,
		&d.From,
		&d.Subject,
		&d.Recipients,
		&accepted,
		&d.Failed,
		&status,
		&attempts,
		&d.Error,
		&metadata,
		&d.CreatedAt,
	)
	if err != nil {
		return entity.Delivery{}, err
	}

	d.Source = entity.DeliverySource(source)
	d.Status = entity.DeliveryStatus(status)
	d.Accepted = int(accepted)
	d.Attempts = int(attempts)
	d.Metadata = metadata
	return d, nil
}
