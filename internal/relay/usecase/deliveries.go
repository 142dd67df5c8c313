package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/mailrelay/internal/pkg/goerror"
	"github.com/shandysiswandi/mailrelay/internal/relay/entity"
)

const defaultDeliveryLimit = 20

type ListDeliveriesInput struct {
	Status string `validate:"omitempty,oneof=sent rejected failed"`
	Since  time.Time
	Limit  int32 `validate:"gte=0,lte=100"`
}

// ListDeliveries returns the newest delivery records first.
func (s *Usecase) ListDeliveries(ctx context.Context, in ListDeliveriesInput) ([]entity.Delivery, error) {
	ctx, span := s.startSpan(ctx, "ListDeliveries")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}
	if in.Limit == 0 {
		in.Limit = defaultDeliveryLimit
	}

	items, err := s.repoDB.ListDeliveries(ctx, entity.DeliveryFilter{
		Status: entity.DeliveryStatus(in.Status),
		Since:  in.Since,
		Limit:  in.Limit,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo list deliveries", "error", err)
		return nil, goerror.NewServer(err)
	}

	return items, nil
}

// GetDelivery returns one delivery record by message ID.
func (s *Usecase) GetDelivery(ctx context.Context, id int64) (*entity.Delivery, error) {
	ctx, span := s.startSpan(ctx, "GetDelivery")
	defer span.End()

	if id <= 0 {
		return nil, goerror.NewInvalidInput(nil, "id", "id must be a positive number")
	}

	d, err := s.repoDB.GetDelivery(ctx, id)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, goerror.NewBusiness("Delivery not found", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get delivery", "id", id, "error", err)
		return nil, goerror.NewServer(err)
	}

	return d, nil
}
