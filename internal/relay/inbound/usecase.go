package inbound

import (
	"context"

	"github.com/shandysiswandi/mailrelay/internal/relay/entity"
	"github.com/shandysiswandi/mailrelay/internal/relay/usecase"
)

type ucConsumer interface {
	ConsumeMailRequested(ctx context.Context, in usecase.ConsumeMailRequestedInput) error
}

type uc interface {
	ucConsumer

	SendMail(ctx context.Context, in usecase.SendMailInput) (*usecase.SendMailOutput, error)
	ListTransports(ctx context.Context) []entity.TransportStatus
	RestartTransports(ctx context.Context) (*usecase.RestartTransportsOutput, error)
	Health(ctx context.Context) usecase.HealthOutput
	ListDeliveries(ctx context.Context, in usecase.ListDeliveriesInput) ([]entity.Delivery, error)
	GetDelivery(ctx context.Context, id int64) (*entity.Delivery, error)
}
