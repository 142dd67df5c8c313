package inbound

import (
	"strconv"
	"time"

	"github.com/shandysiswandi/mailrelay/internal/pkg/goerror"
	"github.com/shandysiswandi/mailrelay/internal/pkg/router"
	"github.com/shandysiswandi/mailrelay/internal/relay/entity"
	"github.com/shandysiswandi/mailrelay/internal/relay/usecase"
)

type HTTPEndpoint struct {
	uc uc
}

// SendMail relays one message. A repeated Idempotency-Key answers 409.
func (h *HTTPEndpoint) SendMail(r *router.Request) (any, error) {
	var req SendMailRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	in := usecase.SendMailInput{
		IdempotencyKey: r.IdempotencyKey(),
		Source:         entity.SourceHTTP,
		From:           req.From,
		To:             req.To,
		Cc:             req.Cc,
		Bcc:            req.Bcc,
		Subject:        req.Subject,
		TextBody:       req.TextBody,
		HTMLBody:       req.HTMLBody,
		Headers:        req.Headers,
	}
	for _, a := range req.Attachments {
		in.Attachments = append(in.Attachments, usecase.SendMailAttachment(a))
	}

	out, err := h.uc.SendMail(r.Context(), in)
	if err != nil {
		return nil, err
	}

	return SendMailResponse{
		MessageID: out.MessageID,
		Status:    out.Status.String(),
		Accepted:  out.Accepted,
		Failed:    nonNil(out.Failed),
	}, nil
}

func (h *HTTPEndpoint) ListTransports(r *router.Request) (any, error) {
	items := h.uc.ListTransports(r.Context())

	resp := make([]TransportResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, TransportResponse{
			Name:     item.Name,
			State:    string(item.State),
			Started:  item.Started,
			Position: item.Position,
		})
	}

	return TransportsResponse{Transports: resp}, nil
}

func (h *HTTPEndpoint) RestartTransports(r *router.Request) (any, error) {
	out, err := h.uc.RestartTransports(r.Context())
	if err != nil {
		return nil, err
	}

	return RestartTransportsResponse{Restored: nonNil(out.Restored)}, nil
}

// Health answers 503 when no transport is in rotation.
func (h *HTTPEndpoint) Health(r *router.Request) (any, error) {
	out := h.uc.Health(r.Context())
	return HealthResponse{Status: out.Status, Active: out.Active, Quarantined: out.Quarantined}, nil
}

// ListDeliveries accepts status, since (YYYY-MM-DD) and limit queries.
func (h *HTTPEndpoint) ListDeliveries(r *router.Request) (any, error) {
	limit, err := r.GetQueryInt32("limit")
	if err != nil {
		return nil, err
	}
	since, err := r.GetQueryDate("since", time.DateOnly)
	if err != nil {
		return nil, err
	}

	items, err := h.uc.ListDeliveries(r.Context(), usecase.ListDeliveriesInput{
		Status: r.GetQuery("status"),
		Since:  since,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}

	resp := make([]DeliveryResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, toDeliveryResponse(item))
	}

	return DeliveriesResponse{Deliveries: resp}, nil
}

func (h *HTTPEndpoint) GetDelivery(r *router.Request) (any, error) {
	id, err := strconv.ParseInt(r.GetParam("id"), 10, 64)
	if err != nil {
		return nil, goerror.NewInvalidFormat("Invalid delivery id")
	}

	d, err := h.uc.GetDelivery(r.Context(), id)
	if err != nil {
		return nil, err
	}

	return toDeliveryResponse(*d), nil
}

func toDeliveryResponse(d entity.Delivery) DeliveryResponse {
	return DeliveryResponse{
		ID:             strconv.FormatInt(d.ID, 10),
		IdempotencyKey: d.IdempotencyKey,
		Source:         string(d.Source),
		From:           d.From,
		Subject:        d.Subject,
		Recipients:     nonNil(d.Recipients),
		Accepted:       d.Accepted,
		Failed:         nonNil(d.Failed),
		Status:         d.Status.String(),
		Attempts:       d.Attempts,
		Error:          d.Error,
		Metadata:       d.Metadata,
		CreatedAt:      d.CreatedAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
