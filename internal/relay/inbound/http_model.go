package inbound

import (
	"net/http"
	"time"

	"github.com/shandysiswandi/mailrelay/internal/pkg/valueobject"
)

type SendMailRequest struct {
	From        string              `json:"from"`
	To          []string            `json:"to"`
	Cc          []string            `json:"cc"`
	Bcc         []string            `json:"bcc"`
	Subject     string              `json:"subject"`
	TextBody    string              `json:"text_body"`
	HTMLBody    string              `json:"html_body"`
	Headers     map[string]string   `json:"headers"`
	Attachments []AttachmentRequest `json:"attachments"`
}

// AttachmentRequest carries Data base64 encoded.
type AttachmentRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Inline      bool   `json:"inline"`
	ContentID   string `json:"content_id"`
	Data        []byte `json:"data"`
}

type SendMailResponse struct {
	MessageID string   `json:"message_id"`
	Status    string   `json:"status"`
	Accepted  int      `json:"accepted"`
	Failed    []string `json:"failed"`
}

// StatusCode is 202 once any recipient was accepted and 200 when every
// recipient was refused.
func (r SendMailResponse) StatusCode() int {
	if r.Accepted > 0 {
		return http.StatusAccepted
	}
	return http.StatusOK
}

func (r SendMailResponse) Message() string {
	if r.Accepted > 0 {
		return "Mail accepted for delivery"
	}
	return "Mail rejected by every recipient"
}

type TransportResponse struct {
	Name     string `json:"name"`
	State    string `json:"state"`
	Started  bool   `json:"started"`
	Position int    `json:"position"`
}

type TransportsResponse struct {
	Transports []TransportResponse `json:"transports"`
}

type RestartTransportsResponse struct {
	Restored []string `json:"restored"`
}

func (RestartTransportsResponse) Message() string { return "Mail transports restarted" }

type HealthResponse struct {
	Status      string `json:"status"`
	Active      int    `json:"active"`
	Quarantined int    `json:"quarantined"`
}

func (r HealthResponse) StatusCode() int {
	if r.Status == "down" {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

type DeliveryResponse struct {
	ID             string              `json:"id"`
	IdempotencyKey string              `json:"idempotency_key,omitempty"`
	Source         string              `json:"source"`
	From           string              `json:"from"`
	Subject        string              `json:"subject"`
	Recipients     []string            `json:"recipients"`
	Accepted       int                 `json:"accepted"`
	Failed         []string            `json:"failed"`
	Status         string              `json:"status"`
	Attempts       int                 `json:"attempts"`
	Error          string              `json:"error,omitempty"`
	Metadata       valueobject.JSONMap `json:"metadata"`
	CreatedAt      time.Time           `json:"created_at"`
}

type DeliveriesResponse struct {
	Deliveries []DeliveryResponse `json:"deliveries"`
}

func (r DeliveriesResponse) Meta() map[string]any {
	return map[string]any{"count": len(r.Deliveries)}
}
