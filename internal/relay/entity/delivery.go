package entity

import (
	"time"

	"github.com/shandysiswandi/mailrelay/internal/pkg/valueobject"
)

// DeliveryStatus is the outcome of one relayed message.
type DeliveryStatus string

const (
	// DeliverySent means at least one recipient was accepted.
	DeliverySent DeliveryStatus = "sent"
	// DeliveryRejected means a transport worked but refused every recipient.
	DeliveryRejected DeliveryStatus = "rejected"
	// DeliveryFailed means no transport could take the message.
	DeliveryFailed DeliveryStatus = "failed"
)

func (s DeliveryStatus) String() string { return string(s) }

// Valid reports whether s is a known status.
func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliverySent, DeliveryRejected, DeliveryFailed:
		return true
	default:
		return false
	}
}

// DeliverySource tells where a mail request came from.
type DeliverySource string

const (
	SourceHTTP  DeliverySource = "http"
	SourceQueue DeliverySource = "queue"
)

// Delivery is the persisted record of one relayed message.
type Delivery struct {
	ID             int64
	IdempotencyKey string
	Source         DeliverySource
	From           string
	Subject        string
	Recipients     []string
	Accepted       int
	Failed         []string
	Status         DeliveryStatus
	// Attempts counts pool sends, including recovery retries.
	Attempts  int
	Error     string
	Metadata  valueobject.JSONMap
	CreatedAt time.Time
}

// DeliveryFilter narrows ListDeliveries.
type DeliveryFilter struct {
	Status DeliveryStatus
	Since  time.Time
	Limit  int32
}
