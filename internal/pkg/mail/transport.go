package mail

import (
	"context"
	"fmt"
)

// Transport is a delivery mechanism for messages.
//
// Implementations must be pointer types: the Pool compares transports by
// identity, never by value.
type Transport interface {
	// IsStarted reports whether the transport is ready to Send.
	IsStarted() bool
	// Start prepares the transport (dial, authenticate, etc).
	Start(ctx context.Context) error
	// Stop releases whatever Start acquired.
	Stop(ctx context.Context) error
	// Send delivers msg and returns the number of accepted recipients.
	// Recipients refused individually are added to failed.
	Send(ctx context.Context, msg *Message, failed *FailedRecipients) (int, error)
	// BindListener subscribes l to the transport's events.
	BindListener(l Listener)
}

// Namer is implemented by transports that carry a human-readable name.
type Namer interface {
	Name() string
}

// TransportName returns the name of t, falling back to its dynamic type.
func TransportName(t Transport) string {
	if n, ok := t.(Namer); ok && n.Name() != "" {
		return n.Name()
	}
	return fmt.Sprintf("%T", t)
}
