package mail

import (
	"context"
	"log/slog"
	"sync"
)

// EventKind identifies what happened on a transport.
type EventKind string

const (
	EventStarted EventKind = "started"
	EventStopped EventKind = "stopped"
	EventSent    EventKind = "sent"
	EventFailed  EventKind = "failed"
)

// TransportEvent is dispatched by a transport to its bound listeners.
type TransportEvent struct {
	Kind EventKind
	// Source is the transport that emitted the event.
	Source   Transport
	Message  *Message
	Accepted int
	Err      error
}

// Listener receives transport events.
type Listener interface {
	HandleTransportEvent(ctx context.Context, evt TransportEvent)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, evt TransportEvent)

// HandleTransportEvent calls f.
func (f ListenerFunc) HandleTransportEvent(ctx context.Context, evt TransportEvent) {
	f(ctx, evt)
}

// eventBus is embedded by concrete transports to hold their listeners.
type eventBus struct {
	mu        sync.RWMutex
	listeners []Listener
}

func (b *eventBus) bind(l Listener) {
	if l == nil {
		return
	}

	b.mu.Lock()
	b.listeners = append(b.listeners, l)
	b.mu.Unlock()
}

func (b *eventBus) emit(ctx context.Context, evt TransportEvent) {
	b.mu.RLock()
	listeners := append([]Listener(nil), b.listeners...)
	b.mu.RUnlock()

	for _, l := range listeners {
		l.HandleTransportEvent(ctx, evt)
	}
}

// NewLogListener returns a Listener that writes every event to slog.
// Failures are logged at WARN, everything else at DEBUG.
func NewLogListener() Listener {
	return ListenerFunc(func(ctx context.Context, evt TransportEvent) {
		attrs := []any{
			"transport", TransportName(evt.Source),
			"event", string(evt.Kind),
		}
		if evt.Message != nil {
			attrs = append(attrs, "message_id", evt.Message.ID)
		}
		if evt.Kind == EventSent {
			attrs = append(attrs, "accepted", evt.Accepted)
		}

		if evt.Err != nil {
			attrs = append(attrs, "error", evt.Err)
			slog.WarnContext(ctx, "mail transport event", attrs...)
			return
		}
		slog.DebugContext(ctx, "mail transport event", attrs...)
	})
}
