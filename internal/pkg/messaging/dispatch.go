package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"

	"github.com/shandysiswandi/mailrelay/internal/pkg/stacktrace"
)

// responseGuard makes Ack/Nack idempotent.
type responseGuard struct {
	responded atomic.Bool
}

// claim returns true the first time it is called.
func (g *responseGuard) claim() bool { return !g.responded.Swap(true) }

func (g *responseGuard) hasResponded() bool { return g.responded.Load() }

// settle runs fn for the first Ack or Nack only. A done ctx settles nothing.
func (g *responseGuard) settle(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !g.claim() {
		return nil
	}
	return fn()
}

type received interface {
	Message
	hasResponded() bool
}

// dispatch runs handler on msg and, with autoAck, settles the message.
// Only settlement errors are returned; handler errors are logged.
func dispatch(ctx context.Context, kind string, handler Handler, msg received, autoAck bool) error {
	herr := callHandlerWithRecover(ctx, kind, func() error {
		return handler(ctx, msg)
	})
	if herr != nil {
		slog.WarnContext(ctx, "messaging handler failed", "kind", kind, "message_id", msg.ID(), "error", herr)
	}

	if msg.hasResponded() || !autoAck {
		return nil
	}
	if herr == nil {
		return msg.Ack(ctx)
	}
	return msg.Nack(ctx)
}

func callHandlerWithRecover(ctx context.Context, kind string, fn func() error) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			stack := debug.Stack()
			paths := stacktrace.InternalPaths(stack)
			if len(paths) == 0 {
				slog.ErrorContext(ctx, "panic in messaging handler", "kind", kind, "panic", rvr, "stack", string(stack))
			} else {
				slog.ErrorContext(ctx, "panic in messaging handler", "kind", kind, "panic", rvr, "stack", paths)
			}
			err = fmt.Errorf("messaging: panic in %s handler: %v", kind, rvr)
		}
	}()

	return fn()
}

func firstHeader(h map[string]string, key string) string {
	if h == nil {
		return ""
	}
	return h[key]
}
