package instrument

import "context"

type (
	correlationIDKey struct{}
	messageIDKey     struct{}
)

// SetCorrelationID returns a copy of ctx carrying cID.
func SetCorrelationID(ctx context.Context, cID string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, cID)
}

// GetCorrelationID returns the correlation ID stored in ctx, or "".
func GetCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	cID, _ := ctx.Value(correlationIDKey{}).(string) //nolint:errcheck // absent key yields ""
	return cID
}

// SetMessageID tags ctx with the mail message being processed; every log
// record written with ctx carries it.
func SetMessageID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, messageIDKey{}, id)
}

// GetMessageID returns the message ID stored in ctx, or "".
func GetMessageID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(messageIDKey{}).(string) //nolint:errcheck // absent key yields ""
	return id
}
