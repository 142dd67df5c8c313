package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPool_BindListener_DeliversOnce(t *testing.T) {
	t.Parallel()

	// Arrange
	m := &mockTransport{}
	m.On("BindListener", mock.Anything).Return()
	pool := NewPool([]Transport{m})
	first := &recordingListener{name: "first"}
	second := &recordingListener{name: "second"}

	// Act
	pool.BindListener(first)
	pool.BindListener(first)
	pool.Configure([]Transport{m})
	pool.BindListener(second)
	pool.BindListener(nil)

	// Assert
	m.AssertNumberOfCalls(t, "BindListener", 2)
	m.AssertCalled(t, "BindListener", first)
	m.AssertCalled(t, "BindListener", second)
}

// namedListener wraps another listener in a comparable struct type.
type namedListener struct {
	name  string
	inner Listener
}

func (n namedListener) HandleTransportEvent(ctx context.Context, evt TransportEvent) {
	n.inner.HandleTransportEvent(ctx, evt)
}

func TestPool_BindListener_WrappedListeners(t *testing.T) {
	t.Parallel()

	// Arrange
	a := newFake("a", 1)
	pool := NewPool(transports(a))
	byFunc := namedListener{name: "log", inner: NewLogListener()}
	byPointer := namedListener{name: "rec", inner: &recordingListener{name: "rec"}}

	// Act
	require.NotPanics(t, func() {
		pool.BindListener(byFunc)
		pool.BindListener(byFunc)
		pool.BindListener(byPointer)
		pool.BindListener(byPointer)
	})

	// Assert
	assert.Equal(t, 3, a.listenerCount(), "func wrappers are always new, pointer wrappers dedupe")
}

func TestPool_BindListener_QuarantinedCatchUp(t *testing.T) {
	t.Parallel()

	// Arrange
	a, b := newFake("a", 1), newFake("b", 1)
	a.sendErr = errRefused
	pool := NewPool(transports(a, b))
	pool.BindListener(&recordingListener{name: "first"})
	_, err := pool.Send(context.Background(), testMessage(), nil)
	require.NoError(t, err)
	require.Equal(t, transports(a), pool.Quarantined())

	// Act
	pool.BindListener(&recordingListener{name: "second"})

	// Assert
	assert.Equal(t, 1, a.listenerCount(), "quarantined transport waits")
	assert.Equal(t, 2, b.listenerCount())

	require.NoError(t, pool.Start(context.Background()))
	assert.Equal(t, 2, a.listenerCount())
	assert.Equal(t, 2, b.listenerCount())
}

func TestPool_BindListener_NewTransportsCatchUp(t *testing.T) {
	t.Parallel()

	a, b := newFake("a", 1), newFake("b", 1)
	pool := NewPool(transports(a))
	pool.BindListener(ListenerFunc(func(context.Context, TransportEvent) {}))
	pool.BindListener(ListenerFunc(func(context.Context, TransportEvent) {}))

	pool.Configure(transports(a, b))
	assert.Equal(t, 2, a.listenerCount())
	assert.Equal(t, 2, b.listenerCount())

	// b leaves and rejoins: it is treated as new.
	pool.Configure(transports(a))
	pool.Configure(transports(a, b))
	assert.Equal(t, 2, a.listenerCount())
	assert.Equal(t, 4, b.listenerCount())
}

func TestBroker_ListenerThroughPool(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	broker, err := NewBroker(pub, BrokerConfig{Topic: "mail.outbound"})
	require.NoError(t, err)
	pool := NewPool([]Transport{broker})
	rec := &recordingListener{name: "rec"}
	pool.BindListener(rec)

	_, err = pool.Send(context.Background(), testMessage(), nil)
	require.NoError(t, err)

	assert.Equal(t, []EventKind{EventStarted, EventSent}, rec.kinds())
}

func TestNewLogListener(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	l := NewLogListener()
	src := newFake("smtp-primary", 1)

	l.HandleTransportEvent(context.Background(), TransportEvent{Kind: EventSent, Source: src, Message: testMessage(), Accepted: 2})
	l.HandleTransportEvent(context.Background(), TransportEvent{Kind: EventFailed, Source: src, Err: errors.New("boom")})

	dec := json.NewDecoder(&buf)

	var sent map[string]any
	require.NoError(t, dec.Decode(&sent))
	assert.Equal(t, "DEBUG", sent["level"])
	assert.Equal(t, "smtp-primary", sent["transport"])
	assert.Equal(t, "sent", sent["event"])
	assert.Equal(t, "1849203948203", sent["message_id"])
	assert.InDelta(t, 2, sent["accepted"], 0)

	var failed map[string]any
	require.NoError(t, dec.Decode(&failed))
	assert.Equal(t, "WARN", failed["level"])
	assert.Equal(t, "boom", failed["error"])
}
