package mail

import (
	"context"
	"slices"
	"sync"

	"github.com/stretchr/testify/mock"
)

// fakeTransport is a scripted Transport for pool tests.
type fakeTransport struct {
	name string
	log  *sendLog

	mu        sync.Mutex
	started   bool
	accept    int
	rejected  []string
	startErr  error
	sendErr   error
	stopErr   error
	starts    int
	sends     int
	stops     int
	listeners []Listener
}

func newFake(name string, accept int) *fakeTransport {
	return &fakeTransport{name: name, accept: accept}
}

func (f *fakeTransport) Name() string { return f.name }

func (f *fakeTransport) IsStarted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

func (f *fakeTransport) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeTransport) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stops++
	f.started = false
	return f.stopErr
}

func (f *fakeTransport) Send(ctx context.Context, _ *Message, failed *FailedRecipients) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sends++
	f.log.add(f.name)
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	failed.Add(f.rejected...)
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	return f.accept, nil
}

func (f *fakeTransport) BindListener(l Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, l)
}

func (f *fakeTransport) setSendErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErr = err
}

func (f *fakeTransport) counts() (starts, sends, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.sends, f.stops
}

func (f *fakeTransport) listenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

// sendLog records which transport handled each attempt, in order.
type sendLog struct {
	mu    sync.Mutex
	names []string
}

func (l *sendLog) add(name string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.names = append(l.names, name)
	l.mu.Unlock()
}

func (l *sendLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.names...)
}

// blockingTransport never returns from Send until ctx is done.
type blockingTransport struct {
	fakeTransport
}

func (b *blockingTransport) Send(ctx context.Context, _ *Message, _ *FailedRecipients) (int, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) IsStarted() bool { return m.Called().Bool(0) }

func (m *mockTransport) Start(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *mockTransport) Stop(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *mockTransport) Send(ctx context.Context, msg *Message, failed *FailedRecipients) (int, error) {
	args := m.Called(ctx, msg, failed)
	return args.Int(0), args.Error(1)
}

func (m *mockTransport) BindListener(l Listener) { m.Called(l) }

// recordingListener collects events; pointers make it comparable by identity.
type recordingListener struct {
	name string

	mu     sync.Mutex
	events []TransportEvent
}

func (r *recordingListener) HandleTransportEvent(_ context.Context, evt TransportEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingListener) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]EventKind, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.Kind)
	}
	return out
}

func testMessage() *Message {
	return &Message{
		ID:       "1849203948203",
		From:     "noreply@example.com",
		To:       []string{"alice@example.com"},
		Subject:  "Hello",
		TextBody: "Hi Alice",
	}
}

func (r *rotation) contains(t Transport) bool { return slices.Contains(r.items, t) }

func (q *quarantine) contains(t Transport) bool { return slices.Contains(q.items, t) }
