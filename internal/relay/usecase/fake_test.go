package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/mailrelay/internal/pkg/clock"
	"github.com/shandysiswandi/mailrelay/internal/pkg/config"
	"github.com/shandysiswandi/mailrelay/internal/pkg/goerror"
	"github.com/shandysiswandi/mailrelay/internal/pkg/idempotency"
	"github.com/shandysiswandi/mailrelay/internal/pkg/instrument"
	"github.com/shandysiswandi/mailrelay/internal/pkg/mail"
	"github.com/shandysiswandi/mailrelay/internal/pkg/validator"
	"github.com/shandysiswandi/mailrelay/internal/relay/entity"
	"github.com/stretchr/testify/require"
)

const testMessageID int64 = 1849203948203

var testNow = time.Date(2026, 10, 15, 10, 4, 5, 0, time.UTC)

type fixedNumber int64

func (f fixedNumber) Generate() int64 { return int64(f) }

type sendResult struct {
	accepted int
	err      error
	reject   []string
}

// fakeTransport replays results in order, repeating the last one.
type fakeTransport struct {
	name    string
	results []sendResult

	mu      sync.Mutex
	started bool
	sends   int
	last    *mail.Message
}

func (f *fakeTransport) Name() string { return f.name }

func (f *fakeTransport) IsStarted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

func (f *fakeTransport) Start(context.Context) error {
	f.mu.Lock()
	f.started = true
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Stop(context.Context) error {
	f.mu.Lock()
	f.started = false
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) BindListener(mail.Listener) {}

func (f *fakeTransport) Send(_ context.Context, msg *mail.Message, failed *mail.FailedRecipients) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	res := f.results[min(f.sends, len(f.results)-1)]
	f.sends++
	f.last = msg
	failed.Add(res.reject...)
	return res.accepted, res.err
}

type fakeRepo struct {
	mu        sync.Mutex
	created   []entity.Delivery
	createErr error
	items     []entity.Delivery
	filter    entity.DeliveryFilter
	getErr    error
}

func (f *fakeRepo) CreateDelivery(_ context.Context, d entity.Delivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, d)
	return f.createErr
}

func (f *fakeRepo) ListDeliveries(_ context.Context, filter entity.DeliveryFilter) ([]entity.Delivery, error) {
	f.filter = filter
	return f.items, f.getErr
}

func (f *fakeRepo) GetDelivery(_ context.Context, id int64) (*entity.Delivery, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, d := range f.items {
		if d.ID == id {
			return &d, nil
		}
	}
	return nil, goerror.ErrNotFound
}

// fakeIdempotency keeps StateTracker semantics in memory.
type fakeIdempotency struct {
	mu        sync.Mutex
	states    map[string]idempotency.State
	forgotten []string
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{states: make(map[string]idempotency.State)}
}

func (f *fakeIdempotency) Acquire(_ context.Context, key string, _ time.Duration) (idempotency.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if state, ok := f.states[key]; ok {
		return state, nil
	}
	f.states[key] = idempotency.StateInProgress
	return idempotency.StateNone, nil
}

func (f *fakeIdempotency) mark(key string, state idempotency.State) {
	f.mu.Lock()
	f.states[key] = state
	f.mu.Unlock()
}

func (f *fakeIdempotency) MarkCompleted(_ context.Context, key string, _ time.Duration) error {
	f.mark(key, idempotency.StateCompleted)
	return nil
}

func (f *fakeIdempotency) MarkFailed(_ context.Context, key string, _ time.Duration) error {
	f.mark(key, idempotency.StateFailed)
	return nil
}

func (f *fakeIdempotency) Forget(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.states, key)
	f.forgotten = append(f.forgotten, key)
	return nil
}

func (f *fakeIdempotency) Exec(ctx context.Context, key string, fn func(context.Context) error, _ ...idempotency.Option) error {
	state, _ := f.Acquire(ctx, key, time.Minute) //nolint:errcheck // never fails
	switch state {
	case idempotency.StateInProgress:
		return idempotency.ErrAlreadyInProgress
	case idempotency.StateCompleted:
		return idempotency.ErrAlreadyCompleted
	case idempotency.StateFailed:
		return idempotency.ErrAlreadyFailed
	}

	if err := fn(ctx); err != nil {
		f.mark(key, idempotency.StateFailed)
		return err
	}
	f.mark(key, idempotency.StateCompleted)
	return nil
}

const testConfig = `
mail:
  recovery:
    max_retries: 2
    base_delay_ms: 1
    max_delay_seconds: 1
  idempotency:
    ttl_seconds: 60
`

type fixture struct {
	uc    *Usecase
	repo  *fakeRepo
	idemp *fakeIdempotency
	pool  *mail.Pool
}

func newFixture(t *testing.T, transports ...mail.Transport) fixture {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(testConfig))
	require.NoError(t, err)
	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	f := fixture{
		repo:  &fakeRepo{},
		idemp: newFakeIdempotency(),
		pool:  mail.NewPool(transports),
	}
	f.uc = New(Dependency{
		RepoDB:      f.repo,
		Pool:        f.pool,
		Idempotency: f.idemp,
		Config:      cfg,
		UID:         fixedNumber(testMessageID),
		Clock:       clock.NewFixed(testNow),
		Validator:   v,
		Instrument:  instrument.NewNoop(),
	})
	return f
}
