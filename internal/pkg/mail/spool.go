package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/shandysiswandi/mailrelay/internal/pkg/storage"
	"go.uber.org/atomic"
)

const spoolContentType = "message/rfc822"

var (
	// ErrSpoolBucketRequired is returned when no bucket is configured.
	ErrSpoolBucketRequired = errors.New("mail: spool bucket is required")
	// ErrSpoolStorageRequired is returned when no storage is given.
	ErrSpoolStorageRequired = errors.New("mail: spool storage is required")
	// ErrSpoolBucketNotFound is returned by Start when the bucket does not exist.
	ErrSpoolBucketNotFound = errors.New("mail: spool bucket not found")
	// ErrSpoolIncomplete is returned when the stored object is shorter than the message.
	ErrSpoolIncomplete = errors.New("mail: spool object incomplete")
)

// SpoolConfig configures the Spool transport.
type SpoolConfig struct {
	// Name identifies the transport in logs and metrics.
	Name string
	// Bucket receives the .eml objects.
	Bucket string
	// Prefix is prepended to every object key.
	Prefix string
	// From is the default sender when Message.From is empty.
	From string
}

// Spool writes every message as an .eml object to object storage, under
// <prefix>/<yyyy>/<mm>/<dd>/<id>.eml. A pickup process delivers them later.
type Spool struct {
	cfg     SpoolConfig
	store   storage.Storage
	now     func() time.Time
	started *atomic.Bool
	events  eventBus
}

// NewSpool constructs a Spool transport.
func NewSpool(store storage.Storage, cfg SpoolConfig) (*Spool, error) {
	if store == nil {
		return nil, ErrSpoolStorageRequired
	}
	if cfg.Bucket == "" {
		return nil, ErrSpoolBucketRequired
	}
	if cfg.Name == "" {
		cfg.Name = "spool://" + path.Join(cfg.Bucket, cfg.Prefix)
	}

	return &Spool{
		cfg:     cfg,
		store:   store,
		now:     time.Now,
		started: atomic.NewBool(false),
	}, nil
}

// Name implements Namer.
func (s *Spool) Name() string { return s.cfg.Name }

// IsStarted implements Transport.
func (s *Spool) IsStarted() bool { return s.started.Load() }

// BindListener implements Transport.
func (s *Spool) BindListener(l Listener) { s.events.bind(l) }

// Start checks that the bucket is reachable.
func (s *Spool) Start(ctx context.Context) error {
	if s.started.Load() {
		return nil
	}

	ok, err := s.store.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrSpoolBucketNotFound, s.cfg.Bucket)
	}

	if s.started.CompareAndSwap(false, true) {
		s.events.emit(ctx, TransportEvent{Kind: EventStarted, Source: s})
	}
	return nil
}

// Stop implements Transport.
func (s *Spool) Stop(ctx context.Context) error {
	if s.started.CompareAndSwap(true, false) {
		s.events.emit(ctx, TransportEvent{Kind: EventStopped, Source: s})
	}
	return nil
}

// Send stores the rendered message and verifies the stored size. A short
// object is deleted and reported as a failure.
func (s *Spool) Send(ctx context.Context, msg *Message, _ *FailedRecipients) (int, error) {
	if msg == nil {
		return 0, ErrNilMessage
	}
	if !s.started.Load() {
		return 0, ErrNotStarted
	}

	accepted, err := s.write(ctx, msg)
	if err != nil {
		s.events.emit(ctx, TransportEvent{Kind: EventFailed, Source: s, Message: msg, Err: err})
		return 0, err
	}

	s.events.emit(ctx, TransportEvent{Kind: EventSent, Source: s, Message: msg, Accepted: accepted})
	return accepted, nil
}

func (s *Spool) write(ctx context.Context, msg *Message) (int, error) {
	now := s.now()
	raw, err := Render(msg, RenderOptions{DefaultFrom: s.cfg.From, Now: func() time.Time { return now }})
	if err != nil {
		return 0, err
	}
	from, _ := senderOf(msg, s.cfg.From) //nolint:errcheck // checked by Render

	recipients := msg.Recipients()
	key := s.objectKey(msg, now)

	_, err = s.store.PutObject(ctx, s.cfg.Bucket, key, bytes.NewReader(raw), storage.PutOptions{
		Size:        int64(len(raw)),
		ContentType: spoolContentType,
		Metadata: map[string]string{
			"from":       from,
			"recipients": strings.Join(recipients, ","),
		},
	})
	if err != nil {
		return 0, err
	}

	info, err := s.store.StatObject(ctx, s.cfg.Bucket, key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return 0, fmt.Errorf("%w: %s missing after upload", ErrSpoolIncomplete, key)
	}
	if err != nil {
		return 0, err
	}
	if info.Size != int64(len(raw)) {
		incomplete := fmt.Errorf("%w: %s has %d of %d bytes", ErrSpoolIncomplete, key, info.Size, len(raw))
		return 0, errors.Join(incomplete, s.store.DeleteObject(ctx, s.cfg.Bucket, key))
	}

	return len(recipients), nil
}

func (s *Spool) objectKey(msg *Message, now time.Time) string {
	id := msg.ID
	if id == "" {
		id = strconv.FormatInt(now.UnixNano(), 36)
	}
	return path.Join(s.cfg.Prefix, now.UTC().Format("2006/01/02"), id+".eml")
}
