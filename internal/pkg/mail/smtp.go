package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	netmail "net/mail"
	"net/smtp"
	"net/textproto"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// SMTPConfig configures the SMTP transport.
type SMTPConfig struct {
	// Name identifies the transport in logs and metrics.
	Name string
	// Host is the SMTP server hostname.
	Host string
	// Port is the SMTP server port.
	Port int
	// Username is the SMTP authentication username.
	Username string
	// Password is the SMTP authentication password.
	Password string
	// From is the default sender when Message.From is empty.
	From string
	// HelloName is sent with EHLO; net/smtp uses "localhost" when empty.
	HelloName string
	// DialTimeout bounds connecting when ctx carries no deadline.
	DialTimeout time.Duration
	// InsecureSkipVerify disables certificate checks on STARTTLS.
	InsecureSkipVerify bool
}

// SMTP delivers messages over a persistent SMTP connection.
//
// Start dials and authenticates; the connection is reused by every Send
// until Stop or until a protocol error drops it.
type SMTP struct {
	cfg     SMTPConfig
	addr    string
	auth    smtp.Auth
	now     func() time.Time
	started *atomic.Bool
	events  eventBus

	mu     sync.Mutex
	conn   net.Conn
	client *smtp.Client
}

// NewSMTP constructs an SMTP transport. It does not connect.
func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if cfg.Host == "" || cfg.Port == 0 {
		return nil, ErrSMTPHostPortRequired
	}
	if cfg.Name == "" {
		cfg.Name = "smtp://" + net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port))
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}

	var auth smtp.Auth
	if cfg.Username != "" && cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	return &SMTP{
		cfg:     cfg,
		addr:    net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		auth:    auth,
		now:     time.Now,
		started: atomic.NewBool(false),
	}, nil
}

// Name implements Namer.
func (s *SMTP) Name() string { return s.cfg.Name }

// IsStarted reports whether a connection is open.
func (s *SMTP) IsStarted() bool { return s.started.Load() }

// BindListener implements Transport.
func (s *SMTP) BindListener(l Listener) { s.events.bind(l) }

// Start dials the server, upgrades to TLS when offered and authenticates.
func (s *SMTP) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started.Load() {
		return nil
	}

	dialer := net.Dialer{Timeout: s.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("mail: smtp dial: %w", err)
	}
	stop := watchContext(ctx, conn)
	defer stop()

	client, err := s.handshake(conn)
	if err != nil {
		_ = conn.Close() //nolint:errcheck // handshake error wins
		return err
	}

	s.conn = conn
	s.client = client
	s.started.Store(true)
	s.events.emit(ctx, TransportEvent{Kind: EventStarted, Source: s})
	return nil
}

func (s *SMTP) handshake(conn net.Conn) (*smtp.Client, error) {
	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("mail: smtp greeting: %w", err)
	}

	if s.cfg.HelloName != "" {
		if err := client.Hello(s.cfg.HelloName); err != nil {
			return nil, fmt.Errorf("mail: smtp hello: %w", err)
		}
	}

	if ok, _ := client.Extension("STARTTLS"); ok {
		//nolint:gosec // opt-in via configuration
		tlsCfg := &tls.Config{ServerName: s.cfg.Host, InsecureSkipVerify: s.cfg.InsecureSkipVerify}
		if err := client.StartTLS(tlsCfg); err != nil {
			return nil, fmt.Errorf("mail: smtp starttls: %w", err)
		}
	}

	if s.auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(s.auth); err != nil {
				return nil, fmt.Errorf("mail: smtp auth: %w", err)
			}
		}
	}

	return client, nil
}

// Stop sends QUIT and closes the connection.
func (s *SMTP) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		s.started.Store(false)
		return nil
	}

	err := s.client.Quit()
	if err != nil {
		_ = s.client.Close() //nolint:errcheck // quit error wins
	}
	s.client = nil
	s.conn = nil
	s.started.Store(false)

	s.events.emit(ctx, TransportEvent{Kind: EventStopped, Source: s, Err: err})
	if err != nil {
		return fmt.Errorf("mail: smtp quit: %w", err)
	}
	return nil
}

// Send runs one SMTP transaction. Recipients refused with a reply code are
// added to failed; when every recipient is refused the transaction is reset
// and 0 is returned without error.
func (s *SMTP) Send(ctx context.Context, msg *Message, failed *FailedRecipients) (int, error) {
	if msg == nil {
		return 0, ErrNilMessage
	}

	raw, err := Render(msg, RenderOptions{DefaultFrom: s.cfg.From, Now: s.now})
	if err != nil {
		s.events.emit(ctx, TransportEvent{Kind: EventFailed, Source: s, Message: msg, Err: err})
		return 0, err
	}
	from, _ := senderOf(msg, s.cfg.From) //nolint:errcheck // checked by Render

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return 0, ErrNotStarted
	}

	stop := watchContext(ctx, s.conn)
	defer stop()

	accepted, err := s.transaction(bareAddress(from), msg.Recipients(), raw, failed)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.Join(ctxErr, err)
		}
		s.drop()
		s.events.emit(ctx, TransportEvent{Kind: EventFailed, Source: s, Message: msg, Err: err})
		return 0, err
	}

	s.events.emit(ctx, TransportEvent{Kind: EventSent, Source: s, Message: msg, Accepted: accepted})
	return accepted, nil
}

func (s *SMTP) transaction(from string, recipients []string, raw []byte, failed *FailedRecipients) (int, error) {
	if err := s.client.Mail(from); err != nil {
		return 0, fmt.Errorf("mail: smtp MAIL FROM: %w", err)
	}

	accepted := 0
	for _, rcpt := range recipients {
		err := s.client.Rcpt(bareAddress(rcpt))
		if err == nil {
			accepted++
			continue
		}

		var reply *textproto.Error
		if errors.As(err, &reply) {
			failed.Add(rcpt)
			continue
		}
		return 0, fmt.Errorf("mail: smtp RCPT TO: %w", err)
	}

	if accepted == 0 {
		if err := s.client.Reset(); err != nil {
			return 0, fmt.Errorf("mail: smtp RSET: %w", err)
		}
		return 0, nil
	}

	w, err := s.client.Data()
	if err != nil {
		return 0, fmt.Errorf("mail: smtp DATA: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		_ = w.Close() //nolint:errcheck // write error wins
		return 0, fmt.Errorf("mail: smtp write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("mail: smtp end of data: %w", err)
	}

	return accepted, nil
}

// drop closes a connection left in an unknown state.
func (s *SMTP) drop() {
	if s.client != nil {
		_ = s.client.Close() //nolint:errcheck // connection is broken anyway
	}
	s.client = nil
	s.conn = nil
	s.started.Store(false)
}

// watchContext interrupts blocking IO on conn once ctx is done.
func watchContext(ctx context.Context, conn net.Conn) (stop func()) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline) //nolint:errcheck // best effort
	}

	unregister := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now()) //nolint:errcheck // best effort
	})

	return func() {
		unregister()
		_ = conn.SetDeadline(time.Time{}) //nolint:errcheck // best effort
	}
}

func bareAddress(addr string) string {
	if parsed, err := netmail.ParseAddress(addr); err == nil {
		return parsed.Address
	}
	return addr
}
