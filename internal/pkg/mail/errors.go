package mail

import (
	"errors"
	"fmt"
)

var (
	// ErrSMTPHostPortRequired indicates SMTP host/port are missing.
	ErrSMTPHostPortRequired = errors.New("mail: smtp host and port are required")
	// ErrNoRecipients indicates no recipients were provided.
	ErrNoRecipients = errors.New("mail: no recipients")
	// ErrNoSender indicates neither the message nor the transport has a sender.
	ErrNoSender = errors.New("mail: no sender")
	// ErrInvalidMessage marks errors caused by the message alone, whatever
	// transport handles it. The pool never quarantines a transport for them.
	ErrInvalidMessage = errors.New("mail: invalid message")
	// ErrNilMessage is returned when Send is called without a message.
	ErrNilMessage = fmt.Errorf("%w: nil message", ErrInvalidMessage)
	// ErrNotStarted is returned by transports asked to send before Start.
	ErrNotStarted = errors.New("mail: transport not started")
	// ErrPoolExhausted matches every *ExhaustedError.
	ErrPoolExhausted = errors.New("mail: all transports in pool failed, or no transports available")
)

// TransportError is a delivery failure attributed to one transport.
type TransportError struct {
	Transport Transport
	// Op is "start" or "send".
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mail: %s %s: %v", TransportName(e.Transport), e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ExhaustedError is returned by Pool.Send when no active transport remains.
type ExhaustedError struct {
	// Configured is the number of active transports when the send began.
	Configured int
	// Attempts is the number of transports tried.
	Attempts int
	// Cause is the last transport failure, nil when nothing was tried.
	Cause error
}

func (e *ExhaustedError) Error() string {
	if e.Cause == nil {
		return ErrPoolExhausted.Error()
	}
	return fmt.Sprintf("%s (attempts=%d): %v", ErrPoolExhausted.Error(), e.Attempts, e.Cause)
}

// Is reports true for ErrPoolExhausted.
func (e *ExhaustedError) Is(target error) bool { return target == ErrPoolExhausted }

func (e *ExhaustedError) Unwrap() error { return e.Cause }

// Empty reports whether the pool had no active transport to try.
func (e *ExhaustedError) Empty() bool { return e.Configured == 0 }
