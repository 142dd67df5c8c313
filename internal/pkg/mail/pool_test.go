package mail

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRefused = errors.New("connection refused")

func transports(fakes ...*fakeTransport) []Transport {
	var out []Transport
	for _, f := range fakes {
		out = append(out, f)
	}
	return out
}

func TestPool_Send_SkipsFailingTransports(t *testing.T) {
	t.Parallel()

	for failing := range 4 {
		t.Run(fmt.Sprintf("%d failing before success", failing), func(t *testing.T) {
			t.Parallel()

			// Arrange
			log := &sendLog{}
			fakes := make([]*fakeTransport, 5)
			for i := range fakes {
				fakes[i] = newFake(fmt.Sprintf("t%d", i), 3)
				fakes[i].log = log
				if i < failing {
					fakes[i].sendErr = errRefused
				}
			}
			pool := NewPool(transports(fakes...))

			// Act
			accepted, err := pool.Send(context.Background(), testMessage(), nil)

			// Assert
			require.NoError(t, err)
			assert.Equal(t, 3, accepted)
			assert.Equal(t, transports(fakes[:failing]...), pool.Quarantined())

			wantActive := transports(fakes[failing+1:]...)
			wantActive = append(wantActive, fakes[failing])
			assert.Equal(t, wantActive, pool.Active())
			assert.Len(t, log.all(), failing+1)
		})
	}
}

func TestPool_Send_QuarantinesFailedTransport(t *testing.T) {
	t.Parallel()

	// Arrange
	a, b, c := newFake("a", 1), newFake("b", 1), newFake("c", 1)
	a.sendErr = errRefused
	pool := NewPool(transports(a, b, c))

	// Act
	accepted, err := pool.Send(context.Background(), testMessage(), nil)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, accepted)
	assert.ElementsMatch(t, transports(b, c), pool.Active())
	assert.Equal(t, transports(c, b), pool.Active(), "b was used last")
	assert.Equal(t, transports(a), pool.Quarantined())
	assert.Equal(t, transports(c, b, a), pool.Transports())

	_, _, stops := a.counts()
	assert.Equal(t, 1, stops, "quarantined transport is stopped")
}

func TestPool_Send_Exhausted(t *testing.T) {
	t.Parallel()

	t.Run("single failing transport", func(t *testing.T) {
		t.Parallel()

		// Arrange
		a := newFake("a", 1)
		a.sendErr = errRefused
		pool := NewPool(transports(a))

		// Act
		accepted, err := pool.Send(context.Background(), testMessage(), nil)

		// Assert
		assert.Zero(t, accepted)
		require.ErrorIs(t, err, ErrPoolExhausted)
		require.ErrorIs(t, err, errRefused)

		var exErr *ExhaustedError
		require.ErrorAs(t, err, &exErr)
		assert.Equal(t, 1, exErr.Configured)
		assert.Equal(t, 1, exErr.Attempts)
		assert.False(t, exErr.Empty())

		var tErr *TransportError
		require.ErrorAs(t, err, &tErr)
		assert.Same(t, a, tErr.Transport)
		assert.Equal(t, "send", tErr.Op)

		assert.Empty(t, pool.Active())
		assert.Equal(t, transports(a), pool.Quarantined())
		assert.False(t, pool.IsStarted())
	})

	t.Run("every transport fails", func(t *testing.T) {
		t.Parallel()

		a, b := newFake("a", 1), newFake("b", 1)
		a.sendErr = errRefused
		b.sendErr = errors.New("timeout")
		pool := NewPool(transports(a, b))

		_, err := pool.Send(context.Background(), testMessage(), nil)

		var exErr *ExhaustedError
		require.ErrorAs(t, err, &exErr)
		assert.Equal(t, 2, exErr.Attempts)
		require.ErrorIs(t, err, b.sendErr, "last failure is the cause")
		assert.Equal(t, transports(a, b), pool.Quarantined())
	})

	t.Run("empty pool", func(t *testing.T) {
		t.Parallel()

		pool := NewPool(nil)

		_, err := pool.Send(context.Background(), testMessage(), nil)

		var exErr *ExhaustedError
		require.ErrorAs(t, err, &exErr)
		assert.True(t, exErr.Empty())
		assert.Zero(t, exErr.Attempts)
		require.NoError(t, exErr.Unwrap())
		assert.Equal(t, ErrPoolExhausted.Error(), err.Error())
	})
}

func TestPool_Start_RestoresQuarantine(t *testing.T) {
	t.Parallel()

	// Arrange
	a := newFake("a", 2)
	a.sendErr = errRefused
	pool := NewPool(transports(a))
	_, err := pool.Send(context.Background(), testMessage(), nil)
	require.ErrorIs(t, err, ErrPoolExhausted)
	a.setSendErr(nil)

	// Act
	require.NoError(t, pool.Start(context.Background()))
	accepted, err := pool.Send(context.Background(), testMessage(), nil)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, accepted)
	assert.Equal(t, transports(a), pool.Active())
	assert.Empty(t, pool.Quarantined())

	starts, sends, _ := a.counts()
	assert.Equal(t, 2, sends)
	assert.Equal(t, 2, starts, "restored transport is started lazily")
}

func TestPool_Configure(t *testing.T) {
	t.Parallel()

	t.Run("same set resets quarantine", func(t *testing.T) {
		t.Parallel()

		a, b := newFake("a", 1), newFake("b", 1)
		a.sendErr = errRefused
		pool := NewPool(transports(a, b))
		_, err := pool.Send(context.Background(), testMessage(), nil)
		require.NoError(t, err)
		require.Equal(t, transports(a), pool.Quarantined())

		pool.Configure(transports(a, b))

		assert.Empty(t, pool.Quarantined())
		assert.Equal(t, transports(a, b), pool.Active())
	})

	t.Run("duplicates keep first occurrence", func(t *testing.T) {
		t.Parallel()

		a, b := newFake("a", 1), newFake("b", 1)
		pool := NewPool(nil)

		pool.Configure([]Transport{a, b, a, nil, b})

		assert.Equal(t, transports(a, b), pool.Active())
	})

	t.Run("replaces previous transports", func(t *testing.T) {
		t.Parallel()

		a, b, c := newFake("a", 1), newFake("b", 1), newFake("c", 1)
		pool := NewPool(transports(a, b))

		pool.Configure(transports(c))

		assert.Equal(t, transports(c), pool.Transports())
	})
}

func TestPool_Send_ZeroAcceptedIsNotFailure(t *testing.T) {
	t.Parallel()

	t.Run("next transport accepts", func(t *testing.T) {
		t.Parallel()

		a, b := newFake("a", 0), newFake("b", 2)
		pool := NewPool(transports(a, b))

		accepted, err := pool.Send(context.Background(), testMessage(), nil)

		require.NoError(t, err)
		assert.Equal(t, 2, accepted)
		assert.Empty(t, pool.Quarantined())
		assert.Equal(t, transports(a, b), pool.Active())
	})

	t.Run("nobody accepts", func(t *testing.T) {
		t.Parallel()

		a, b := newFake("a", 0), newFake("b", 0)
		a.rejected = []string{"alice@example.com"}
		b.rejected = []string{"alice@example.com"}
		pool := NewPool(transports(a, b))
		failed := &FailedRecipients{}

		accepted, err := pool.Send(context.Background(), testMessage(), failed)

		require.NoError(t, err)
		assert.Zero(t, accepted)
		assert.Empty(t, pool.Quarantined())
		assert.Equal(t, []string{"alice@example.com", "alice@example.com"}, failed.List())
	})
}

func TestPool_Send_FailureHandling(t *testing.T) {
	t.Parallel()

	t.Run("start failure quarantines", func(t *testing.T) {
		t.Parallel()

		a, b := newFake("a", 1), newFake("b", 1)
		a.startErr = errRefused
		pool := NewPool(transports(a, b))

		accepted, err := pool.Send(context.Background(), testMessage(), nil)

		require.NoError(t, err)
		assert.Equal(t, 1, accepted)
		assert.Equal(t, transports(a), pool.Quarantined())
		_, sends, _ := a.counts()
		assert.Zero(t, sends)
	})

	t.Run("stop error while quarantining is suppressed", func(t *testing.T) {
		t.Parallel()

		a, b := newFake("a", 1), newFake("b", 1)
		a.sendErr = errRefused
		a.stopErr = errors.New("broken pipe")
		pool := NewPool(transports(a, b))

		accepted, err := pool.Send(context.Background(), testMessage(), nil)

		require.NoError(t, err)
		assert.Equal(t, 1, accepted)
		assert.Equal(t, transports(a), pool.Quarantined())
	})

	t.Run("invalid message aborts without quarantine", func(t *testing.T) {
		t.Parallel()

		a, b := newFake("a", 1), newFake("b", 1)
		a.sendErr = fmt.Errorf("%w: %w", ErrInvalidMessage, ErrNoRecipients)
		pool := NewPool(transports(a, b))

		_, err := pool.Send(context.Background(), testMessage(), nil)

		require.ErrorIs(t, err, ErrInvalidMessage)
		assert.NotErrorIs(t, err, ErrPoolExhausted)
		assert.Empty(t, pool.Quarantined())
		_, sends, _ := b.counts()
		assert.Zero(t, sends)
	})

	t.Run("transport without sender quarantines", func(t *testing.T) {
		t.Parallel()

		a, b := newFake("a", 1), newFake("b", 1)
		_, a.sendErr = senderOf(&Message{}, "")
		pool := NewPool(transports(a, b))

		accepted, err := pool.Send(context.Background(), testMessage(), nil)

		require.NoError(t, err)
		assert.Equal(t, 1, accepted)
		assert.Equal(t, transports(a), pool.Quarantined())
		_, sends, _ := b.counts()
		assert.Equal(t, 1, sends)
	})

	t.Run("no recipients rejected before any transport", func(t *testing.T) {
		t.Parallel()

		a := newFake("a", 1)
		pool := NewPool(transports(a))
		msg := testMessage()
		msg.To, msg.Cc, msg.Bcc = nil, nil, nil

		_, err := pool.Send(context.Background(), msg, nil)

		require.ErrorIs(t, err, ErrNoRecipients)
		require.ErrorIs(t, err, ErrInvalidMessage)
		starts, sends, _ := a.counts()
		assert.Zero(t, starts)
		assert.Zero(t, sends)
		assert.Equal(t, transports(a), pool.Active())
	})

	t.Run("cancelled caller aborts without quarantine", func(t *testing.T) {
		t.Parallel()

		a := newFake("a", 1)
		pool := NewPool(transports(a))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := pool.Send(ctx, testMessage(), nil)

		require.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, pool.Quarantined())
	})

	t.Run("attempt timeout quarantines", func(t *testing.T) {
		t.Parallel()

		slow := &blockingTransport{fakeTransport: fakeTransport{name: "slow"}}
		b := newFake("b", 1)
		pool := NewPool([]Transport{slow, b}, WithAttemptTimeout(20*time.Millisecond))

		accepted, err := pool.Send(context.Background(), testMessage(), nil)

		require.NoError(t, err)
		assert.Equal(t, 1, accepted)
		assert.Equal(t, []Transport{slow}, pool.Quarantined())
	})

	t.Run("custom classifier", func(t *testing.T) {
		t.Parallel()

		a, b := newFake("a", 1), newFake("b", 1)
		a.sendErr = errRefused
		pool := NewPool(transports(a, b), WithFailureClassifier(func(context.Context, error) FailureAction {
			return FailureAbort
		}))

		_, err := pool.Send(context.Background(), testMessage(), nil)

		require.ErrorIs(t, err, errRefused)
		assert.Empty(t, pool.Quarantined())
	})

	t.Run("nil message", func(t *testing.T) {
		t.Parallel()

		pool := NewPool(transports(newFake("a", 1)))

		_, err := pool.Send(context.Background(), nil, nil)

		require.ErrorIs(t, err, ErrNilMessage)
		require.ErrorIs(t, err, ErrInvalidMessage)
	})
}

func TestPool_Send_RoundRobin(t *testing.T) {
	t.Parallel()

	log := &sendLog{}
	a, b, c := newFake("a", 1), newFake("b", 1), newFake("c", 1)
	a.log, b.log, c.log = log, log, log
	pool := NewPool(transports(a, b, c))

	for range 6 {
		_, err := pool.Send(context.Background(), testMessage(), nil)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, log.all())
}

func TestPool_Send_Concurrent(t *testing.T) {
	t.Parallel()

	a, b := newFake("a", 1), newFake("b", 1)
	pool := NewPool(transports(a, b))

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			_, err := pool.Send(context.Background(), testMessage(), nil)
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	_, sendsA, _ := a.counts()
	_, sendsB, _ := b.counts()
	assert.Equal(t, 50, sendsA+sendsB)
	assert.Equal(t, 25, sendsA)
}

func TestPool_Stop(t *testing.T) {
	t.Parallel()

	a, b := newFake("a", 1), newFake("b", 1)
	a.stopErr = errors.New("quit rejected")
	pool := NewPool(transports(a, b))

	err := pool.Stop(context.Background())

	require.ErrorIs(t, err, a.stopErr)
	var tErr *TransportError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, "stop", tErr.Op)
	_, _, stopsB := b.counts()
	assert.Equal(t, 1, stopsB, "later transports are still stopped")
	assert.Equal(t, transports(a, b), pool.Active(), "stop does not change membership")
}

func TestPool_Nested(t *testing.T) {
	t.Parallel()

	// Arrange
	a, b := newFake("a", 1), newFake("b", 4)
	a.sendErr = errRefused
	inner := NewPool(transports(a), WithName("inner"))
	outer := NewPool([]Transport{inner, b}, WithName("outer"))

	// Act
	accepted, err := outer.Send(context.Background(), testMessage(), nil)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 4, accepted)
	assert.Equal(t, []Transport{inner}, outer.Quarantined())
	assert.Equal(t, transports(a), inner.Quarantined())
	assert.Equal(t, "inner", TransportName(inner))

	// Restarting the outer pool restarts the inner one lazily.
	a.setSendErr(nil)
	require.NoError(t, outer.Start(context.Background()))
	_, err = outer.Send(context.Background(), testMessage(), nil)
	require.NoError(t, err)
	_, err = outer.Send(context.Background(), testMessage(), nil)
	require.NoError(t, err)
	assert.Empty(t, inner.Quarantined())
}
