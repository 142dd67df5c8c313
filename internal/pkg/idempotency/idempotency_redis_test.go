package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T) (*StateTracker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client, "test:"), mr
}

func TestStateTracker_Exec(t *testing.T) {
	t.Parallel()

	t.Run("runs once then reports completed", func(t *testing.T) {
		t.Parallel()

		tracker, mr := newTestTracker(t)
		calls := 0
		fn := func(context.Context) error {
			calls++
			return nil
		}

		require.NoError(t, tracker.Exec(context.Background(), "k1", fn))
		err := tracker.Exec(context.Background(), "k1", fn)

		require.ErrorIs(t, err, ErrAlreadyCompleted)
		assert.Equal(t, 1, calls)
		got, _ := mr.Get("test:k1")
		assert.Equal(t, StateCompleted.String(), got)
	})

	t.Run("failure is recorded", func(t *testing.T) {
		t.Parallel()

		tracker, _ := newTestTracker(t)
		boom := errors.New("smtp down")

		err := tracker.Exec(context.Background(), "k2", func(context.Context) error { return boom })
		require.ErrorIs(t, err, boom)

		err = tracker.Exec(context.Background(), "k2", func(context.Context) error { return nil })
		require.ErrorIs(t, err, ErrAlreadyFailed)
	})

	t.Run("forget allows a rerun", func(t *testing.T) {
		t.Parallel()

		tracker, mr := newTestTracker(t)
		require.Error(t, tracker.Exec(context.Background(), "k3", func(context.Context) error { return errors.New("x") }))

		require.NoError(t, tracker.Forget(context.Background(), "k3"))
		assert.False(t, mr.Exists("test:k3"))
		require.NoError(t, tracker.Exec(context.Background(), "k3", func(context.Context) error { return nil }))
	})

	t.Run("lock expires", func(t *testing.T) {
		t.Parallel()

		tracker, mr := newTestTracker(t)
		state, err := tracker.Acquire(context.Background(), "k4", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, StateNone, state)

		state, err = tracker.Acquire(context.Background(), "k4", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, StateInProgress, state)

		mr.FastForward(2 * time.Minute)
		state, err = tracker.Acquire(context.Background(), "k4", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, StateNone, state)
	})
}
