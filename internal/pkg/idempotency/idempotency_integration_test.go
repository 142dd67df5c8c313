//go:build integration

package idempotency

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

const redisPort = nat.Port("6379/tcp")

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	ctx := context.Background()
	container, err := tcredis.Run(ctx,
		"redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, redisPort)
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: net.JoinHostPort(host, port.Port())})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestIntegration_StateTracker_Exec(t *testing.T) {
	client := setupRedis(t)
	tracker := New(client, "")
	ctx := context.Background()

	calls := 0
	send := func(context.Context) error {
		calls++
		return nil
	}

	require.NoError(t, tracker.Exec(ctx, "req-1", send))
	assert.ErrorIs(t, tracker.Exec(ctx, "req-1", send), ErrAlreadyCompleted)
	assert.Equal(t, 1, calls)

	stored, err := client.Get(ctx, DefaultPrefix+"req-1").Result()
	require.NoError(t, err)
	assert.Equal(t, StateCompleted.String(), stored)

	errSMTP := errors.New("smtp down")
	err = tracker.Exec(ctx, "req-2", func(context.Context) error { return errSMTP }, WithStateTTL(time.Minute))
	assert.ErrorIs(t, err, errSMTP)
	assert.ErrorIs(t, tracker.Exec(ctx, "req-2", send), ErrAlreadyFailed)

	require.NoError(t, tracker.Forget(ctx, "req-2"))
	require.NoError(t, tracker.Exec(ctx, "req-2", send))
	assert.Equal(t, 2, calls)
}

func TestIntegration_StateTracker_Acquire(t *testing.T) {
	client := setupRedis(t)
	tracker := New(client, "test:")
	ctx := context.Background()

	state, err := tracker.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, StateNone, state)

	state, err = tracker.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, StateInProgress, state)

	require.NoError(t, client.Set(ctx, "test:bad", "garbage", time.Minute).Err())
	state, err = tracker.Acquire(ctx, "bad", time.Minute)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, StateError, state)
}
