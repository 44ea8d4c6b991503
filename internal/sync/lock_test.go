package sync

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSiteLock_SerializesPerSite(t *testing.T) {
	l := NewLocalSiteLock()

	release, err := l.Acquire(context.Background(), 1)
	require.NoError(t, err)

	// Other sites are independent.
	release2, err := l.Acquire(context.Background(), 2)
	require.NoError(t, err)
	release2()

	// Same site blocks until released.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release3, err := l.Acquire(context.Background(), 1)
	require.NoError(t, err)
	release3()
}

func TestRedisSiteLock(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	l := NewRedisSiteLock(client)

	release, err := l.Acquire(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, srv.Exists("netmanager:sync:lock:1"))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	assert.False(t, srv.Exists("netmanager:sync:lock:1"))

	release, err = l.Acquire(context.Background(), 1)
	require.NoError(t, err)
	release()
}

func TestRedisSiteLock_StaleTokenNotReleased(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	l := NewRedisSiteLock(client)
	release, err := l.Acquire(context.Background(), 7)
	require.NoError(t, err)

	// Simulate TTL expiry and takeover by another runner.
	srv.Set("netmanager:sync:lock:7", "someone-else")
	release()
	val, err := srv.Get("netmanager:sync:lock:7")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", val, "release must not delete a lock it no longer owns")
}
