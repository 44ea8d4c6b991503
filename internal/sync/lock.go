package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SiteLocker serializes runs per site. Acquire blocks until the lock is held
// or ctx is done, and returns the release func.
type SiteLocker interface {
	Acquire(ctx context.Context, siteID int64) (func(), error)
}

// LocalSiteLock is the single-process locker, used when no Redis address is
// configured.
type LocalSiteLock struct {
	mu    stdsync.Mutex
	sites map[int64]*stdsync.Mutex
}

func NewLocalSiteLock() *LocalSiteLock {
	return &LocalSiteLock{sites: make(map[int64]*stdsync.Mutex)}
}

func (l *LocalSiteLock) Acquire(ctx context.Context, siteID int64) (func(), error) {
	l.mu.Lock()
	m, ok := l.sites[siteID]
	if !ok {
		m = &stdsync.Mutex{}
		l.sites[siteID] = m
	}
	l.mu.Unlock()

	locked := make(chan struct{})
	go func() {
		m.Lock()
		close(locked)
	}()
	select {
	case <-locked:
		return m.Unlock, nil
	case <-ctx.Done():
		// The goroutine will still take the mutex; hand it straight back.
		go func() {
			<-locked
			m.Unlock()
		}()
		return nil, ctx.Err()
	}
}

const (
	lockTTL       = 10 * time.Minute
	lockRetryWait = 250 * time.Millisecond
)

// compare-and-delete so an expired lock reclaimed by another runner is never
// released by us.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisSiteLock coordinates runs across processes with SET NX and a TTL. The
// TTL is a crash guard, not a lease renewal scheme; runs are expected to
// finish well inside it.
type RedisSiteLock struct {
	client *redis.Client
}

func NewRedisSiteLock(client *redis.Client) *RedisSiteLock {
	return &RedisSiteLock{client: client}
}

func (l *RedisSiteLock) key(siteID int64) string {
	return fmt.Sprintf("netmanager:sync:lock:%d", siteID)
}

func (l *RedisSiteLock) Acquire(ctx context.Context, siteID int64) (func(), error) {
	key := l.key(siteID)
	token := uuid.NewString()
	for {
		ok, err := l.client.SetNX(ctx, key, token, lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire site lock: %w", err)
		}
		if ok {
			release := func() {
				rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()
				releaseScript.Run(rctx, l.client, []string{key}, token)
			}
			return release, nil
		}
		select {
		case <-time.After(lockRetryWait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
