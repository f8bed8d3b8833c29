package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease only when the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// ContactLock serializes conversation processing per contact key using a
// short Redis lease. It is an optimization on top of the store's version
// check, not a correctness requirement: when the lease cannot be acquired the
// caller may proceed and rely on ErrVersionConflict.
type ContactLock struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewContactLock creates a lease manager with the given lease duration.
func NewContactLock(client *redis.Client, ttl time.Duration) *ContactLock {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &ContactLock{redis: client, ttl: ttl}
}

func leaseKey(contactKey string) string {
	return "lease:contact:" + contactKey
}

// Acquire attempts to take the lease for a contact. On success it returns a
// release func; on contention it returns ok=false and a nil release.
func (l *ContactLock) Acquire(ctx context.Context, contactKey string) (release func(), ok bool, err error) {
	token := uuid.NewString()
	key := leaseKey(contactKey)

	acquired, err := l.redis.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("conversation: failed to acquire contact lease: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}

	release = func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.redis, []string{key}, token).Err()
	}
	return release, true, nil
}

// AcquireWait retries Acquire until the lease is taken, maxWait elapses, or
// ctx is done. The boolean reports whether the lease was actually acquired.
func (l *ContactLock) AcquireWait(ctx context.Context, contactKey string, maxWait time.Duration) (func(), bool, error) {
	deadline := time.Now().Add(maxWait)
	for {
		release, ok, err := l.Acquire(ctx, contactKey)
		if err != nil || ok {
			return release, ok, err
		}
		if time.Now().After(deadline) {
			return nil, false, nil
		}
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}
