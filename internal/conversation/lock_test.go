package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLock(t *testing.T) (*ContactLock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewContactLock(client, time.Minute), mr
}

func TestContactLockAcquireRelease(t *testing.T) {
	lock, _ := newTestLock(t)
	ctx := context.Background()

	release, ok, err := lock.Acquire(ctx, "5511999990000")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, release)

	// Contended while held.
	_, ok, err = lock.Acquire(ctx, "5511999990000")
	require.NoError(t, err)
	assert.False(t, ok)

	// A different contact is unaffected.
	release2, ok, err := lock.Acquire(ctx, "5511888880000")
	require.NoError(t, err)
	assert.True(t, ok)
	release2()

	release()
	_, ok, err = lock.Acquire(ctx, "5511999990000")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestContactLockReleaseOnlyOwnLease(t *testing.T) {
	lock, mr := newTestLock(t)
	ctx := context.Background()

	release, ok, err := lock.Acquire(ctx, "5511999990000")
	require.NoError(t, err)
	require.True(t, ok)

	// Simulate expiry plus takeover by another worker.
	mr.FastForward(2 * time.Minute)
	release2, ok, err := lock.Acquire(ctx, "5511999990000")
	require.NoError(t, err)
	require.True(t, ok)

	// The stale holder's release must not evict the new owner.
	release()
	_, ok, err = lock.Acquire(ctx, "5511999990000")
	require.NoError(t, err)
	assert.False(t, ok)

	release2()
}

func TestContactLockAcquireWaitTimesOut(t *testing.T) {
	lock, _ := newTestLock(t)
	ctx := context.Background()

	release, ok, err := lock.Acquire(ctx, "5511999990000")
	require.NoError(t, err)
	require.True(t, ok)
	defer release()

	start := time.Now()
	_, ok, err = lock.AcquireWait(ctx, "5511999990000", 120*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}
