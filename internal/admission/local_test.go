package admission

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gosocial/realtime/internal/stats"
	"github.com/gosocial/realtime/internal/testutil"
)

func TestLocalPool_AcquireRelease(t *testing.T) {
	pool := NewLocalPool(testutil.TestLogger(t), stats.NoopStats{}, 2, time.Minute)

	assert.NoError(t, pool.Acquire(context.Background(), "conn-1"))
	assert.NoError(t, pool.Acquire(context.Background(), "conn-2"))

	ids, err := pool.ActiveConnections()
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"conn-1", "conn-2"}, ids)

	ok, err := pool.IsAvailable("conn-1")
	assert.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, pool.Release("conn-1"))
	ok, err = pool.IsAvailable("conn-1")
	assert.NoError(t, err)
	assert.False(t, ok)

	// releasing an unknown id is a no-op
	assert.NoError(t, pool.Release("conn-1"))
}

func TestLocalPool_DuplicateAcquire(t *testing.T) {
	pool := NewLocalPool(testutil.TestLogger(t), stats.NoopStats{}, 2, time.Minute)

	assert.NoError(t, pool.Acquire(context.Background(), "conn-1"))
	assert.ErrorIs(t, pool.Acquire(context.Background(), "conn-1"), ErrAlreadyAcquired)

	// the failed acquire must not leak a slot
	assert.NoError(t, pool.Acquire(context.Background(), "conn-2"))
}

func TestLocalPool_AcquireBlocksAtCapacity(t *testing.T) {
	pool := NewLocalPool(testutil.TestLogger(t), stats.NoopStats{}, 1, time.Minute)

	assert.NoError(t, pool.Acquire(context.Background(), "conn-1"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pool.Acquire(ctx, "conn-2"), context.DeadlineExceeded)

	// a release unblocks the next waiter
	acquired := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		acquired <- pool.Acquire(ctx, "conn-3")
	}()

	assert.NoError(t, pool.Release("conn-1"))

	select {
	case err := <-acquired:
		assert.NoError(t, err, "expected waiter to acquire after release")
	case <-time.After(2 * time.Second):
		t.Error("timeout: waiter never acquired")
	}
}

func TestLocalPool_SweepEvictsOnlyStale(t *testing.T) {
	pool := NewLocalPool(testutil.TestLogger(t), stats.NoopStats{}, 2, time.Minute)

	assert.NoError(t, pool.Acquire(context.Background(), "stale"))
	assert.NoError(t, pool.Acquire(context.Background(), "fresh"))

	pool.mu.Lock()
	pool.conns["stale"].lastActivity = time.Now().Add(-2 * time.Minute)
	pool.mu.Unlock()

	assert.NoError(t, pool.Sweep())

	ids, err := pool.ActiveConnections()
	assert.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, ids)

	// the evicted slot is reusable
	assert.NoError(t, pool.Acquire(context.Background(), "conn-3"))
}

func TestLocalPool_UpdateActivityKeepsConnectionAlive(t *testing.T) {
	pool := NewLocalPool(testutil.TestLogger(t), stats.NoopStats{}, 1, time.Minute)

	assert.NoError(t, pool.Acquire(context.Background(), "conn-1"))

	pool.mu.Lock()
	pool.conns["conn-1"].lastActivity = time.Now().Add(-2 * time.Minute)
	pool.mu.Unlock()

	assert.NoError(t, pool.UpdateActivity("conn-1"))
	assert.NoError(t, pool.Sweep())

	ok, err := pool.IsAvailable("conn-1")
	assert.NoError(t, err)
	assert.True(t, ok, "expected refreshed connection to survive the sweep")

	// unknown ids are ignored
	assert.NoError(t, pool.UpdateActivity("unknown"))
}
