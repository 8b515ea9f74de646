package blockingpool_test

import (
	"context"
	"testing"
	"time"

	"github.com/GreatValueCreamSoda/gopool/blockingpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBlockingPoolRejectsBadCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1, -32} {
		_, err := blockingpool.NewBlockingPool[int](capacity)
		assert.Error(t, err, "capacity %d should be rejected", capacity)
	}

	_, err := blockingpool.NewBlockingPool[int](1)
	assert.NoError(t, err)
}

func TestPutThenGetKeepsOrder(t *testing.T) {
	pool, err := blockingpool.NewBlockingPool[int](3)
	require.NoError(t, err)

	pool.Put(1)
	pool.Put(2)
	pool.Put(3)

	assert.Equal(t, 3, pool.Len())
	assert.Equal(t, 3, pool.Cap())

	assert.Equal(t, 1, pool.Get())
	assert.Equal(t, 2, pool.Get())
	assert.Equal(t, 3, pool.Get())
	assert.Equal(t, 0, pool.Len())
}

func TestTryPutOnFullContainer(t *testing.T) {
	pool, err := blockingpool.NewBlockingPool[string](1)
	require.NoError(t, err)

	assert.True(t, pool.TryPut("a"))
	assert.False(t, pool.TryPut("b"), "a full container should refuse items")

	assert.Equal(t, "a", pool.Get())
	assert.True(t, pool.TryPut("b"), "space freed by Get should be usable again")
}

func TestGetBlocksUntilPut(t *testing.T) {
	pool, err := blockingpool.NewBlockingPool[int](1)
	require.NoError(t, err)

	got := make(chan int)
	go func() {
		got <- pool.Get()
	}()

	select {
	case v := <-got:
		t.Fatalf("Get returned %d from an empty container", v)
	case <-time.After(50 * time.Millisecond):
	}

	pool.Put(7)

	select {
	case v := <-got:
		assert.Equal(t, 7, v)
	case <-time.After(5 * time.Second):
		t.Fatal("Get did not wake up after Put")
	}
}

func TestGetContextHonorsCancellation(t *testing.T) {
	pool, err := blockingpool.NewBlockingPool[int](1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = pool.GetContext(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	pool.Put(9)
	v, err := pool.GetContext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, v)
}

func TestGetContextPrefersAvailableItem(t *testing.T) {
	pool, err := blockingpool.NewBlockingPool[int](1)
	require.NoError(t, err)
	pool.Put(3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v, err := pool.GetContext(ctx)
	require.NoError(t, err, "an item already in the container beats a dead context")
	assert.Equal(t, 3, v)
}
