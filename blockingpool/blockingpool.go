package blockingpool

import (
	"context"
	"errors"
)

// BlockingPool is a generic, channel-based container that provides blocking
// semantics for both acquiring and returning items.
//
// The container has a fixed capacity, specified at creation time. It is for
// scenarios where you want to limit the number of concurrently held resources
// and enforce strict back-pressure:
//
//   - Get() blocks until an item is available in the container, and
//     GetContext() does the same while honoring cancellation.
//   - Put() blocks until there is space in the container (i.e., the number of
//     outstanding items is below the capacity).
//
// Items travel through an internal channel, so handing an item from one
// goroutine to another through the container is a synchronized exchange: the
// receiver observes every write the previous holder made before putting the
// item back.
//
// Important characteristics:
//   - Get() will block indefinitely if the container is empty or until a new
//     item is .Put() into the container.
//   - Put() will block indefinitely if the container is at full capacity or
//     until an item is .Get() from the container. TryPut() is the
//     non-blocking variant for callers that treat a full container as a bug.
type BlockingPool[T any] struct {
	pool chan T
}

// NewBlockingPool creates a new BlockingPool with the specified capacity.
//
// The capacity determines the maximum number of items that can be "checked
// out" simultaneously (i.e., the maximum number of outstanding Get() calls
// without corresponding Put() calls). Capacities below one are rejected; a
// container that can never hold anything would make every Get() block
// forever.
func NewBlockingPool[T any](capacity int) (BlockingPool[T], error) {
	if capacity < 1 {
		return BlockingPool[T]{}, errors.New("capacity must be at least 1")
	}
	return BlockingPool[T]{pool: make(chan T, capacity)}, nil
}

// Get acquires an item from the container, blocking until one is available.
//
// The returned value is whatever was previously Put into the container. If
// the container is empty, .Get() will block indefinitely until another
// goroutine calls .Put().
//
// It is the caller's responsibility to eventually call .Put() with the
// returned item (or a replacement) to release it back to the container.
func (p *BlockingPool[T]) Get() T { return <-p.pool }

// GetContext acquires an item like Get but gives up once ctx is done,
// returning the zero value of T and the context's error.
//
// An item that is already sitting in the container is taken even when ctx was
// canceled before the call.
func (p *BlockingPool[T]) GetContext(ctx context.Context) (T, error) {
	select {
	case obj := <-p.pool:
		return obj, nil
	default:
	}

	select {
	case obj := <-p.pool:
		return obj, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Put returns an item to the container, blocking until there is space
// available.
//
// If the container is already at full capacity, .Put() will block until
// another goroutine calls .Get().
//
// After a successful Put(), the item becomes available for .Get() calls.
func (p *BlockingPool[T]) Put(obj T) { p.pool <- obj }

// TryPut returns an item to the container if there is space for it and
// reports whether the item was accepted. It never blocks.
func (p *BlockingPool[T]) TryPut(obj T) bool {
	select {
	case p.pool <- obj:
		return true
	default:
		return false
	}
}

// Len reports how many items are currently sitting in the container.
func (p *BlockingPool[T]) Len() int { return len(p.pool) }

// Cap reports the fixed capacity the container was created with.
func (p *BlockingPool[T]) Cap() int { return cap(p.pool) }
