package pool

// Borrowed is the handle for one checked out slot. It is the only way to
// reach a pooled value, and holding it is what guarantees exclusive access:
// the pool cannot hand the underlying slot to anyone else until the handle
// goes back via ReturnToPool.
//
// A handle belongs to the borrower that created it and is not safe for
// concurrent use. Once returned it is dead; Get, Discard and ReturnToPool all
// panic on a returned handle, since using a value after giving it back is the
// exact bug this type exists to prevent.
type Borrowed[T any] struct {
	pool *Pool[T]
	slot *slot[T]
	// discarded defers the actual slot replacement to ReturnToPool, so a
	// discarded handle keeps working until it is given back.
	discarded bool
	returned  bool
}

// Get returns the slot's value, constructing it on first use. The same value
// comes back on every later Get, across checkouts, until the slot is
// discarded.
//
// After Discard, Get still returns the old cached value; the replacement only
// exists once the handle is returned.
func (b *Borrowed[T]) Get() T {
	if b.returned {
		panic("pool: Get on an item already returned to the pool")
	}
	return b.slot.get()
}

// Discard marks the slot as spent, which makes ReturnToPool enqueue a fresh
// unevaluated slot in its place instead of recycling it. Use it when the
// value is known to be broken, for example a wedged connection or a handle
// poisoned by a failed operation.
//
// Discard does not touch the pool and never invokes the generator; the
// replacement slot stays unevaluated until its own first Get. Calling Discard
// more than once on the same handle is a no-op.
func (b *Borrowed[T]) Discard() {
	if b.returned {
		panic("pool: Discard on an item already returned to the pool")
	}
	b.discarded = true
}

// ReturnToPool gives the slot back and kills the handle. Exactly one call is
// required per checkout: forgetting it leaks the slot and permanently shrinks
// the pool, while a second call panics.
func (b *Borrowed[T]) ReturnToPool() {
	if b.returned {
		panic("pool: item returned to the pool twice")
	}
	b.returned = true

	if b.discarded {
		b.pool.put(newSlot(b.pool.generate))
		return
	}
	b.pool.put(b.slot)
}
