package pool

// slot is the lazily evaluated wrapper a pool stores instead of raw values.
// The generator only runs on the first get, and the result is cached for
// every later get across checkouts.
//
// get deliberately has no locking. The pool hands each slot to at most one
// borrower at a time, and moving a slot through the pool's channel on
// checkout and return is a synchronized exchange, so the next borrower always
// observes the cached value and the done flag the previous one wrote.
type slot[T any] struct {
	generate func() T
	value    T
	done     bool
}

func newSlot[T any](generate func() T) *slot[T] {
	return &slot[T]{generate: generate}
}

// get returns the cached value, invoking the generator exactly once over the
// slot's lifetime.
func (s *slot[T]) get() T {
	if !s.done {
		s.value = s.generate()
		s.done = true
	}
	return s.value
}
