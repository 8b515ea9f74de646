package pool

import (
	"context"
	"errors"
	"fmt"

	"github.com/GreatValueCreamSoda/gopool/blockingpool"
)

// Pool is a fixed-size pool of lazily constructed values for resources that
// are expensive to build and unsafe to share, such as database handles,
// parsers with internal scratch state, or native library contexts.
//
// The pool starts with poolSize unevaluated slots. A value is only
// constructed the first time a borrower calls Get on a checked out slot, and
// from then on the same value is recycled across checkouts until somebody
// discards it. The pool never constructs more than poolSize live values, and
// a value is held by at most one borrower at a time: Checkout blocks while
// every slot is out, so the pool also acts as a concurrency limiter.
//
// All methods are safe for concurrent use. The values themselves are only
// touched by whoever holds the corresponding Borrowed handle.
type Pool[T any] struct {
	// generate builds one value. It is kept around so discarded slots can be
	// replaced with fresh unevaluated ones.
	generate func() T
	// items holds the slots that are not currently checked out. Checked out
	// slots plus items.Len() always add up to the pool size.
	items blockingpool.BlockingPool[*slot[T]]
}

// New creates a pool of poolSize slots backed by the generate function.
//
// Construction is cheap: no value is built here, and generate is not called
// until a borrower first uses a slot. generate must be safe to call from
// whichever goroutine happens to trigger that first use.
func New[T any](generate func() T, poolSize int) (Pool[T], error) {
	var p Pool[T]

	if generate == nil {
		return p, errors.New("generate must be non nil")
	}

	items, err := blockingpool.NewBlockingPool[*slot[T]](poolSize)
	if err != nil {
		return p, fmt.Errorf("pool size is invalid: %w", err)
	}

	p.generate = generate
	p.items = items

	for i := 0; i < poolSize; i++ {
		p.items.Put(newSlot(generate))
	}

	return p, nil
}

// Checkout removes one slot from the pool and wraps it in a Borrowed handle.
// It blocks, possibly forever, while all slots are checked out; use
// CheckoutContext to bound the wait.
//
// Every handle must be given back with exactly one ReturnToPool call,
// otherwise the slot it carries is lost and the pool shrinks for everyone.
func (p *Pool[T]) Checkout() *Borrowed[T] {
	return &Borrowed[T]{pool: p, slot: p.items.Get()}
}

// CheckoutContext is Checkout with a deadline: it gives up and returns the
// context's error once ctx is done. No slot is consumed on failure.
func (p *Pool[T]) CheckoutContext(ctx context.Context) (*Borrowed[T], error) {
	s, err := p.items.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("pool checkout: %w", err)
	}
	return &Borrowed[T]{pool: p, slot: s}, nil
}

// With runs fn with a freshly checked out handle and returns the handle to
// the pool on every exit path, including a panic inside fn. It reports fn's
// error unchanged.
//
// fn must not call ReturnToPool on the handle itself and must not keep the
// handle, or anything reached through Get, beyond its own return.
func (p *Pool[T]) With(fn func(*Borrowed[T]) error) error {
	item := p.Checkout()
	defer item.ReturnToPool()
	return fn(item)
}

// WithContext is With using CheckoutContext for the acquisition. When the
// checkout fails fn never runs.
func (p *Pool[T]) WithContext(ctx context.Context, fn func(*Borrowed[T]) error) error {
	item, err := p.CheckoutContext(ctx)
	if err != nil {
		return err
	}
	defer item.ReturnToPool()
	return fn(item)
}

// Available reports how many slots are currently checked in. The answer can
// be stale by the time the caller looks at it; it is a progress indicator,
// not a reservation.
func (p *Pool[T]) Available() int { return p.items.Len() }

// Capacity reports the pool size given to New.
func (p *Pool[T]) Capacity() int { return p.items.Cap() }

// put re-inserts a slot. The pool always has room for one of its own slots,
// so a full container here means more returns than checkouts happened and the
// pool's accounting is broken beyond repair.
func (p *Pool[T]) put(s *slot[T]) {
	if !p.items.TryPut(s) {
		panic("pool: more items returned than were checked out")
	}
}
