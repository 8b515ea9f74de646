package stress

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/GreatValueCreamSoda/gopool/pool"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

type ProgressCallback func(done int, total int)

// Options configures a Runner.
type Options struct {
	Capacity int // Number of slots in the pool under test.
	Workers  int // Number of concurrent borrowers.
	Ops      int // Total checkout/return cycles across all workers.

	// PayloadSize is how many bytes each constructed resource allocates, and
	// ConstructDelay how long construction pretends to take. Together they
	// make construction cost, and therefore reuse, visible in the timings.
	PayloadSize    int
	ConstructDelay time.Duration

	// Hold is how long a borrower keeps the resource on each operation.
	Hold time.Duration

	// DiscardEvery makes each worker discard its resource on every nth of
	// its own operations. Zero disables discarding.
	DiscardEvery int

	// Rate caps checkouts per second across all workers, with Burst extra
	// headroom for the underlying token bucket. A Rate of zero disables
	// limiting; a Burst below one is raised to one.
	Rate  float64
	Burst int
}

// resource is what the harness pools: a payload big enough to make
// construction observable, plus an inUse flag each borrower flips to prove
// nobody else holds the resource at the same time.
type resource struct {
	payload []byte
	inUse   atomic.Bool
}

// acquire flags the resource as held. A false return means another borrower
// holds it right now, which a correct pool makes impossible.
func (r *resource) acquire() bool { return r.inUse.CompareAndSwap(false, true) }

func (r *resource) release() { r.inUse.Store(false) }

// sample carries one finished operation's measurements to the aggregator.
type sample struct {
	// The operation index this sample belongs to.
	index int
	wait  time.Duration // Time spent blocked in checkout.
	hold  time.Duration // Time the resource was actually held.
}

// Results holds everything a finished run measured.
type Results struct {
	// Ops is the number of operations that completed and were aggregated.
	Ops int
	// Constructions counts generator invocations over the whole run. Without
	// discarding it can never exceed the pool capacity.
	Constructions int64
	// Discards counts operations that threw their resource away.
	Discards int64
	// Violations counts exclusivity breaches observed by borrowers. Anything
	// but zero means the pool handed one resource to two holders at once.
	Violations int64
	// Wait and Hold record per-operation checkout wait and hold times,
	// indexed by operation.
	Wait []time.Duration
	Hold []time.Duration
}

// Runner hammers a pool with a configurable crowd of concurrent borrowers
// and measures what happens.
//
// It feeds operation indices to the requested number of worker goroutines,
// each of which runs full checkout/use/return cycles against one shared
// pool, and aggregates per-operation measurements as the workers finish
// them.
//
// The zero value is not valid; use NewRunner to construct an instance.
type Runner struct {
	opts    Options
	pool    pool.Pool[*resource] // The pool under test.
	limiter *rate.Limiter        // Checkout admission limiter, nil when unlimited.

	// Internal channels for the pipeline stages.
	opsChan     chan int
	samplesChan chan sample

	// Counters shared by every worker.
	constructions atomic.Int64
	discards      atomic.Int64
	violations    atomic.Int64

	// results accumulates per-operation measurements. It is populated during
	// Run by the aggregation goroutine.
	results Results

	ctx context.Context

	progress ProgressCallback
}

// NewRunner validates opts and builds a Runner around a fresh pool.
//
// Construction of the Runner is cheap. The pool's resources are built lazily
// while the run is going, so even huge payload sizes cost nothing until a
// worker actually reaches an unevaluated slot.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Capacity < 1 {
		return nil, errors.New("pool capacity must be at least 1")
	}

	if opts.Workers < 1 {
		return nil, errors.New("at least 1 worker must be used")
	}

	if opts.Ops < 1 {
		return nil, errors.New("at least 1 operation must be requested")
	}

	if opts.PayloadSize < 0 {
		return nil, errors.New("payload size must not be negative")
	}

	if opts.DiscardEvery < 0 {
		return nil, errors.New("discard interval must not be negative")
	}

	if opts.Rate < 0 {
		return nil, errors.New("rate must not be negative")
	}

	var runner Runner
	runner.opts = opts

	p, err := pool.New(runner.newResource, opts.Capacity)
	if err != nil {
		return nil, err
	}
	runner.pool = p

	if opts.Rate > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		runner.limiter = rate.NewLimiter(rate.Limit(opts.Rate), burst)
	}

	runner.opsChan = make(chan int, opts.Workers)
	runner.samplesChan = make(chan sample, opts.Workers)

	runner.results.Wait = make([]time.Duration, opts.Ops)
	runner.results.Hold = make([]time.Duration, opts.Ops)

	return &runner, nil
}

// newResource is the pool's generator. It burns the configured construction
// cost and records how many times it ran.
func (r *Runner) newResource() *resource {
	if r.opts.ConstructDelay > 0 {
		time.Sleep(r.opts.ConstructDelay)
	}
	r.constructions.Add(1)
	return &resource{payload: make([]byte, r.opts.PayloadSize)}
}

// Run starts the stress pipeline.
//
// It spawns a feeder goroutine that hands out operation indices, the
// requested number of borrower workers, and a final aggregation goroutine.
// Run blocks until every operation has finished or the first failure cancels
// the remaining work.
//
// Run returns the measurements collected so far even when it fails, so a
// canceled run can still be inspected.
func (r *Runner) Run(parentCtx context.Context) (Results, error) {
	group, ctx := errgroup.WithContext(parentCtx)
	r.ctx = ctx

	group.Go(func() error {
		defer close(r.opsChan)
		return r.feedOperations()
	})

	group.Go(func() error {
		defer close(r.samplesChan)
		return r.spawnWorkerThreads()
	})

	group.Go(r.aggregateSamples)

	err := group.Wait()

	r.results.Constructions = r.constructions.Load()
	r.results.Discards = r.discards.Load()
	r.results.Violations = r.violations.Load()

	return r.results, err
}

// SetProgressCallback registers a progress callback on the Runner. It must
// be called before Run. Passing nil clears the callback.
func (r *Runner) SetProgressCallback(cb ProgressCallback) {
	r.progress = cb
}

// ----------------------------------------------------------------------------
// Feeder Thread
// ----------------------------------------------------------------------------

// feedOperations hands out one index per requested operation. Workers compete
// for them, so the pool sees as much concurrency as the worker count allows.
func (r *Runner) feedOperations() error {
	for i := 0; i < r.opts.Ops; i++ {
		select {
		case <-r.ctx.Done():
			return r.ctx.Err()
		case r.opsChan <- i:
		}
	}
	return nil
}

// ----------------------------------------------------------------------------
// Worker Threads
// ----------------------------------------------------------------------------

// spawnWorkerThreads starts Workers goroutines that each run workerThread,
// consuming operation indices and producing sample values.
//
// When the operation feed closes and the workers drain, samplesChan is
// closed.
func (r *Runner) spawnWorkerThreads() error {
	group, ctx := errgroup.WithContext(r.ctx)

	for i := 0; i < r.opts.Workers; i++ {
		group.Go(func() error { return r.workerThread(ctx) })
	}

	return group.Wait()
}

// workerThread consumes operation indices and runs one checkout/return cycle
// per index.
//
// Returns the first error encountered, which triggers context cancellation
// upstream.
func (r *Runner) workerThread(ctx context.Context) error {
	nth := 0
	for index := range withContext(ctx, r.opsChan) {
		nth++
		if err := r.runOperation(ctx, index, nth); err != nil {
			return err
		}
	}
	return nil
}

// runOperation is one full borrow: optional admission wait, checkout, an
// exclusivity check on the value, the configured hold, an optional discard,
// and the return on the way out.
func (r *Runner) runOperation(ctx context.Context, index, nth int) error {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	start := time.Now()
	item, err := r.pool.CheckoutContext(ctx)
	if err != nil {
		return err
	}
	defer item.ReturnToPool()
	wait := time.Since(start)

	res := item.Get()

	held := res.acquire()
	if !held {
		r.violations.Add(1)
	}

	if len(res.payload) > 0 {
		res.payload[0]++ // scribble on the payload while we hold it
	}

	holdStart := time.Now()
	if r.opts.Hold > 0 {
		time.Sleep(r.opts.Hold)
	}
	hold := time.Since(holdStart)

	if held {
		res.release()
	}

	if r.opts.DiscardEvery > 0 && nth%r.opts.DiscardEvery == 0 {
		item.Discard()
		r.discards.Add(1)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case r.samplesChan <- sample{index: index, wait: wait, hold: hold}:
	}
	return nil
}

// ----------------------------------------------------------------------------
// Aggregation Thread
// ----------------------------------------------------------------------------

// aggregateSamples consumes all sample values from samplesChan and records
// them into the Runner's results.
func (r *Runner) aggregateSamples() error {
	completed := 0
	for s := range withContext(r.ctx, r.samplesChan) {
		if s.index < 0 || s.index >= r.opts.Ops {
			return errors.New("aggregated index outside of requested operations")
		}
		r.results.Wait[s.index] = s.wait
		r.results.Hold[s.index] = s.hold
		completed++
		if r.progress != nil {
			r.progress(completed, r.opts.Ops)
		}
	}
	r.results.Ops = completed
	return nil
}

// withContext returns a new read-only channel that mirrors values from the
// input channel ch until either ch is closed or the provided context ctx is
// canceled. It lets pipeline stages use plain range loops while still
// honoring cancellation.
//
// The returned channel is closed when one of the following occurs:
//   - The input channel ch is closed (all values have been forwarded).
//   - The context ctx is canceled (ctx.Done() becomes readable).
func withContext[T any](ctx context.Context, ch <-chan T) <-chan T {
	out := make(chan T, 1) // buffered to avoid blocking on send

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
