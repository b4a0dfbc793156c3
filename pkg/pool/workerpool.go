// Package pool implements the concurrency layer that sits in front of the
// storage core: a fixed pool of OS-thread-backed workers routes blocking
// read and write transactions, plus async-dispatch continuations, using a
// parity scheduling rule that guarantees neither a pool's request queue nor
// its continuation queue starves the other.
//
// The storage core itself (kv, graph, vector, bm25, traversal) is
// synchronous — it has no suspension points of its own. This package is
// where callers get their concurrency: N_R reader workers run read
// transactions concurrently, one writer worker serializes writes, and every
// worker pins itself to a CPU core so the OS scheduler isn't left to guess.
package pool

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/helixdb/helix-core/pkg/kv"
)

// Config controls pool sizing. Defaults mirror spec section 4.5: enough
// readers to keep MVCC snapshot reads concurrent, one writer, bounded
// queues so a slow caller applies backpressure rather than growing memory
// without limit.
type Config struct {
	// Readers is N_R, the number of reader worker threads.
	Readers int
	// QueueSize bounds the read queue, the write queue, and the shared
	// continuation queue.
	QueueSize int
	// PinCores pins each worker's OS thread to CPU (index mod NumCPU).
	// Disabled automatically falls back to leaving scheduling to the Go
	// runtime, useful in containers with a fractional CPU quota where
	// pinning to a specific core number is meaningless.
	PinCores bool
}

// DefaultConfig returns a reasonable pool shape for a single-process
// embedding of the store: four readers, one writer, core pinning on.
func DefaultConfig() Config {
	return Config{Readers: 4, QueueSize: 256, PinCores: true}
}

// Pool is the worker pool serving the blocking traversal API to external
// callers. It owns no storage state of its own — every request closes over
// a *kv.Store and the transaction kind (read or write) decides which queue
// it lands on.
type Pool struct {
	store *kv.Store

	readQueue     chan Task
	writeQueue    chan Task
	continuations chan Task

	nextIndex atomic.Int64
	numCores  int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New starts cfg.Readers reader workers and one writer worker, all pulling
// from bounded queues, and returns the running Pool. Call Stop to drain and
// shut it down.
func New(store *kv.Store, cfg Config) *Pool {
	if cfg.Readers <= 0 {
		cfg.Readers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		store:         store,
		readQueue:     make(chan Task, cfg.QueueSize),
		writeQueue:    make(chan Task, cfg.QueueSize),
		continuations: make(chan Task, cfg.QueueSize),
		numCores:      runtime.NumCPU(),
		cancel:        cancel,
	}

	for i := 0; i < cfg.Readers; i++ {
		p.spawn(ctx, p.readQueue, cfg.PinCores)
	}
	p.spawn(ctx, p.writeQueue, cfg.PinCores)

	return p
}

// spawn allocates the next worker index atomically — the same index both
// decides this worker's parity (primary-vs-continuation preference) and its
// pinned core (index mod numCores), per spec section 4.5.
func (p *Pool) spawn(ctx context.Context, primary chan Task, pin bool) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		idx := int(p.nextIndex.Add(1) - 1)
		if pin {
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
			_ = pinToCPU(idx % p.numCores)
		}
		runWorker(ctx, idx, primary, p.continuations)
	}()
}

// Stop cancels every worker and waits for them to exit. Pending queued
// tasks that never ran are abandoned; callers blocked in Read/Write receive
// no response and must have their own cancellation (a context passed by the
// caller above this layer) to avoid hanging forever.
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()
}

// Read submits fn to the reader pool and blocks until it has run inside a
// read transaction. Multiple Read calls execute concurrently, one per
// reader worker, each against its own MVCC snapshot.
func (p *Pool) Read(ctx context.Context, fn func(*kv.ReadTxn) error) error {
	done := make(chan error, 1)
	task := Task(func() { done <- p.store.View(fn) })

	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.readQueue <- task:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Write submits fn to the writer and blocks until it has run inside the
// store's single serialized write transaction.
func (p *Pool) Write(ctx context.Context, fn func(*kv.WriteTxn) error) error {
	done := make(chan error, 1)
	task := Task(func() { done <- p.store.Update(fn) })

	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.writeQueue <- task:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Continuation is work that must resume under the writer after a write
// handler has kicked off async work elsewhere (outside this core — e.g. an
// embedding call in the gateway layer). The continuation channel it is
// submitted through is bounded(1): exactly one continuation per originating
// request, so a slow consumer backpressures that request's caller alone
// rather than the whole writer.
type Continuation func(*kv.WriteTxn) error

// NewContinuationSlot returns a fresh bounded(1) channel for one write
// request's eventual continuation, and the function that enqueues it onto
// the pool's shared continuation queue once the async work completes. Every
// worker polls that queue against its own primary queue with the parity
// rule, and the continuation runs inside a Store.Update write transaction,
// so it is serialized with the writer's own writes.
func (p *Pool) NewContinuationSlot(ctx context.Context) (slot chan Continuation, enqueue func()) {
	slot = make(chan Continuation, 1)
	enqueue = func() {
		select {
		case cont, ok := <-slot:
			if !ok {
				return
			}
			done := make(chan error, 1)
			task := Task(func() { done <- p.store.Update(cont) })
			select {
			case <-ctx.Done():
			case p.continuations <- task:
				<-done
			}
		case <-ctx.Done():
		}
	}
	return slot, enqueue
}
