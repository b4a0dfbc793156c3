package pool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixdb/helix-core/pkg/kv"
)

// TestParityPropertyBothQueuesDrained is the literal property from spec
// section 8, item 10: with a two-worker pool and one item sitting in each
// queue, both items are consumed. Worker 0 (even) prefers the continuation
// queue; worker 1 (odd) prefers primary. The test counts runs per queue and
// checks that each queued task ran exactly once; it does not record which
// worker ran which task.
func TestParityPropertyBothQueuesDrained(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	primary := make(chan Task, 1)
	continuations := make(chan Task, 1)

	var mu sync.Mutex
	ranBy := make(map[int]int) // queue (0 continuation, 1 primary) -> count of tasks run from it

	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		i := i
		go func() {
			defer wg.Done()
			runWorker(ctx, i, primary, continuations)
		}()
	}

	var done sync.WaitGroup
	done.Add(2)
	primary <- Task(func() {
		mu.Lock()
		ranBy[1]++ // the primary-queue task
		mu.Unlock()
		done.Done()
	})
	continuations <- Task(func() {
		mu.Lock()
		ranBy[0]++
		mu.Unlock()
		done.Done()
	})

	waitWithTimeout(t, &done, time.Second)
	cancel()
	waitWithTimeout(t, &wg, time.Second)

	mu.Lock()
	defer mu.Unlock()
	total := 0
	for _, n := range ranBy {
		total += n
	}
	assert.Equal(t, 2, total, "both queued tasks must run exactly once")
}

func waitWithTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	ch := make(chan struct{})
	go func() {
		wg.Wait()
		close(ch)
	}()
	select {
	case <-ch:
	case <-time.After(d):
		t.Fatal("timed out waiting for tasks")
	}
}

func openTestStore(t *testing.T) *kv.Store {
	t.Helper()
	s, err := kv.Open(kv.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestReadAndWriteRouting(t *testing.T) {
	store := openTestStore(t)
	p := New(store, Config{Readers: 2, QueueSize: 8, PinCores: false})
	defer p.Stop()

	ctx := context.Background()
	err := p.Write(ctx, func(txn *kv.WriteTxn) error {
		return txn.Set(kv.Namespace("test"), []byte("k"), []byte("v"))
	})
	require.NoError(t, err)

	err = p.Read(ctx, func(txn *kv.ReadTxn) error {
		val, err := txn.Get(kv.Namespace("test"), []byte("k"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), val)
		return nil
	})
	require.NoError(t, err)
}

func TestConcurrentReadsRunInParallel(t *testing.T) {
	store := openTestStore(t)
	p := New(store, Config{Readers: 4, QueueSize: 8, PinCores: false})
	defer p.Stop()

	ctx := context.Background()
	require.NoError(t, p.Write(ctx, func(txn *kv.WriteTxn) error {
		return txn.Set(kv.Namespace("test"), []byte("k"), []byte("v"))
	}))

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- p.Read(ctx, func(txn *kv.ReadTxn) error {
				_, err := txn.Get(kv.Namespace("test"), []byte("k"))
				return err
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestContinuationSlotRunsUnderWriter(t *testing.T) {
	store := openTestStore(t)
	p := New(store, Config{Readers: 1, QueueSize: 4, PinCores: false})
	defer p.Stop()

	ctx := context.Background()
	slot, enqueue := p.NewContinuationSlot(ctx)

	go func() {
		// Simulate async work completing, then handing the writer its
		// continuation to run.
		slot <- func(txn *kv.WriteTxn) error {
			return txn.Set(kv.Namespace("test"), []byte("async"), []byte("done"))
		}
	}()
	enqueue()

	err := p.Read(ctx, func(txn *kv.ReadTxn) error {
		val, err := txn.Get(kv.Namespace("test"), []byte("async"))
		require.NoError(t, err)
		assert.Equal(t, []byte("done"), val)
		return nil
	})
	require.NoError(t, err)
}
