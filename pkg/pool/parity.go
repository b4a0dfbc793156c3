package pool

import "context"

// Task is a unit of work a pool worker executes synchronously on its own
// goroutine/thread. It never returns a value directly — callers that need a
// result close over a channel.
type Task func()

// runWorker drains primary and continuations for the lifetime of ctx,
// applying the parity rule: an even-indexed worker checks continuations
// first, an odd-indexed worker checks primary first. Checking one channel
// non-blockingly before falling through to a blocking select on both is
// what makes the preference a preference and not a starvation: whichever
// channel loses the race still gets serviced once its preferred sibling
// runs dry.
func runWorker(ctx context.Context, index int, primary, continuations <-chan Task) {
	first, second := primary, continuations
	if index%2 == 0 {
		first, second = continuations, primary
	}

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-first:
			t()
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return
		case t := <-first:
			t()
		case t := <-second:
			t()
		}
	}
}
