package queue

import (
	"context"

	"github.com/forgeci/forge/internal/record"
	"golang.org/x/sync/errgroup"
)

// admission is one item flowing through the bounded operation queue: a
// durably-queued Build plus the request data its executor needs (the
// request itself is not persisted separately; record.Build carries
// everything the executor reads except WorkspaceRootOverride, so a
// recovered build runs under the default workspace root).
type admission struct {
	build record.Build
	req   record.Request
}

// scheduler is spec.md's C6, the bounded operation queue: at most
// maxConcurrency executions outstanding, admitted FIFO at a single
// priority level. Modeled directly on internal/batch/batch.go's
// scheduler.run: N worker goroutines under an errgroup ranging over a
// work channel.
type scheduler struct {
	maxConcurrency int
	work           chan admission
	handle         func(context.Context, admission)
}

func newScheduler(maxConcurrency int, handle func(context.Context, admission)) *scheduler {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &scheduler{
		maxConcurrency: maxConcurrency,
		// Capacity maxConcurrency means a submitter blocks once that many
		// items are already admitted-or-waiting, which is the "backpressure
		// expressed only by when admission returns" spec.md §4.5 calls for.
		work:   make(chan admission, maxConcurrency),
		handle: handle,
	}
}

// submit enqueues a onto the bounded queue, blocking until there is
// room. It never drops work (spec.md §4.5).
func (s *scheduler) submit(ctx context.Context, a admission) error {
	select {
	case s.work <- a:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run starts maxConcurrency workers and blocks until ctx is canceled.
// There is no graceful drain-and-stop: shutdown is ctx cancellation
// only, matching Engine's own lifecycle (no Engine.Stop/Close).
func (s *scheduler) run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < s.maxConcurrency; i++ {
		eg.Go(func() error {
			for {
				select {
				case a := <-s.work:
					s.handle(ctx, a)
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		})
	}
	return eg.Wait()
}
