package queue

import (
	"sync"

	"github.com/forgeci/forge/internal/record"
)

// completionBus is spec.md's C9: publishes finished builds so that
// Enqueue's returned future can resolve. One waiter channel is created
// per build_id at Enqueue time and closed-over-send exactly once.
type completionBus struct {
	mu      sync.Mutex
	waiters map[uint64]chan record.Build
}

func newCompletionBus() *completionBus {
	return &completionBus{waiters: make(map[uint64]chan record.Build)}
}

// register must be called before the build can possibly complete (i.e.
// at Enqueue time), so Notify can never race ahead of a waiter.
func (c *completionBus) register(id uint64) <-chan record.Build {
	ch := make(chan record.Build, 1)
	c.mu.Lock()
	c.waiters[id] = ch
	c.mu.Unlock()
	return ch
}

// notify publishes b's terminal state to its registered waiter. Per
// spec.md invariant 4, this must be called only after the build has
// been removed from the in-flight registry.
func (c *completionBus) notify(b record.Build) {
	c.mu.Lock()
	ch, ok := c.waiters[b.BuildID]
	delete(c.waiters, b.BuildID)
	c.mu.Unlock()
	if ok {
		ch <- b
	}
}
