package queue

import (
	"sync"

	"github.com/forgeci/forge/internal/record"
)

// LiveBuild is spec.md's in-memory companion to a Build, existing only
// from admission to completion.
type LiveBuild struct {
	mu     sync.Mutex
	build  record.Build
	Output *Sink
}

func newLiveBuild(b record.Build) *LiveBuild {
	return &LiveBuild{build: b, Output: NewSink()}
}

func (lb *LiveBuild) snapshot() record.Build {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.build
}

func (lb *LiveBuild) finish(exitCode int, accumulated string) record.Build {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.build.AccumulatedOutput = accumulated
	lb.build = lb.build.WithExitCode(exitCode)
	return lb.build
}

// registry is spec.md's C8, the in-flight registry: a synchronized
// map of build_id -> LiveBuild, holding only map mutations under its
// lock per spec.md §5.
type registry struct {
	mu sync.Mutex
	m  map[uint64]*LiveBuild
}

func newRegistry() *registry {
	return &registry{m: make(map[uint64]*LiveBuild)}
}

func (r *registry) admit(b record.Build) *LiveBuild {
	lb := newLiveBuild(b)
	r.mu.Lock()
	r.m[b.BuildID] = lb
	r.mu.Unlock()
	return lb
}

func (r *registry) get(id uint64) (*LiveBuild, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lb, ok := r.m[id]
	return lb, ok
}

func (r *registry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, id)
}

func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.m)
}

// list returns a snapshot of every currently in-flight build, in no
// particular order.
func (r *registry) list() []record.Build {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]record.Build, 0, len(r.m))
	for _, lb := range r.m {
		out = append(out, lb.snapshot())
	}
	return out
}
