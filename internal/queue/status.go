package queue

import (
	"sort"

	"github.com/forgeci/forge/internal/record"
	"golang.org/x/xerrors"
)

// RunningBuilds returns a snapshot of every in-flight build, sorted by
// id, for the status page.
func (e *Engine) RunningBuilds() []record.Build {
	builds := e.reg.list()
	sort.Slice(builds, func(i, j int) bool { return builds[i].BuildID < builds[j].BuildID })
	return builds
}

// RunningCount reports how many builds are currently executing.
func (e *Engine) RunningCount() int {
	return e.reg.count()
}

// PendingCount reports how many submissions have not yet been admitted
// to the bounded scheduler.
func (e *Engine) PendingCount() int {
	return e.pending.len()
}

// Tail subscribes to a build's live output stream. It returns false if
// the build is not currently in-flight (already finished, or never
// existed); callers should fall back to GetOutput for a one-shot
// snapshot in that case.
func (e *Engine) Tail(id uint64) (lines <-chan string, unsubscribe func(), ok bool) {
	lb, found := e.reg.get(id)
	if !found {
		return nil, nil, false
	}
	lines, unsubscribe = lb.Output.Subscribe()
	return lines, unsubscribe, true
}

// IsUnknownBuild reports whether err wraps ErrUnknownBuild, letting
// callers outside the package distinguish "not found" from other
// failures.
func IsUnknownBuild(err error) bool {
	return xerrors.Is(err, ErrUnknownBuild)
}
