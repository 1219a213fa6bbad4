// Package queue implements the persistent build queue engine described
// by spec.md: durable submission, bounded-concurrency scheduling, the
// per-build execution state machine, live/finished output retrieval,
// and crash recovery.
package queue

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/forgeci/forge/internal/record"
	"github.com/forgeci/forge/internal/store"
	"golang.org/x/xerrors"
)

// Future is what Enqueue returns: a handle resolving to the completed
// Build once it finishes. Per spec.md §6, the future never fails on
// account of the build itself; Wait only returns an error if ctx is
// canceled first.
type Future struct {
	id uint64
	ch <-chan record.Build
}

func (f *Future) BuildID() uint64 { return f.id }

func (f *Future) Wait(ctx context.Context) (record.Build, error) {
	select {
	case b := <-f.ch:
		return b, nil
	case <-ctx.Done():
		return record.Build{}, ctx.Err()
	}
}

// Engine ties together C1-C11. One Engine serves one logical queue
// (one Redis keyspace / cache).
type Engine struct {
	Log *log.Logger

	store       *store.RecordStore
	ids         *idAllocator
	reg         *registry
	completions *completionBus
	sched       *scheduler
	pending     *pendingQueue
	executor    *Executor
	logDir      string
}

// Config configures a new Engine.
type Config struct {
	Store          *store.RecordStore
	Executor       *Executor
	MaxConcurrency int
	Log            *log.Logger

	// LogDir, if set, is where each completed build's combined output is
	// persisted as "<build_id>.log" (spec.md §6's served log archive).
	// Empty disables persistence.
	LogDir string
}

func New(cfg Config) *Engine {
	e := &Engine{
		Log:         cfg.Log,
		store:       cfg.Store,
		reg:         newRegistry(),
		completions: newCompletionBus(),
		pending:     newPendingQueue(),
		executor:    cfg.Executor,
		logDir:      cfg.LogDir,
	}
	if e.Log == nil {
		e.Log = log.Default()
	}
	e.sched = newScheduler(cfg.MaxConcurrency, e.handle)
	return e
}

// Start seeds the id allocator from the durable store, then begins
// draining recovered queued records ahead of any new submission
// (spec.md §4.4), and finally runs the bounded scheduler. Start returns
// once the id allocator is seeded; recovery and execution continue in
// the background for the lifetime of ctx.
func (e *Engine) Start(ctx context.Context) error {
	maxID, found, err := e.store.MaxID(ctx)
	if err != nil {
		return xerrors.Errorf("seeding id allocator: %w", err)
	}
	e.ids = newIDAllocator(maxID, found)

	recovered, err := e.store.ListQueued(ctx)
	if err != nil {
		return xerrors.Errorf("listing recovered builds: %w", err)
	}

	go func() {
		if err := e.sched.run(ctx); err != nil && ctx.Err() == nil {
			e.Log.Printf("scheduler: %v", err)
		}
	}()

	go e.intake(ctx, recovered)

	return nil
}

// intake is spec.md's C5: splice recovered records ahead of live
// submissions, preserving ascending id order for the former and
// submission order for the latter, feeding both into the bounded
// queue.
func (e *Engine) intake(ctx context.Context, recovered []record.Build) {
	for _, b := range recovered {
		// A crash between put_result and invalidate_queued (spec.md §4.6's
		// ordering rationale, §9) can leave both keys present for the same
		// id. result/<id> is authoritative: skip re-running it and clean
		// up the stale queued entry instead of redoing finished work.
		if _, found, err := e.store.GetResult(ctx, b.BuildID); err != nil {
			e.Log.Printf("build %d: checking for orphaned queued record: %v", b.BuildID, err)
		} else if found {
			if err := e.store.InvalidateQueued(ctx, b.BuildID); err != nil {
				e.Log.Printf("build %d: cleaning stale queued record: %v", b.BuildID, err)
			}
			continue
		}

		a := admission{build: b, req: requestFor(b)}
		if err := e.sched.submit(ctx, a); err != nil {
			return
		}
	}

	for {
		for _, a := range e.pending.drain() {
			if err := e.sched.submit(ctx, a); err != nil {
				return
			}
		}
		select {
		case <-e.pending.notify:
		case <-ctx.Done():
			return
		}
	}
}

// persistLog writes result's combined output to logDir/<id>.log so
// GET /logs/<id>.log can serve it, mirroring autobuilder's
// os.Create(logDir, "stdout.log"). A failure here only logs; it never
// blocks the build from being recorded.
func (e *Engine) persistLog(result record.Build) {
	if e.logDir == "" {
		return
	}
	path := filepath.Join(e.logDir, fmt.Sprintf("%d.log", result.BuildID))
	f, err := os.Create(path)
	if err != nil {
		e.Log.Printf("build %d: creating log file: %v", result.BuildID, err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(result.AccumulatedOutput); err != nil {
		e.Log.Printf("build %d: writing log file: %v", result.BuildID, err)
	}
}

func requestFor(b record.Build) record.Request {
	return record.Request{
		RepoURL:        b.RepoURL,
		Commit:         b.CommitSHA1,
		BuildScriptURL: b.BuildScriptURL,
	}
}

// Enqueue is spec.md's intake operation (C4). It allocates a build_id,
// durably writes queued/<id> before returning (spec.md §5: "A build's
// put_queued completes-before it can be admitted"), and hands the
// request to the live half of the intake stream.
func (e *Engine) Enqueue(ctx context.Context, req record.Request) (*Future, error) {
	id := e.ids.allocate()
	b := record.FromRequest(id, req)

	if err := e.store.PutQueued(ctx, b); err != nil {
		return nil, xerrors.Errorf("enqueueing build %d: %w", id, err)
	}

	ch := e.completions.register(id)
	e.pending.push(admission{build: b, req: req})

	return &Future{id: id, ch: ch}, nil
}

// handle runs one admitted build end to end and performs the two-phase
// recording transition of spec.md §4.6/invariant 1: put_result before
// invalidate_queued, both before the build leaves the in-flight
// registry, which happens before the completion bus fires.
func (e *Engine) handle(ctx context.Context, a admission) {
	lb := e.reg.admit(a.build)

	result := e.executor.Execute(ctx, lb, a.req)

	e.persistLog(result)

	if err := e.store.PutResult(ctx, result); err != nil {
		e.Log.Printf("build %d: persisting result: %v", result.BuildID, err)
	}
	if err := e.store.InvalidateQueued(ctx, result.BuildID); err != nil {
		e.Log.Printf("build %d: invalidating queued record: %v", result.BuildID, err)
	}
	e.reg.remove(result.BuildID)
	e.completions.notify(result)
}
