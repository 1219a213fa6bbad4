package queue

import (
	"context"
	"fmt"

	"golang.org/x/xerrors"
)

// Output is what GetOutput resolves to: the best-available output
// snapshot and, if the build is finished, its exit code.
type Output struct {
	Text     string
	ExitCode *int
}

// GetOutput is spec.md's C10 query surface, resolving across the
// in-flight registry and the durable store per spec.md §4.7.
func (e *Engine) GetOutput(ctx context.Context, id uint64) (Output, error) {
	if lb, ok := e.reg.get(id); ok {
		b := lb.snapshot()
		return Output{Text: lb.Output.Current(), ExitCode: b.ExitCode}, nil
	}

	if _, ok, err := e.store.GetQueued(ctx, id); err != nil {
		return Output{}, xerrors.Errorf("querying build %d: %w", id, err)
	} else if ok {
		return Output{Text: fmt.Sprintf("Build queued, ID is %d", id)}, nil
	}

	if r, ok, err := e.store.GetResult(ctx, id); err != nil {
		return Output{}, xerrors.Errorf("querying build %d: %w", id, err)
	} else if ok {
		return Output{Text: r.AccumulatedOutput, ExitCode: r.ExitCode}, nil
	}

	return Output{}, xerrors.Errorf("build %d: %w", id, ErrUnknownBuild)
}
