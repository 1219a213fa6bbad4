// Package process launches build scripts and other child commands,
// streaming their combined output line by line. It generalizes the
// per-step exec.Command invocations scattered across
// cmd/autobuilder/autobuilder.go and internal/batch/batch.go into a
// single reusable runner.
package process

import (
	"bufio"
	"context"
	"io"
	"os/exec"

	"golang.org/x/xerrors"
)

// Runner launches a command and reports its combined stdout/stderr one
// line at a time through onLine, returning the exit code once the
// process terminates.
type Runner interface {
	Run(ctx context.Context, dir, name string, args []string, onLine func(line string)) (exitCode int, err error)
}

// Exec is the concrete Runner backed by os/exec.
type Exec struct{}

func (Exec) Run(ctx context.Context, dir, name string, args []string, onLine func(line string)) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		return -1, xerrors.Errorf("starting %v: %w", cmd.Args, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			onLine(scanner.Text())
		}
	}()

	waitErr := cmd.Wait()
	pw.Close()
	<-done

	if waitErr == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if xerrors.As(waitErr, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, xerrors.Errorf("running %v: %w", cmd.Args, waitErr)
}
