package queue

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/forgeci/forge/internal/githost"
	"github.com/forgeci/forge/internal/process"
	"github.com/forgeci/forge/internal/record"
	"github.com/forgeci/forge/internal/scriptfetch"
	"github.com/forgeci/forge/internal/workspace"
	"golang.org/x/xerrors"
)

// Executor is spec.md's C7, the build executor: the per-build state
// machine Prepared -> Workspace -> ScriptFetched -> Running -> Recorded.
// Any failure transitions directly to Recorded with a non-zero exit
// code and a diagnostic line in the output sink (spec.md §4.6).
type Executor struct {
	Provisioner   workspace.Provisioner
	Runner        process.Runner
	HTTPClient    *http.Client
	GithostClient githost.Client
	SelfOwner     string
	Creds         githost.Credentials
}

// Execute runs req to completion, publishing output to lb.Output as it
// goes, and returns the terminal record. It never returns an error:
// every failure is folded into the returned record's ExitCode/
// AccumulatedOutput, per spec.md §7.
func (e *Executor) Execute(ctx context.Context, lb *LiveBuild, req record.Request) record.Build {
	exitCode, failErr := e.run(ctx, lb, req)
	if failErr != nil {
		lb.Output.Publish(failErr.Error())
	}
	accumulated := lb.Output.Current()
	lb.Output.Close()
	return lb.finish(exitCode, accumulated)
}

func (e *Executor) run(ctx context.Context, lb *LiveBuild, req record.Request) (exitCode int, err error) {
	if err := validateBuildURL(ctx, e.GithostClient, e.SelfOwner, req.BuildScriptURL); err != nil {
		return -1, err
	}

	root := workspace.Root(req.WorkspaceRootOverride)
	dir := filepath.Join(root, workspace.DirName(req.RepoURL))

	if err := e.Provisioner.Prepare(ctx, dir, req.RepoURL, req.Commit, e.Creds); err != nil {
		if xerrors.Is(err, workspace.ErrCommitNotFound) {
			return -1, xerrors.Errorf("%w: %v", ErrCommitNotFound, err)
		}
		return -1, xerrors.Errorf("%w: %v", ErrWorkspaceFailure, err)
	}

	scriptPath, err := scriptfetch.Locate(ctx, e.HTTPClient, dir, req.RepoURL, req.BuildScriptURL, req.Commit)
	if err != nil {
		return -1, xerrors.Errorf("%w: %v", ErrScriptFetchFailure, err)
	}

	name, args := commandFor(scriptPath)
	code, runErr := e.Runner.Run(ctx, dir, name, args, lb.Output.Publish)
	if runErr != nil {
		return -1, xerrors.Errorf("%w: %v", ErrProcessLaunch, runErr)
	}
	if code != 0 {
		return code, xerrors.Errorf("build script exited %d", code)
	}
	return 0, nil
}

// commandFor chooses the child command by script extension, per
// spec.md §4.6.
func commandFor(scriptPath string) (name string, args []string) {
	switch strings.ToLower(filepath.Ext(scriptPath)) {
	case ".cmd":
		return "cmd.exe", []string{"/C", scriptPath}
	case ".ps1":
		return "powershell.exe", []string{"-ExecutionPolicy", "Unrestricted", "-NonInteractive", "-NoProfile", "-Command", scriptPath}
	default:
		return scriptPath, nil
	}
}
