package queue

import "golang.org/x/xerrors"

// Error kinds observable to the core, per spec.md §7. All but
// ErrUnknownBuild are recorded into a Build's AccumulatedOutput/ExitCode
// rather than ever escaping the engine; ErrUnknownBuild is the single
// error GetOutput raises to its caller.
var (
	ErrBuildURLForbidden  = xerrors.New("build url forbidden")
	ErrCommitNotFound     = xerrors.New("commit not found")
	ErrWorkspaceFailure   = xerrors.New("workspace preparation failed")
	ErrScriptFetchFailure = xerrors.New("script fetch failed")
	ErrProcessLaunch      = xerrors.New("process launch failed")
	ErrUnknownBuild       = xerrors.New("unknown build")
)
