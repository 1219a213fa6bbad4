// Package record defines the central persisted entity of the build
// queue, BuildRecord, and the request shape Enqueue accepts. It is a
// leaf package (no dependency on queue/store/workspace) so that both
// the durable store and the engine can import it without a cycle.
package record

// Request is spec.md's BuildRequest: everything a caller supplies to
// Enqueue.
type Request struct {
	RepoURL               string `json:"repo_url"`
	Commit                string `json:"commit"`
	BuildScriptURL        string `json:"build_script_url"`
	WorkspaceRootOverride string `json:"workspace_root_override,omitempty"`
}

// Build is spec.md's BuildRecord, the central persisted entity.
// ExitCode is a pointer so its absence (queued/running) is distinguishable
// from an explicit 0 (succeeded).
type Build struct {
	BuildID        uint64 `json:"build_id"`
	RepoURL        string `json:"repo_url"`
	CommitSHA1     string `json:"commit_sha1"`
	BuildScriptURL string `json:"build_script_url"`

	AccumulatedOutput string `json:"accumulated_output"`
	ExitCode          *int   `json:"exit_code,omitempty"`
}

// Succeeded reports spec.md's derived field: true iff ExitCode is
// present and zero.
func (b Build) Succeeded() bool {
	return b.ExitCode != nil && *b.ExitCode == 0
}

// Done reports whether the build has a terminal outcome.
func (b Build) Done() bool {
	return b.ExitCode != nil
}

// WithExitCode returns a copy of b with ExitCode set to code.
func (b Build) WithExitCode(code int) Build {
	b.ExitCode = &code
	return b
}

// FromRequest creates the initial queued Build for a newly-assigned id.
func FromRequest(id uint64, req Request) Build {
	return Build{
		BuildID:        id,
		RepoURL:        req.RepoURL,
		CommitSHA1:     req.Commit,
		BuildScriptURL: req.BuildScriptURL,
	}
}
