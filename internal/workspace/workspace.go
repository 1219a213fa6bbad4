// Package workspace prepares the on-disk checkout a build executes
// against. It generalizes the inline clone/reset logic in
// cmd/autobuilder/autobuilder.go's runCommit from a single hardcoded
// repository to an arbitrary repo_url/commit pair.
package workspace

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/forgeci/forge/internal/githost"
	"github.com/forgeci/forge/internal/process"
	"github.com/google/renameio"
	"golang.org/x/xerrors"
)

// ErrCommitNotFound is returned when commit cannot be resolved in the
// checked-out repository, even after a fetch.
var ErrCommitNotFound = xerrors.New("commit not found")

// Provisioner is the capability spec.md calls WorkspaceProvisioner:
// "prepare directory D to hold the tree at commit C of repo R, using
// credentials K".
type Provisioner interface {
	Prepare(ctx context.Context, dir, repoURL, commit string, creds githost.Credentials) error
}

// DirName returns the workspace directory name for repoURL, per spec.md
// §6: "Build_<hex sha1 of repo_url>".
func DirName(repoURL string) string {
	sum := sha1.Sum([]byte(repoURL))
	return "Build_" + hex.EncodeToString(sum[:])
}

// Root resolves the workspace root directory, honoring spec.md §6's
// precedence: explicit override, then $PEASANT_BUILD_DIR, then the OS
// temp directory.
func Root(override string) string {
	if override != "" {
		return override
	}
	if env := os.Getenv("PEASANT_BUILD_DIR"); env != "" {
		return env
	}
	return os.TempDir()
}

// Git is the sole Provisioner implementation, shelling out to the git
// binary the way the teacher's autobuilder and batch scheduler shell out
// to distri/make/sh — via a process.Runner rather than bare os/exec, so
// it can be faked in tests.
type Git struct {
	Runner process.Runner
}

func (g Git) run(ctx context.Context, dir string, args ...string) error {
	var lastLine string
	code, err := g.Runner.Run(ctx, dir, "git", args, func(line string) { lastLine = line })
	if err != nil {
		return xerrors.Errorf("git %v: %w", args, err)
	}
	if code != 0 {
		return xerrors.Errorf("git %v: exit %d: %s", args, code, lastLine)
	}
	return nil
}

func (g Git) Prepare(ctx context.Context, dir, repoURL, commit string, creds githost.Credentials) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return xerrors.Errorf("creating workspace %s: %w", dir, err)
	}

	cloneURL, err := creds.CloneURL(repoURL)
	if err != nil {
		return xerrors.Errorf("preparing clone url: %w", err)
	}

	gitDir := filepath.Join(dir, ".git")
	if _, err := os.Stat(gitDir); err == nil {
		if err := g.run(ctx, dir, "fetch", "origin"); err != nil {
			return xerrors.Errorf("fetching %s: %w", repoURL, err)
		}
	} else {
		// `git clone <url> .` requires an empty target, which dir may not be
		// on a retried build, so any leftover contents are removed first.
		entries, err := ioutil.ReadDir(dir)
		if err != nil {
			return xerrors.Errorf("reading workspace %s: %w", dir, err)
		}
		if len(entries) > 0 {
			if err := removeContents(dir); err != nil {
				return xerrors.Errorf("clearing stale workspace %s: %w", dir, err)
			}
		}
		if err := g.run(ctx, dir, "clone", cloneURL, "."); err != nil {
			return xerrors.Errorf("cloning %s: %w", repoURL, err)
		}
	}

	if err := g.run(ctx, dir, "rev-parse", "--verify", commit+"^{commit}"); err != nil {
		return xerrors.Errorf("%w: %v", ErrCommitNotFound, err)
	}

	if err := g.run(ctx, dir, "reset", "--hard", commit); err != nil {
		return xerrors.Errorf("resetting to %s: %w", commit, err)
	}

	if err := g.cleanPreservingGitignore(ctx, dir); err != nil {
		return xerrors.Errorf("cleaning workspace: %w", err)
	}

	return nil
}

// cleanPreservingGitignore implements spec.md §4.6 step 4: `git clean`
// honors .gitignore, which would otherwise leave stale generated files
// in place across builds. If .gitignore exists, it is read, deleted,
// the tree cleaned unconditionally, then restored byte-for-byte.
func (g Git) cleanPreservingGitignore(ctx context.Context, dir string) error {
	gitignore := filepath.Join(dir, ".gitignore")
	contents, err := ioutil.ReadFile(gitignore)
	if os.IsNotExist(err) {
		return g.run(ctx, dir, "clean", "-fdx")
	}
	if err != nil {
		return xerrors.Errorf("reading .gitignore: %w", err)
	}

	if err := os.Remove(gitignore); err != nil {
		return xerrors.Errorf("removing .gitignore: %w", err)
	}
	if err := g.run(ctx, dir, "clean", "-fdx"); err != nil {
		return err
	}
	if err := renameio.WriteFile(gitignore, contents, 0644); err != nil {
		return xerrors.Errorf("restoring .gitignore: %w", err)
	}
	return nil
}

func removeContents(dir string) error {
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
