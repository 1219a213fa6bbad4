package workspace

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/forgeci/forge/internal/githost"
	"golang.org/x/xerrors"
)

// fakeRunner records invocations and lets the test script canned
// results per git subcommand, avoiding any real git(1) invocation.
type fakeRunner struct {
	results map[string]int // argv[0] of the git subcommand -> exit code
	calls   []string
}

func (f *fakeRunner) Run(ctx context.Context, dir, name string, args []string, onLine func(string)) (int, error) {
	f.calls = append(f.calls, args[0])
	if code, ok := f.results[args[0]]; ok {
		return code, nil
	}
	return 0, nil
}

func TestDirNameIsDeterministic(t *testing.T) {
	a := DirName("https://github.com/acme/widgets")
	b := DirName("https://github.com/acme/widgets")
	if a != b {
		t.Fatalf("DirName is not deterministic: %q != %q", a, b)
	}
	if DirName("https://github.com/acme/other") == a {
		t.Fatal("DirName collided for distinct repo URLs")
	}
}

func TestRootPrecedence(t *testing.T) {
	if got := Root("/explicit"); got != "/explicit" {
		t.Fatalf("explicit override ignored: %q", got)
	}
	t.Setenv("PEASANT_BUILD_DIR", "/from-env")
	if got := Root(""); got != "/from-env" {
		t.Fatalf("env var ignored: %q", got)
	}
}

func TestPrepareCommitNotFound(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{results: map[string]int{"rev-parse": 1}}
	g := Git{Runner: runner}
	err := g.Prepare(context.Background(), dir, "https://github.com/acme/widgets", "bogus", githost.Credentials{})
	if !xerrors.Is(err, ErrCommitNotFound) {
		t.Fatalf("expected ErrCommitNotFound, got %v", err)
	}
}

func TestCleanPreservingGitignore(t *testing.T) {
	dir := t.TempDir()
	gitignore := filepath.Join(dir, ".gitignore")
	contents := []byte("*.o\nbuild/\n")
	if err := ioutil.WriteFile(gitignore, contents, 0644); err != nil {
		t.Fatal(err)
	}

	runner := &fakeRunner{}
	g := Git{Runner: runner}
	if err := g.cleanPreservingGitignore(context.Background(), dir); err != nil {
		t.Fatalf("cleanPreservingGitignore: %v", err)
	}

	got, err := ioutil.ReadFile(gitignore)
	if err != nil {
		t.Fatalf(".gitignore was not restored: %v", err)
	}
	if string(got) != string(contents) {
		t.Fatalf("restored .gitignore contents differ: got %q, want %q", got, contents)
	}

	foundClean := false
	for _, c := range runner.calls {
		if c == "clean" {
			foundClean = true
		}
	}
	if !foundClean {
		t.Fatal("expected a git clean invocation")
	}
}

func TestCleanPreservingGitignoreWithoutGitignore(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{}
	g := Git{Runner: runner}
	if err := g.cleanPreservingGitignore(context.Background(), dir); err != nil {
		t.Fatalf("cleanPreservingGitignore: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".gitignore")); !os.IsNotExist(err) {
		t.Fatal("expected no .gitignore to be created")
	}
}
