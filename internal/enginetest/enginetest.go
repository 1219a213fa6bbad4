// Package enginetest provides fakes for the engine's external
// collaborators (githost, workspace, process), the way
// internal/distritest provided test doubles for distri's export
// command. Tests in internal/queue use these instead of touching a real
// git binary, GitHub, or Redis.
package enginetest

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/forgeci/forge/internal/githost"
)

// MemCache is an in-memory store.Cache, standing in for Redis in engine
// tests that don't need to exercise the real durable-store wiring
// (internal/store/rediscache has its own tests against miniredis for
// that).
type MemCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func NewMemCache() *MemCache {
	return &MemCache{m: make(map[string][]byte)}
}

func (c *MemCache) Put(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	c.m[key] = cp
	return nil
}

func (c *MemCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *MemCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
	return nil
}

func (c *MemCache) List(ctx context.Context, prefix string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for k := range c.m {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

// Provisioner is a workspace.Provisioner that just creates the
// workspace directory; it never actually clones anything, since the
// fake process.Runner below never reads the checked-out tree either.
type Provisioner struct {
	Err error
}

func (p Provisioner) Prepare(ctx context.Context, dir, repoURL, commit string, creds githost.Credentials) error {
	if p.Err != nil {
		return p.Err
	}
	return os.MkdirAll(dir, 0755)
}

// Runner is a process.Runner whose behavior is supplied by the test via
// Fn. It ignores the command name/args entirely (there is no real
// script on disk in these tests), which mirrors how the teacher's own
// internal/distritest.Export stands in for a real distri binary.
type Runner struct {
	Fn func(dir string, onLine func(string)) (exitCode int, err error)
}

func (r Runner) Run(ctx context.Context, dir, name string, args []string, onLine func(string)) (int, error) {
	return r.Fn(dir, onLine)
}

// Githost is a githost.Client that always reports repos as accessible
// unless Denied is set.
type Githost struct {
	Denied bool
}

func (g Githost) RepoAccessible(ctx context.Context, owner, name string) (bool, error) {
	return !g.Denied, nil
}
