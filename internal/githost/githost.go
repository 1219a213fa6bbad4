// Package githost talks to the source-hosting service that owns the
// repositories the queue builds. It is intentionally small: the core
// engine only ever asks "does owner/name exist and can I read it", and
// "what credentials do I clone with".
package githost

import (
	"context"
	"net/url"
	"strings"

	"github.com/google/go-github/v27/github"
	"golang.org/x/oauth2"
	"golang.org/x/xerrors"
)

// Credentials carries the secret used both to authenticate API calls and
// to authenticate git operations against the same host. It is never
// logged and never persisted as part of a BuildRecord.
type Credentials struct {
	// Token is an OAuth2 access token (e.g. a GitHub personal access
	// token or installation token).
	Token string
}

// CloneURL rewrites repoURL to embed creds as HTTP basic auth, the form
// git(1) accepts for token-authenticated HTTPS clones.
func (c Credentials) CloneURL(repoURL string) (string, error) {
	u, err := url.Parse(repoURL)
	if err != nil {
		return "", xerrors.Errorf("parsing repo url: %w", err)
	}
	if c.Token == "" {
		return u.String(), nil
	}
	u.User = url.UserPassword("x-access-token", c.Token)
	return u.String(), nil
}

// NWO splits a source-hosting URL into (owner, name). It understands
// plain repository URLs (https://github.com/owner/name) as well as
// blob/raw URLs (https://github.com/owner/name/blob/master/path/to/file).
func NWO(rawurl string) (owner, name string, ok bool) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), true
}

// Client is the capability the core consumes from the source-hosting
// service: existence/accessibility checks used by the build-URL
// validator (spec.md C11).
type Client interface {
	RepoAccessible(ctx context.Context, owner, name string) (bool, error)
}

// githubClient implements Client against the real GitHub API, the way
// cmd/autobuilder/autobuilder.go constructs its github.Client: an
// oauth2 static token source feeding github.NewClient.
type githubClient struct {
	gh *github.Client
}

// NewClient builds a Client authenticated with creds. An empty token is
// valid and yields an unauthenticated (rate-limited) client, sufficient
// for public-repository checks.
func NewClient(ctx context.Context, creds Credentials) Client {
	var hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: creds.Token},
	))
	return &githubClient{gh: github.NewClient(hc)}
}

func (c *githubClient) RepoAccessible(ctx context.Context, owner, name string) (bool, error) {
	_, resp, err := c.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return false, nil
		}
		return false, xerrors.Errorf("checking %s/%s: %w", owner, name, err)
	}
	return true, nil
}
