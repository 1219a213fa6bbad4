package queue

import (
	"context"

	"github.com/forgeci/forge/internal/githost"
	"golang.org/x/xerrors"
)

// validateBuildURL is spec.md's C11. It is intentionally permissive:
// same-owner is accepted outright, anything else is accepted iff the
// source-hosting client reports the repository exists and is
// accessible. Tightening this is explicitly out of scope (spec.md §4.6,
// §9 open questions).
func validateBuildURL(ctx context.Context, client githost.Client, selfOwner, buildScriptURL string) error {
	owner, name, ok := githost.NWO(buildScriptURL)
	if !ok {
		return xerrors.Errorf("%s: %w", buildScriptURL, ErrBuildURLForbidden)
	}
	if owner == selfOwner {
		return nil
	}
	accessible, err := client.RepoAccessible(ctx, owner, name)
	if err != nil {
		return xerrors.Errorf("%s: %w: %v", buildScriptURL, ErrBuildURLForbidden, err)
	}
	if !accessible {
		return xerrors.Errorf("%s: %w", buildScriptURL, ErrBuildURLForbidden)
	}
	return nil
}
