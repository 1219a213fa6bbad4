package queue

import (
	"context"
	"testing"

	"github.com/forgeci/forge/internal/enginetest"
	"golang.org/x/xerrors"
)

func TestValidateBuildURLSameOwnerAlwaysAccepted(t *testing.T) {
	err := validateBuildURL(context.Background(), enginetest.Githost{Denied: true}, "acme",
		"https://github.com/acme/widgets/blob/master/build.sh")
	if err != nil {
		t.Fatalf("expected same-owner URL to be accepted regardless of client, got %v", err)
	}
}

func TestValidateBuildURLOtherOwnerConsultsClient(t *testing.T) {
	err := validateBuildURL(context.Background(), enginetest.Githost{Denied: false}, "acme",
		"https://github.com/other/widgets/blob/master/build.sh")
	if err != nil {
		t.Fatalf("expected accessible repo to be accepted, got %v", err)
	}

	err = validateBuildURL(context.Background(), enginetest.Githost{Denied: true}, "acme",
		"https://github.com/other/widgets/blob/master/build.sh")
	if !xerrors.Is(err, ErrBuildURLForbidden) {
		t.Fatalf("expected ErrBuildURLForbidden, got %v", err)
	}
}

func TestValidateBuildURLUnparsableURL(t *testing.T) {
	err := validateBuildURL(context.Background(), enginetest.Githost{}, "acme", "not a url")
	if !xerrors.Is(err, ErrBuildURLForbidden) {
		t.Fatalf("expected ErrBuildURLForbidden, got %v", err)
	}
}
