package scriptfetch

import (
	"bytes"
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestLocateSameRepoUsesLocalPath(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "build.sh")
	if err := ioutil.WriteFile(scriptPath, []byte("#!/bin/sh\necho hi\n"), 0755); err != nil {
		t.Fatal(err)
	}

	got, err := Locate(context.Background(), http.DefaultClient, dir,
		"https://github.com/acme/widgets",
		"https://github.com/acme/widgets/blob/master/build.sh",
		"deadbeef")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if got != scriptPath {
		t.Fatalf("got %q, want %q", got, scriptPath)
	}
}

func TestLocateCrossRepoDownloads(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("#!/bin/sh\necho from-other-repo\n"))
	}))
	defer srv.Close()

	// NWO and rewriteToRaw do not look at the host, so a blob URL on the
	// test server is parsed and rewritten the same way a github.com one is.
	dir := t.TempDir()
	got, err := Locate(context.Background(), srv.Client(), dir,
		"https://github.com/acme/widgets",
		srv.URL+"/acme/other/blob/master/build.sh",
		"deadbeef")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	want := filepath.Join(dir, "build.sh")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if gotPath != "/acme/other/raw/deadbeef/build.sh" {
		t.Fatalf("unexpected request path %q", gotPath)
	}
	contents, err := ioutil.ReadFile(got)
	if err != nil {
		t.Fatal(err)
	}
	if string(contents) != "#!/bin/sh\necho from-other-repo\n" {
		t.Fatalf("unexpected contents: %q", contents)
	}
}

func TestRewriteToRaw(t *testing.T) {
	cases := []struct {
		in, commit, want string
	}{
		{
			"https://github.com/acme/other/blob/master/build.sh",
			"deadbeef",
			"https://github.com/acme/other/raw/deadbeef/build.sh",
		},
		{
			"https://github.com/acme/other/blob/master/nested/path/build.sh",
			"c0ffee",
			"https://github.com/acme/other/raw/c0ffee/nested/path/build.sh",
		},
	}
	for _, c := range cases {
		if got := rewriteToRaw(c.in, c.commit); got != c.want {
			t.Errorf("rewriteToRaw(%q, %q) = %q, want %q", c.in, c.commit, got, c.want)
		}
	}
}

func TestLocalPathRejectsNonBlobURL(t *testing.T) {
	if _, err := localPath(t.TempDir(), "https://github.com/acme/widgets"); err == nil {
		t.Fatal("expected error for a non-blob URL")
	}
}

func TestDownloadRejectsOversizedScript(t *testing.T) {
	oversized := bytes.Repeat([]byte("x"), MaxScriptBytes+1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(oversized)
	}))
	defer srv.Close()

	dir := t.TempDir()
	_, err := download(context.Background(), srv.Client(), dir, srv.URL+"/acme/other/raw/deadbeef/build.sh")
	if err == nil {
		t.Fatal("expected an error for a script exceeding MaxScriptBytes")
	}

	dest := filepath.Join(dir, "build.sh")
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatalf("expected %q to be removed after rejection, stat err=%v", dest, statErr)
	}
}
