package batch_test

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/spf13/viper"

	"github.com/adamwoolhether/fetch/cmd/fetch/root"
	"github.com/adamwoolhether/fetch/cmd/fetch/root/batch"
	"github.com/adamwoolhether/fetch/download"
)

func writeManifest(t *testing.T, dir, doc string) string {
	t.Helper()

	path := filepath.Join(dir, "downloads.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
downloads:
  - url: https://example.com/a.sif
    dest: images/a.sif
    checksum: sha256:9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08
  - url: https://example.com/b.tar.gz
    dest: /abs/b.tar.gz
    timeout: 5s
    method: internal
    checksum_sidecar: true
`)

	defaults := download.Request{
		Timeout:          30 * time.Second,
		CallbackInterval: time.Second,
		UseTmp:           true,
		Method:           download.MethodExternalNoFetch,
	}

	got, err := batch.Load(path, defaults)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	exp := []download.Request{
		{
			URL:              "https://example.com/a.sif",
			Dest:             filepath.Join(dir, "images/a.sif"),
			Timeout:          30 * time.Second,
			UseTmp:           true,
			Checksum:         "sha256:9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
			CallbackInterval: time.Second,
			Method:           download.MethodExternalNoFetch,
		},
		{
			URL:              "https://example.com/b.tar.gz",
			Dest:             "/abs/b.tar.gz",
			Timeout:          5 * time.Second,
			UseTmp:           true,
			ChecksumSidecar:  true,
			CallbackInterval: time.Second,
			Method:           download.MethodInternal,
		},
	}
	if diff := cmp.Diff(exp, got, cmpopts.IgnoreFields(download.Request{}, "Callback")); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Invalid(t *testing.T) {
	testCases := []struct {
		name   string
		doc    string
		expErr error
	}{
		{name: "empty", doc: "downloads: []\n"},
		{name: "bad yaml", doc: "downloads: [\n"},
		{name: "bad method", doc: "downloads:\n  - url: https://example.com/a\n    dest: a\n    method: rsync\n"},
		{name: "missing url", doc: "downloads:\n  - dest: a\n", expErr: download.ErrInvalidRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeManifest(t, t.TempDir(), tc.doc)

			_, err := batch.Load(path, download.Request{Timeout: time.Second})
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tc.expErr != nil && !errors.Is(err, tc.expErr) {
				t.Errorf("expected %v, got: %v", tc.expErr, err)
			}
		})
	}
}

func TestBatchCmd(t *testing.T) {
	t.Cleanup(viper.Reset)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.bin" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(r.URL.Path))
	}))
	defer ts.Close()

	dir := t.TempDir()
	path := writeManifest(t, dir, `
downloads:
  - url: `+ts.URL+`/one.bin
    dest: one.bin
  - url: `+ts.URL+`/two.bin
    dest: two.bin
  - url: `+ts.URL+`/missing.bin
    dest: missing.bin
`)

	var out bytes.Buffer
	cmd := root.NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"batch", "--method", "internal", "--quiet", "--parallel", "2", path})

	err := cmd.ExecuteContext(t.Context())
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected 404 error from missing entry, got: %v", err)
	}

	for _, name := range []string{"one.bin", "two.bin"} {
		got, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("reading %s: %v", name, err)
		}
		if string(got) != "/"+name {
			t.Errorf("%s content = %q", name, got)
		}
	}

	if !strings.Contains(out.String(), "downloaded 2/3 files") {
		t.Errorf("unexpected summary: %q", out.String())
	}
}
