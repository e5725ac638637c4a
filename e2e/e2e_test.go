//go:build integration

package e2e_test

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/adamwoolhether/fetch/cmd/fetch/root"
)

// -------------------------------------------------------------------------
// Artefact server
// -------------------------------------------------------------------------

// artefacts serves generated files and their md5 sidecars. The first
// request for each file drops the connection after dropAfter bytes.
type artefacts struct {
	files     map[string][]byte
	dropAfter int

	mu      sync.Mutex
	dropped map[string]bool
}

func newArtefacts(t *testing.T, dropAfter int, names ...string) (*artefacts, string) {
	t.Helper()

	a := &artefacts{
		files:     map[string][]byte{},
		dropAfter: dropAfter,
		dropped:   map[string]bool{},
	}
	for i, name := range names {
		a.files["/"+name] = bytes.Repeat([]byte{byte('a' + i)}, 64<<10+i*1000)
	}

	srv := httptest.NewServer(a)
	t.Cleanup(srv.Close)

	return a, srv.URL
}

func (a *artefacts) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if name, ok := strings.CutSuffix(r.URL.Path, ".md5"); ok {
		data, found := a.files[name]
		if !found {
			http.NotFound(w, r)
			return
		}
		sum := md5.Sum(data)
		fmt.Fprintf(w, "%s  %s\n", hex.EncodeToString(sum[:]), strings.TrimPrefix(name, "/"))
		return
	}

	data, found := a.files[r.URL.Path]
	if !found {
		http.NotFound(w, r)
		return
	}

	a.mu.Lock()
	drop := a.dropAfter > 0 && !a.dropped[r.URL.Path] && r.Method == http.MethodGet
	a.dropped[r.URL.Path] = true
	a.mu.Unlock()

	if !drop {
		http.ServeContent(w, r, r.URL.Path, time.Time{}, bytes.NewReader(data))
		return
	}

	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data[:a.dropAfter])
	_ = http.NewResponseController(w).Flush()

	if hj, ok := w.(http.Hijacker); ok {
		if conn, _, err := hj.Hijack(); err == nil {
			_ = conn.Close()
		}
	}
}

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(viper.Reset)

	var out, errOut bytes.Buffer
	cmd := root.NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(t.Context())
	if err != nil {
		t.Logf("stderr:\n%s", errOut.String())
	}

	return out.String(), err
}

// -------------------------------------------------------------------------
// Tests
// -------------------------------------------------------------------------

func TestE2E_GetRecoversDroppedConnection(t *testing.T) {
	a, base := newArtefacts(t, 10_000, "image.sif")
	dir := t.TempDir()

	out, err := run(t, "get", "--method", "internal", "--quiet", "--sidecar", base+"/image.sif", dir)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "image.sif"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, a.files["/image.sif"]) {
		t.Errorf("content mismatch: got %d bytes, want %d", len(got), len(a.files["/image.sif"]))
	}
	if !strings.Contains(out, "saved") {
		t.Errorf("unexpected output: %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "image.sif.part")); !os.IsNotExist(err) {
		t.Errorf("part file left behind: %v", err)
	}
}

func TestE2E_GetResumesPartFile(t *testing.T) {
	a, base := newArtefacts(t, 0, "data.tar")
	dir := t.TempDir()
	dest := filepath.Join(dir, "data.tar")

	if err := os.WriteFile(dest+".part", a.files["/data.tar"][:30_000], 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := run(t, "get", "--method", "internal", "--quiet", "--continue", base+"/data.tar", dest); err != nil {
		t.Fatalf("get: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, a.files["/data.tar"]) {
		t.Error("resumed file differs from the artefact")
	}
}

func TestE2E_Batch(t *testing.T) {
	a, base := newArtefacts(t, 5_000, "a.bin", "b.bin", "c.bin")
	dir := t.TempDir()

	var manifest strings.Builder
	manifest.WriteString("downloads:\n")
	for _, name := range []string{"a.bin", "b.bin", "c.bin"} {
		fmt.Fprintf(&manifest, "  - url: %s/%s\n    dest: out/%s\n    checksum_sidecar: true\n", base, name, name)
	}

	if err := os.Mkdir(filepath.Join(dir, "out"), 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "downloads.yaml")
	if err := os.WriteFile(path, []byte(manifest.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "batch", "--method", "internal", "--quiet", "--parallel", "2", path)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if !strings.Contains(out, "downloaded 3/3 files") {
		t.Errorf("unexpected summary: %q", out)
	}

	for name, data := range a.files {
		got, err := os.ReadFile(filepath.Join(dir, "out", name))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("%s: content mismatch", name)
		}
	}
}

func TestE2E_GetNotFound(t *testing.T) {
	_, base := newArtefacts(t, 0)

	_, err := run(t, "get", "--method", "internal", "--quiet", base+"/missing.bin", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected 404 error, got: %v", err)
	}
}
