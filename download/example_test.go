package download_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adamwoolhether/fetch/download"
)

func ExampleDownload() {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "10000")
		_, _ = w.Write([]byte(strings.Repeat("x", 10_000)))
	}))
	defer ts.Close()

	dir, _ := os.MkdirTemp("", "example")
	defer os.RemoveAll(dir)
	dest := filepath.Join(dir, "file.bin")

	var last download.Progress
	err := download.Download(context.Background(), download.Request{
		URL:      ts.URL + "/file.bin",
		Dest:     dest,
		Timeout:  10 * time.Second,
		UseTmp:   true,
		Callback: func(p download.Progress) { last = p },
		Method:   download.MethodInternal,
	})
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	fmt.Printf("%s: %d/%d bytes\n", last.Label, last.Position, last.Total)
	// Output: file.bin: 10000/10000 bytes
}

func ExampleFallbackError() {
	err := error(&download.FallbackError{Attempts: []download.Attempt{
		{Method: download.MethodExternalNoFetch, Err: download.ErrToolUnavailable},
		{Method: download.MethodInternal, Err: errors.New("connection refused")},
	}})

	var fbErr *download.FallbackError
	if errors.As(err, &fbErr) {
		for _, a := range fbErr.Attempts {
			fmt.Printf("%s: %v\n", a.Method, a.Err)
		}
	}
	// Output:
	// external-tool-no-fetch: fetch tool unavailable
	// internal: connection refused
}

func ExampleParseMethod() {
	m, err := download.ParseMethod("external-tool")
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	fmt.Println(m == download.MethodExternal)
	// Output: true
}
