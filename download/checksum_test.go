package download

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseChecksum(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		expAlgo string
		expErr  bool
	}{
		{name: "md5 by length", input: strings.Repeat("a", 32), expAlgo: "md5"},
		{name: "sha1 by length", input: strings.Repeat("a", 40), expAlgo: "sha1"},
		{name: "sha256 by length", input: strings.Repeat("a", 64), expAlgo: "sha256"},
		{name: "sha512 by length", input: strings.Repeat("a", 128), expAlgo: "sha512"},
		{name: "odd length falls back to md5", input: "deadbeef", expAlgo: "md5"},
		{name: "prefixed", input: "SHA256:" + strings.Repeat("A", 64), expAlgo: "sha256"},
		{name: "unknown algorithm", input: "crc32:deadbeef", expErr: true},
		{name: "not hex", input: "xyz", expErr: true},
		{name: "empty digest", input: "md5:", expErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseChecksum(tc.input)
			if tc.expErr {
				if !errors.Is(err, ErrUnsupportedChecksum) {
					t.Fatalf("expected ErrUnsupportedChecksum, got: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.algo != tc.expAlgo {
				t.Errorf("algo = %q, want %q", got.algo, tc.expAlgo)
			}
			if got.expected != strings.ToLower(got.expected) {
				t.Errorf("expected digest not lowercased: %q", got.expected)
			}
		})
	}
}

func TestChecksum_Verify(t *testing.T) {
	data := []byte("the quick brown fox")
	path := filepath.Join(t.TempDir(), "data")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	md5sum := md5.Sum(data)
	sha1sum := sha1.Sum(data)
	sha256sum := sha256.Sum256(data)
	sha512sum := sha512.Sum512(data)

	for _, digest := range []string{
		hex.EncodeToString(md5sum[:]),
		hex.EncodeToString(sha1sum[:]),
		hex.EncodeToString(sha256sum[:]),
		strings.ToUpper(hex.EncodeToString(sha512sum[:])),
	} {
		sum, err := parseChecksum(digest)
		if err != nil {
			t.Fatalf("parse %s: %v", digest, err)
		}
		if err := sum.verify(path); err != nil {
			t.Errorf("%s: unexpected error: %v", sum.algo, err)
		}
	}

	sum, err := parseChecksum("deadbeef")
	if err != nil {
		t.Fatal(err)
	}

	err = sum.verify(path)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got: %v", err)
	}
	if !strings.Contains(err.Error(), "expected deadbeef, got "+hex.EncodeToString(md5sum[:])) {
		t.Errorf("unexpected detail: %v", err)
	}
}

func TestChecksum_VerifyMissingFile(t *testing.T) {
	sum, err := parseChecksum(strings.Repeat("0", 32))
	if err != nil {
		t.Fatal(err)
	}

	if err := sum.verify(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file, got nil")
	}
}
