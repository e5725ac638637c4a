package download

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

var hashes = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"sha512": sha512.New,
}

// checksum is a parsed expected digest.
type checksum struct {
	algo     string
	expected string
}

// parseChecksum accepts "<algo>:<hex>" or bare hex. Bare digests are
// matched to an algorithm by length and fall back to md5, the format of
// the sidecar files published next to artefacts.
func parseChecksum(s string) (checksum, error) {
	s = strings.TrimSpace(s)

	algo, digest, ok := strings.Cut(s, ":")
	if !ok {
		digest = s
		switch len(s) {
		case sha1.Size * 2:
			algo = "sha1"
		case sha256.Size * 2:
			algo = "sha256"
		case sha512.Size * 2:
			algo = "sha512"
		default:
			algo = "md5"
		}
	}

	algo = strings.ToLower(algo)
	if _, ok := hashes[algo]; !ok {
		return checksum{}, &Error{Err: ErrUnsupportedChecksum, Detail: fmt.Sprintf("unknown algorithm %q", algo)}
	}

	if digest == "" {
		return checksum{}, &Error{Err: ErrUnsupportedChecksum, Detail: "empty digest"}
	}
	if _, err := hex.DecodeString(digest); err != nil {
		return checksum{}, &Error{Err: ErrUnsupportedChecksum, Detail: fmt.Sprintf("digest %q is not hex", digest)}
	}

	return checksum{algo: algo, expected: strings.ToLower(digest)}, nil
}

func (c checksum) String() string {
	return c.algo + ":" + c.expected
}

// verify hashes the file at path and compares it with the expected digest.
func (c checksum) verify(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening file for checksum: %w", err)
	}
	defer f.Close()

	v := &checksumVerifier{hash: hashes[c.algo](), expected: c.expected}
	if _, err := io.Copy(v, f); err != nil {
		return fmt.Errorf("hashing file: %w", err)
	}

	return v.Verify()
}

// checksumVerifier accumulates written bytes and compares their digest.
type checksumVerifier struct {
	hash     hash.Hash
	expected string
}

func (v *checksumVerifier) Write(p []byte) (int, error) {
	return v.hash.Write(p)
}

func (v *checksumVerifier) Verify() error {
	if v == nil {
		return nil
	}

	actual := hex.EncodeToString(v.hash.Sum(nil))
	if actual != v.expected {
		return &Error{
			Err:    ErrChecksumMismatch,
			Detail: fmt.Sprintf("expected %s, got %s", v.expected, actual),
		}
	}

	return nil
}
