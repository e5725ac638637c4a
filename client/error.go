package client

import (
	"errors"
	"fmt"
	"net/http"
)

// maxErrBodySize caps the amount of response body read when
// building an error for an unexpected status code, or when
// reading a checksum sidecar.
const maxErrBodySize = 4 << 10 // 4KB

// sidecarAttempts is how many times a checksum sidecar fetch is tried.
const sidecarAttempts = 3

// execFn represents a func to operate on a response.
type execFn func(response *http.Response) error

var (
	// ErrUnexpectedStatusCode is the sentinel error wrapped by [UnexpectedStatusError].
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	// ErrEmptySidecar is returned when a checksum sidecar holds no token.
	ErrEmptySidecar = errors.New("empty checksum sidecar")
)

// UnexpectedStatusError is returned when the HTTP response status code
// is not one the caller can use.
type UnexpectedStatusError struct {
	StatusCode int
	Body       string
	// Total is the complete resource length from a 416 reply's
	// Content-Range, 0 if absent.
	Total int64
	Err   error
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("%v: %d, body: %s", e.Err, e.StatusCode, e.Body)
}

func (e *UnexpectedStatusError) Unwrap() error {
	return e.Err
}
