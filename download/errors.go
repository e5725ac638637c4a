package download

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrContentLengthMismatch = errors.New("content length mismatch")
	ErrChecksumMismatch      = errors.New("checksum mismatch")
	ErrUnsupportedChecksum   = errors.New("unsupported checksum")
	ErrDownloadCancelled     = errors.New("download cancelled")
	ErrToolUnavailable       = errors.New("fetch tool unavailable")
	ErrInvalidRequest        = errors.New("invalid download request")
	ErrGroupShutdown         = errors.New("batch is shut down")
)

type Error struct {
	Detail string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Attempt records the outcome of one fetch method.
type Attempt struct {
	Method Method
	Err    error
}

// FallbackError is returned when every method in the plan failed.
// The message leads with the last failure; all attempts are kept in
// order and are reachable through errors.Is and errors.As.
type FallbackError struct {
	Attempts []Attempt
}

func (e *FallbackError) Error() string {
	if len(e.Attempts) == 0 {
		return "all download methods failed"
	}
	last := e.Last()

	var b strings.Builder
	fmt.Fprintf(&b, "all download methods failed: %s: %v", last.Method, last.Err)
	for _, a := range e.Attempts[:len(e.Attempts)-1] {
		fmt.Fprintf(&b, "; %s: %v", a.Method, a.Err)
	}

	return b.String()
}

func (e *FallbackError) Unwrap() []error {
	errs := make([]error, len(e.Attempts))
	for i, a := range e.Attempts {
		errs[i] = a.Err
	}
	return errs
}

// Last returns the final attempt.
func (e *FallbackError) Last() Attempt {
	if len(e.Attempts) == 0 {
		return Attempt{}
	}
	return e.Attempts[len(e.Attempts)-1]
}

func cancelled(err error) error {
	if errors.Is(err, ErrDownloadCancelled) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrDownloadCancelled, err)
}
