// Package process runs external executables on behalf of the downloader.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
)

// maxStderr caps how much of a failed command's stderr is kept for
// the returned error.
const maxStderr = 4 << 10 // 4KB

// Runner locates and runs external commands.
type Runner interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, name string, args ...string) error
}

// ExitError is returned when a command exits unsuccessfully.
type ExitError struct {
	Cmd    string
	Code   int
	Stderr string
	Err    error
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: exit %d: %v", e.Cmd, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: exit %d: %v: %s", e.Cmd, e.Code, e.Err, e.Stderr)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Exec is a Runner backed by os/exec.
type Exec struct {
	Logger *slog.Logger
	Stdout io.Writer
}

// LookPath searches PATH for file.
func (x Exec) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

// Run starts name with args and waits for it to exit. The process is
// killed when ctx is cancelled.
func (x Exec) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)

	stderr := &tailBuffer{max: maxStderr}
	cmd.Stderr = stderr
	if x.Stdout != nil {
		cmd.Stdout = x.Stdout
	}

	if x.Logger != nil {
		x.Logger.Debug("running command", "cmd", name, "args", strings.Join(args, " "))
	}

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", name, ctxErr)
		}

		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}

		return &ExitError{
			Cmd:    name,
			Code:   code,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}

	return nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	buf bytes.Buffer
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) > t.max {
		p = p[len(p)-t.max:]
	}
	if over := t.buf.Len() + len(p) - t.max; over > 0 {
		t.buf.Next(over)
	}
	t.buf.Write(p)

	return n, nil
}

func (t *tailBuffer) String() string {
	return t.buf.String()
}
