package process

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
)

func TestExec_Run(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	var x Exec

	if err := x.Run(t.Context(), "sh", "-c", "exit 0"); err != nil {
		t.Fatalf("expected nil error, got: %v", err)
	}
}

func TestExec_RunExitError(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	var x Exec

	err := x.Run(t.Context(), "sh", "-c", "echo boom >&2; exit 3")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected *ExitError, got %T: %v", err, err)
	}

	if exitErr.Code != 3 {
		t.Errorf("exit code = %d, want 3", exitErr.Code)
	}

	if exitErr.Stderr != "boom" {
		t.Errorf("stderr = %q, want %q", exitErr.Stderr, "boom")
	}
}

func TestExec_RunCancelled(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	var x Exec
	err := x.Run(ctx, "sleep", "5")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
}

func TestTailBuffer(t *testing.T) {
	tb := &tailBuffer{max: 8}

	_, _ = tb.Write([]byte("hello "))
	_, _ = tb.Write([]byte("world"))

	if got := tb.String(); got != "lo world" {
		t.Errorf("tail = %q, want %q", got, "lo world")
	}

	_, _ = tb.Write([]byte(strings.Repeat("x", 20)))
	if got := tb.String(); got != strings.Repeat("x", 8) {
		t.Errorf("tail = %q, want 8 x's", got)
	}
}
