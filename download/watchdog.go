package download

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"
)

// errStalled is the cancellation cause of a connection whose watchdog
// fired. It never reaches the caller of Download.
var errStalled = errors.New("connection stalled")

// watchdog cancels a connection's context when no progress is made
// within timeout.
type watchdog struct {
	timeout time.Duration
	timer   *time.Timer
	cancel  context.CancelCauseFunc
	fired   atomic.Bool
}

func newWatchdog(ctx context.Context, timeout time.Duration) (context.Context, *watchdog) {
	ctx, cancel := context.WithCancelCause(ctx)

	w := &watchdog{timeout: timeout, cancel: cancel}
	w.timer = time.AfterFunc(timeout, func() {
		w.fired.Store(true)
		cancel(errStalled)
	})

	return ctx, w
}

// kick re-arms the timer after progress.
func (w *watchdog) kick() {
	if w.fired.Load() {
		return
	}
	w.timer.Reset(w.timeout)
}

// pause stops the timer while the caller waits on something other
// than the connection. kick resumes it.
func (w *watchdog) pause() {
	w.timer.Stop()
}

func (w *watchdog) stalled() bool {
	return w.fired.Load()
}

// stop releases the connection context.
func (w *watchdog) stop() {
	w.timer.Stop()
	w.cancel(nil)
}

// reader wraps r so that every read returning data re-arms the timer.
func (w *watchdog) reader(r io.Reader) io.Reader {
	return &kickReader{r: r, wd: w}
}

type kickReader struct {
	r  io.Reader
	wd *watchdog
}

func (k *kickReader) Read(p []byte) (int, error) {
	n, err := k.r.Read(p)
	if n > 0 {
		k.wd.kick()
	}
	return n, err
}
