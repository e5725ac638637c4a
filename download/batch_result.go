package download

import "context"

// Result represents an in-flight or completed batch download.
type Result struct {
	done   chan struct{}
	err    error
	cancel context.CancelFunc
	batch  *Batch
}

// Done returns a channel that is closed when the download completes.
func (r *Result) Done() <-chan struct{} { return r.done }

// Err blocks until this download completes and returns its error.
func (r *Result) Err() error {
	<-r.done
	return r.err
}

// Wait blocks until all downloads in the batch complete.
func (r *Result) Wait() error {
	return r.batch.Wait()
}

// Cancel cancels this download's context.
func (r *Result) Cancel() {
	r.cancel()
}
