package download

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// workFunc is the signature for async work.
type workFunc func(ctx context.Context) error

// Batch runs independent downloads concurrently.
type Batch struct {
	wg       sync.WaitGroup
	mu       sync.Mutex
	sem      chan struct{}
	shutdown atomic.Bool
	errs     []error
}

// NewBatch creates a Batch running at most maxConcurrent downloads at
// once. If maxConcurrent <= 0, concurrency is unlimited.
func NewBatch(maxConcurrent int) *Batch {
	b := &Batch{}
	if maxConcurrent > 0 {
		b.sem = make(chan struct{}, maxConcurrent)
	}
	return b
}

// Go starts downloading req with d and returns a Result for tracking it.
func (b *Batch) Go(ctx context.Context, d *Downloader, req Request) *Result {
	return b.start(ctx, func(ctx context.Context) error {
		return d.Download(ctx, req)
	})
}

// Wait blocks until all downloads in the batch complete.
// Returns all errors joined via errors.Join.
func (b *Batch) Wait() error {
	b.wg.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()

	return errors.Join(b.errs...)
}

// Shutdown prevents queued downloads from starting.
func (b *Batch) Shutdown() {
	b.shutdown.Store(true)
}

func (b *Batch) start(ctx context.Context, fn workFunc) *Result {
	ctx, cancel := context.WithCancel(ctx)
	r := &Result{
		done:   make(chan struct{}),
		cancel: cancel,
		batch:  b,
	}

	b.wg.Add(1)
	go func() {
		defer func() {
			cancel()
			close(r.done)
			b.wg.Done()
		}()

		if b.sem != nil {
			select {
			case b.sem <- struct{}{}:
				defer func() {
					<-b.sem
				}()
			case <-ctx.Done():
				r.err = ctx.Err()
				b.recordErr(r.err)
				return
			}
		}

		if b.shutdown.Load() {
			r.err = ErrGroupShutdown
			b.recordErr(r.err)
			return
		}

		r.err = fn(ctx)
		if r.err != nil {
			b.recordErr(r.err)
		}
	}()

	return r
}

// recordErr appends err to the batch's error slice under the mutex.
func (b *Batch) recordErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errs = append(b.errs, err)
}
