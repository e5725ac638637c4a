package download

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

const pollInterval = 250 * time.Millisecond

// externalStrategy delegates the transfer to a fetch utility.
type externalStrategy struct {
	toolbox   *Toolbox
	bootstrap bool
}

func (s *externalStrategy) method() Method {
	if s.bootstrap {
		return MethodExternal
	}
	return MethodExternalNoFetch
}

func (s *externalStrategy) fetch(ctx context.Context, t *transfer) error {
	tool, err := s.toolbox.Resolve(ctx, s.bootstrap)
	if err != nil {
		return err
	}

	name, args := tool.Command(filepath.Dir(t.work))
	args = slices.Concat(args, toolArgs(t.req, t.work))

	start, err := localSize(t.work)
	if err != nil {
		return err
	}
	t.tracker.start(start, 0)

	pctx, stop := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Go(func() {
		s.poll(pctx, t)
	})

	err = s.toolbox.runner.Run(ctx, name, args...)

	stop()
	wg.Wait()

	if err != nil {
		if ctx.Err() != nil {
			return cancelled(ctx.Err())
		}
		return fmt.Errorf("running %s: %w", tool.Path, err)
	}

	size, err := localSize(t.work)
	if err != nil {
		return err
	}
	t.tracker.finish(size)

	return nil
}

// poll reports the working file's size until ctx is done.
func (s *externalStrategy) poll(ctx context.Context, t *transfer) {
	interval := pollInterval
	if t.req.CallbackInterval > 0 {
		interval = t.req.CallbackInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if size, err := localSize(t.work); err == nil {
				t.tracker.report(size, false)
			}
		}
	}
}

func toolArgs(req Request, out string) []string {
	var args []string
	if req.AllowContinue {
		args = append(args, "--continue")
	}
	return append(args, req.URL, "-O", out)
}
