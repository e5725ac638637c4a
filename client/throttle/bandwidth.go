package throttle

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// minBurst keeps a single block read from exceeding the bucket size.
const minBurst = 32 << 10 // 32KB

// NewBandwidth returns a limiter allowing bytesPerSec bytes per second.
func NewBandwidth(bytesPerSec int) (*Bandwidth, error) {
	if bytesPerSec <= 0 {
		return nil, fmt.Errorf("bytesPerSec[%d] %w", bytesPerSec, ErrMustNotBeZero)
	}

	burst := max(bytesPerSec, minBurst)

	return &Bandwidth{limiter: rate.NewLimiter(rate.Limit(bytesPerSec), burst)}, nil
}

// Wait blocks until n bytes may be consumed. A nil *Bandwidth never waits.
func (b *Bandwidth) Wait(ctx context.Context, n int) error {
	if b == nil {
		return nil
	}

	burst := b.limiter.Burst()
	for n > 0 {
		take := min(n, burst)
		if err := b.limiter.WaitN(ctx, take); err != nil {
			return fmt.Errorf("%w: %w", ErrWaitingFailed, err)
		}
		n -= take
	}

	return nil
}
