package rate

import (
	"context"
	"sync"
	"time"
)

// Limiter spaces out Discord API requests that are not covered by bulk
// endpoints, such as deleting messages one by one.
type Limiter struct {
	mu          sync.Mutex
	last        time.Time
	minInterval time.Duration
	now         func() time.Time
	wait        func(ctx context.Context, d time.Duration) error
}

// New creates a limiter allowing one request per interval.
func New(interval time.Duration) *Limiter {
	return &Limiter{
		minInterval: interval,
		now:         time.Now,
		wait:        sleep,
	}
}

// WithClock replaces the time source and the wait function.
func (r *Limiter) WithClock(now func() time.Time, wait func(ctx context.Context, d time.Duration) error) *Limiter {
	r.now = now
	r.wait = wait
	return r
}

// Wait blocks until the next request slot is available.
func (r *Limiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.last.IsZero() {
		if delay := r.minInterval - r.now().Sub(r.last); delay > 0 {
			if err := r.wait(ctx, delay); err != nil {
				return err
			}
		}
	}

	r.last = r.now()
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
