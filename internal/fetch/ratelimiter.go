package fetch

import (
	"context"
	"sync"
	"time"
)

// RateLimiter spaces outbound calls to respect a per-upstream politeness
// budget. One token accrues every interval up to the burst size; Wait
// consumes a token, blocking while the bucket is empty. It is separate from
// retry backoff: the budget spaces calls before they are made, backoff
// reacts after failures.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	burst    int
	tokens   int
	last     time.Time

	now func() time.Time
}

// NewRateLimiter allows bursts of up to burst calls, refilling one token
// every interval.
func NewRateLimiter(burst int, interval time.Duration) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	r := &RateLimiter{
		interval: interval,
		burst:    burst,
		tokens:   burst,
		now:      time.Now,
	}
	r.last = r.now()
	return r
}

// Wait blocks until a token is available or ctx is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		wait, ok := r.take()
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// take consumes a token when one is available, otherwise it reports how
// long until the next token accrues.
func (r *RateLimiter) take() (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if accrued := int(now.Sub(r.last) / r.interval); accrued > 0 {
		r.tokens += accrued
		if r.tokens >= r.burst {
			r.tokens = r.burst
			r.last = now
		} else {
			r.last = r.last.Add(time.Duration(accrued) * r.interval)
		}
	}

	if r.tokens > 0 {
		r.tokens--
		return 0, true
	}
	return r.interval - now.Sub(r.last), false
}
