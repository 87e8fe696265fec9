package fetch

import (
	"context"
	"sync"
	"time"
)

// DefaultInterval is the minimum spacing between requests to one source
const DefaultInterval = time.Second

// Limiter enforces a minimum interval between requests per source key.
// Acquire blocks the caller until the source's interval has elapsed since
// the previous acquire, honoring context cancellation
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     map[string]time.Time
	now      func() time.Time
	sleep    func(time.Duration)
}

// NewLimiter creates a limiter with the given per source interval.
// Zero or negative falls back to DefaultInterval
func NewLimiter(interval time.Duration) *Limiter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Limiter{
		interval: interval,
		last:     make(map[string]time.Time),
		now:      time.Now,
		sleep:    time.Sleep,
	}
}

// Acquire blocks until source may issue its next request
func (l *Limiter) Acquire(ctx context.Context, source string) error {
	l.mu.Lock()
	now := l.now()
	wait := time.Duration(0)
	if prev, ok := l.last[source]; ok {
		if elapsed := now.Sub(prev); elapsed < l.interval {
			wait = l.interval - elapsed
		}
	}
	l.last[source] = now.Add(wait)
	l.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	done := make(chan struct{})
	go func() {
		l.sleep(wait)
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
