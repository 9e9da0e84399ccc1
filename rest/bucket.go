package rest

import (
	"context"
	"sync"
	"time"
)

// bucket is the rate limit state of one route key. Its fields are only
// touched by the request holding the route queue slot.
type bucket struct {
	key   string
	queue asyncQueue

	// limit is -1 until discord reports one.
	limit     int
	remaining int
	resetAt   time.Time
}

func newBucket(key string) *bucket {
	return &bucket{
		key:       key,
		limit:     -1,
		remaining: 1,
	}
}

func (b *bucket) limited(now time.Time) bool {
	return b.remaining <= 0 && now.Before(b.resetAt)
}

// take spends one request from the bucket as it is dispatched.
func (b *bucket) take(now time.Time) {
	if b.limit <= 0 {
		return
	}

	if !now.Before(b.resetAt) {
		b.remaining = b.limit
	}

	if b.remaining > 0 {
		b.remaining--
	}
}

// BucketSnapshot is a point in time copy of a route bucket.
type BucketSnapshot struct {
	Key       string
	Limit     int
	Remaining int
	ResetAt   time.Time
	Queued    int
}

// globalBudget is shared by every route and guarded by its own mutex.
type globalBudget struct {
	mu sync.Mutex

	// limit <= 0 disables the per second budget. A global 429 still applies.
	limit     int
	remaining int
	resetAt   time.Time

	// delay is closed when the current global wait ends. Callers arriving
	// while it is set wait on the same channel.
	delay chan struct{}
}

func newGlobalBudget(limit int) *globalBudget {
	return &globalBudget{
		limit:     limit,
		remaining: limit,
	}
}

func (g *globalBudget) limited(now time.Time) (bool, time.Time, int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.limitedLocked(now), g.resetAt, g.limit
}

func (g *globalBudget) limitedLocked(now time.Time) bool {
	return g.remaining <= 0 && now.Before(g.resetAt)
}

// acquire spends one request from the budget if it is not exhausted,
// opening a new one second window when the previous one has passed. When it
// fails the reset time and limit are returned for the wait.
func (g *globalBudget) acquire(now time.Time) (bool, time.Time, int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.limit <= 0 {
		return !g.limitedLocked(now), g.resetAt, g.limit
	}

	if g.resetAt.IsZero() || !now.Before(g.resetAt) {
		g.resetAt = now.Add(time.Second)
		g.remaining = g.limit
	}

	if g.remaining <= 0 {
		return false, g.resetAt, g.limit
	}

	g.remaining--

	return true, g.resetAt, g.limit
}

// exhaust zeroes the budget until retryAfter has passed.
func (g *globalBudget) exhaust(now time.Time, retryAfter time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.remaining = 0
	g.resetAt = now.Add(retryAfter)
}

// wait blocks for d, sharing one timer with every concurrent caller.
func (g *globalBudget) wait(ctx context.Context, d time.Duration) error {
	g.mu.Lock()

	if g.delay == nil {
		delay := make(chan struct{})
		g.delay = delay

		time.AfterFunc(d, func() {
			g.mu.Lock()
			g.delay = nil
			g.mu.Unlock()

			close(delay)
		})
	}

	delay := g.delay
	g.mu.Unlock()

	select {
	case <-delay:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
