package limiter

import (
	"sync"
	"time"
)

// TokenBucket allows a fixed number of operations per window. Unlike a
// blocking limiter, Take never sleeps: callers that are refused get the
// time until the bucket refills and are expected to schedule themselves.
type TokenBucket struct {
	mu sync.Mutex

	total     int32
	remaining int32
	window    time.Duration
	resetsAt  time.Time

	now func() time.Time
}

// NewTokenBucket creates a TokenBucket. This is useful for allowing
// a specific operation to run only X amount of times in a duration of Y.
func NewTokenBucket(total int32, window time.Duration) *TokenBucket {
	return &TokenBucket{
		total:     total,
		remaining: total,
		window:    window,
		now:       time.Now,
	}
}

// Take consumes a token. When none is available it returns false and the
// duration until the next refill.
func (b *TokenBucket) Take() (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()

	// The window starts with the first token taken after a refill.
	if b.resetsAt.IsZero() || !now.Before(b.resetsAt) {
		b.remaining = b.total
		b.resetsAt = now.Add(b.window)
	}

	if b.remaining <= 0 {
		return false, b.resetsAt.Sub(now)
	}

	b.remaining--

	return true, 0
}

// Remaining returns the tokens left in the current window.
func (b *TokenBucket) Remaining() int32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.resetsAt.IsZero() || !b.now().Before(b.resetsAt) {
		return b.total
	}

	return b.remaining
}

// Total returns the configured tokens per window.
func (b *TokenBucket) Total() int32 {
	return b.total
}

// Reset refills the bucket and clears the current window.
func (b *TokenBucket) Reset() {
	b.mu.Lock()
	b.remaining = b.total
	b.resetsAt = time.Time{}
	b.mu.Unlock()
}
