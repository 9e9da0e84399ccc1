package rest

import (
	"sync"
	"time"
)

// InvalidRequestWindow is how long discord counts invalid requests for.
const InvalidRequestWindow = 10 * time.Minute

// InvalidRequestWarning is raised every interval invalid requests.
type InvalidRequestWarning struct {
	Count         int
	RemainingTime time.Duration
}

// InvalidRequestTracker counts 401, 403 and 429 responses inside a rolling
// window. Discord bans clients that send too many of them.
type InvalidRequestTracker struct {
	mu sync.Mutex

	interval int
	count    int
	resetAt  time.Time

	now func() time.Time
}

// NewInvalidRequestTracker creates a tracker that warns every interval
// invalid requests. An interval <= 0 never warns.
func NewInvalidRequestTracker(interval int) *InvalidRequestTracker {
	return &InvalidRequestTracker{
		interval: interval,
		now:      time.Now,
	}
}

// Record counts one invalid request. It returns a warning when the count
// reached a multiple of the interval.
func (t *InvalidRequestTracker) Record() (InvalidRequestWarning, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()

	if t.resetAt.IsZero() || t.resetAt.Before(now) {
		t.resetAt = now.Add(InvalidRequestWindow)
		t.count = 0
	}

	t.count++

	if t.interval <= 0 || t.count%t.interval != 0 {
		return InvalidRequestWarning{}, false
	}

	return InvalidRequestWarning{
		Count:         t.count,
		RemainingTime: t.resetAt.Sub(now),
	}, true
}

// Count returns the invalid requests in the current window.
func (t *InvalidRequestTracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.resetAt.Before(t.now()) {
		return 0
	}

	return t.count
}

// Reset starts a new window.
func (t *InvalidRequestTracker) Reset() {
	t.mu.Lock()
	t.count = 0
	t.resetAt = time.Time{}
	t.mu.Unlock()
}
