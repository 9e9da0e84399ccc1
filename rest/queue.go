package rest

import (
	"context"
	"sync"
)

// asyncQueue hands out a single slot in the order callers asked for it.
type asyncQueue struct {
	mu      sync.Mutex
	waiters []chan struct{}
}

// Wait blocks until the caller holds the slot. Every successful Wait must
// be followed by Shift.
func (q *asyncQueue) Wait(ctx context.Context) error {
	ch := make(chan struct{})

	q.mu.Lock()
	q.waiters = append(q.waiters, ch)

	if len(q.waiters) == 1 {
		close(ch)
	}
	q.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		q.abandon(ch)

		return ctx.Err()
	}
}

// Shift releases the slot to the next waiter.
func (q *asyncQueue) Shift() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.shiftLocked()
}

// Remaining returns how many callers hold or wait for the slot.
func (q *asyncQueue) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.waiters)
}

func (q *asyncQueue) shiftLocked() {
	if len(q.waiters) == 0 {
		return
	}

	q.waiters[0] = nil
	q.waiters = q.waiters[1:]

	if len(q.waiters) > 0 {
		close(q.waiters[0])
	}
}

func (q *asyncQueue) abandon(ch chan struct{}) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, waiter := range q.waiters {
		if waiter != ch {
			continue
		}

		// The head already owns the slot, so it has to pass it on.
		if i == 0 {
			q.shiftLocked()
		} else {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
		}

		return
	}
}
