// Package syncx provides concurrency primitives shared by the transfer
// engine: a counting semaphore with FIFO waiters, dynamic resize and purge.
package syncx

import (
	"context"
	"errors"
	"sync"
)

// ErrPurged is returned from Acquire to every waiter rejected by Purge.
var ErrPurged = errors.New("semaphore purged")

type waiter struct {
	ready chan error
}

// Semaphore is a counting concurrency gate. At most max holders may be
// inside at once; additional callers queue in FIFO order. Unlike
// golang.org/x/sync/semaphore it supports resizing the capacity at runtime
// and rejecting all queued waiters at once, which the transfer engine needs
// for stop-all semantics.
type Semaphore struct {
	mu      sync.Mutex
	max     int
	count   int
	waiters []*waiter
}

// NewSemaphore creates a semaphore admitting up to max concurrent holders.
// max below 1 is treated as 1.
func NewSemaphore(max int) *Semaphore {
	if max < 1 {
		max = 1
	}
	return &Semaphore{max: max}
}

// Acquire blocks until a slot is available, the context is cancelled, or the
// semaphore is purged. Waiters are admitted strictly in arrival order.
func (s *Semaphore) Acquire(ctx context.Context) error {
	s.mu.Lock()
	if s.count < s.max && len(s.waiters) == 0 {
		s.count++
		s.mu.Unlock()
		return nil
	}

	w := &waiter{ready: make(chan error, 1)}
	s.waiters = append(s.waiters, w)
	s.mu.Unlock()

	select {
	case err := <-w.ready:
		return err
	case <-ctx.Done():
		s.mu.Lock()
		removed := s.remove(w)
		s.mu.Unlock()
		if !removed {
			// Promotion raced with cancellation: the slot was already
			// granted, so hand it back before reporting the cancel.
			select {
			case err := <-w.ready:
				if err == nil {
					s.Release()
				}
			default:
			}
		}
		return ctx.Err()
	}
}

// Release frees one slot and promotes the head-of-queue waiter if capacity
// allows. Releasing below zero is clamped so the FIFO order stays intact.
func (s *Semaphore) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count--
	if s.count < 0 {
		s.count = 0
	}
	s.promote()
}

// Count returns the current holder count. Diagnostic only.
func (s *Semaphore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Cap returns the current capacity.
func (s *Semaphore) Cap() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.max
}

// SetMax changes the capacity for future acquisitions. Current holders are
// never evicted; growing the capacity promotes queued waiters immediately.
func (s *Semaphore) SetMax(max int) {
	if max < 1 {
		max = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.max = max
	s.promote()
}

// Purge rejects every queued waiter with ErrPurged, resets the holder count
// to zero and returns the number of waiters that were rejected.
func (s *Semaphore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.waiters)
	for _, w := range s.waiters {
		w.ready <- ErrPurged
	}
	s.waiters = nil
	s.count = 0
	return n
}

// promote admits queued waiters while capacity allows. Caller must hold mu.
func (s *Semaphore) promote() {
	for len(s.waiters) > 0 && s.count < s.max {
		w := s.waiters[0]
		s.waiters = s.waiters[1:]
		s.count++
		w.ready <- nil
	}
}

// remove deletes w from the wait queue. Caller must hold mu. Returns false
// when w is no longer queued (already promoted or purged).
func (s *Semaphore) remove(w *waiter) bool {
	for i, cur := range s.waiters {
		if cur == w {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			return true
		}
	}
	return false
}
