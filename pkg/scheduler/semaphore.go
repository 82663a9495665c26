// Package scheduler runs declarative skills as a bounded-concurrency graph
// of task agents.
package scheduler

import (
	"container/list"
	"context"
	"sync"
)

// Semaphore is a counting semaphore with a FIFO waiter queue: when a slot
// is released while goroutines are waiting, it is handed directly to the
// longest-waiting one rather than reopened for general acquisition. A bare
// buffered channel does not give this guarantee — multiple blocked
// goroutines racing to receive from it are served in an unspecified order —
// so waiters here queue explicitly and are woken one at a time, in order.
type Semaphore struct {
	mu      sync.Mutex
	cur     int
	max     int
	waiters *list.List // of chan struct{}
}

// NewSemaphore creates a semaphore that admits up to max concurrent
// holders. max <= 0 is treated as 1.
func NewSemaphore(max int) *Semaphore {
	if max <= 0 {
		max = 1
	}
	return &Semaphore{max: max, waiters: list.New()}
}

// Acquire blocks until a slot is available or ctx is done. On context
// cancellation it removes itself from the waiter queue (if it had not
// already been woken) and returns ctx.Err().
func (s *Semaphore) Acquire(ctx context.Context) error {
	s.mu.Lock()
	if s.cur < s.max && s.waiters.Len() == 0 {
		s.cur++
		s.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	elem := s.waiters.PushBack(ready)
	s.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		select {
		case <-ready:
			// Already handed a slot between ctx firing and us taking the
			// lock; release it back rather than drop it on the floor.
			s.mu.Unlock()
			s.Release()
		default:
			s.waiters.Remove(elem)
			s.mu.Unlock()
		}
		return ctx.Err()
	}
}

// Release frees one slot, handing it directly to the longest-waiting
// blocked Acquire call if one exists; otherwise the slot becomes available
// for the next Acquire to claim immediately.
func (s *Semaphore) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	front := s.waiters.Front()
	if front == nil {
		s.cur--
		return
	}
	s.waiters.Remove(front)
	close(front.Value.(chan struct{}))
	// cur is unchanged: the slot passes directly from this releaser to the
	// woken waiter without ever becoming generally available.
}

// Len reports the number of slots currently held (for tests/observability).
func (s *Semaphore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}
