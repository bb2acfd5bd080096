// Package semaphore is a small counting semaphore built on a buffered
// channel, the idiomatic Go substitute for the POSIX named semaphores
// (sem_open/sem_wait/sem_post) the reference server uses: this process
// never shares the semaphore across process boundaries, so there is
// nothing un-idiomatic about making it a plain in-process token bucket
// (grounded in the connection-slot pattern of the Windows pipe server
// under other_examples/, which uses the same buffered-channel-as-token
// idiom for admission control).
package semaphore

import "context"

// Semaphore is a counting semaphore with capacity fixed at construction.
type Semaphore struct {
	tokens chan struct{}
}

// New creates a semaphore with the given capacity, initialized empty
// (zero tokens available) — callers add tokens with Post, or use NewFull
// to start pre-loaded.
func New(capacity int) *Semaphore {
	return &Semaphore{tokens: make(chan struct{}, capacity)}
}

// NewFull creates a semaphore with the given capacity and initial token
// count, matching sem_open's (capacity, value) pair.
func NewFull(capacity, initial int) *Semaphore {
	s := New(capacity)
	for i := 0; i < initial; i++ {
		s.tokens <- struct{}{}
	}
	return s
}

// Wait blocks until a token is available, consuming it.
func (s *Semaphore) Wait(ctx context.Context) error {
	select {
	case <-s.tokens:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Post returns a token to the semaphore. A Post beyond capacity is a
// programming error in the caller and is dropped rather than panicking,
// since spurious extra posts must never deadlock a session teardown path.
func (s *Semaphore) Post() {
	select {
	case s.tokens <- struct{}{}:
	default:
	}
}

// Available reports the number of tokens currently held, for metrics and
// tests; it is a snapshot and may be stale the instant it returns.
func (s *Semaphore) Available() int {
	return len(s.tokens)
}
