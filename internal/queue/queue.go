// Package queue implements the bounded admission queue (spec §4.3, C3): a
// fixed-capacity FIFO of pending CONNECT requests, backed by two counting
// semaphores (empty/full) and a mutex guarding the ring buffer's indices,
// matching the structure spec §4.3 describes directly rather than
// collapsing it into a single buffered channel.
package queue

import (
	"context"
	"sync"

	"github.com/pacmanist/pacmanserver/pkg/semaphore"
)

// Request holds the decoded CONNECT fields plus the level directory the
// eventual worker should use, per spec §4.3.
type Request struct {
	ReqPipe   string
	NotifPipe string
	LevelDir  string
}

// Queue is the bounded producer/consumer admission queue. The zero value
// is not usable; construct with New.
type Queue struct {
	mu    sync.Mutex
	buf   []Request
	head  int
	tail  int
	count int

	empty *semaphore.Semaphore // tokens == free slots; producer waits here
	full  *semaphore.Semaphore // tokens == filled slots; consumer waits here
}

// New creates a queue with the given capacity (spec §4.3 default: 10).
func New(capacity int) *Queue {
	return &Queue{
		buf:   make([]Request, capacity),
		empty: semaphore.NewFull(capacity, capacity),
		full:  semaphore.NewFull(capacity, 0),
	}
}

// Enqueue blocks until a free slot is available, then appends req. It is
// the producer side used by the registrar loop (C4). Per spec §7, a full
// queue blocks the registrar rather than dropping the request.
func (q *Queue) Enqueue(ctx context.Context, req Request) error {
	if err := q.empty.Wait(ctx); err != nil {
		return err
	}
	q.mu.Lock()
	q.buf[q.tail] = req
	q.tail = (q.tail + 1) % len(q.buf)
	q.count++
	q.mu.Unlock()
	q.full.Post()
	return nil
}

// Dequeue blocks until an entry is available, then removes and returns
// it. It is the consumer side used by each worker (C5).
func (q *Queue) Dequeue(ctx context.Context) (Request, error) {
	if err := q.full.Wait(ctx); err != nil {
		return Request{}, err
	}
	q.mu.Lock()
	req := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	q.mu.Unlock()
	q.empty.Post()
	return req, nil
}

// Depth returns the current number of queued entries, for the metrics
// gauge and for tests asserting backpressure (spec §8 scenario 3).
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Capacity returns the fixed queue capacity.
func (q *Queue) Capacity() int {
	return len(q.buf)
}
