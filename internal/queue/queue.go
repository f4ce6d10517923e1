// Package queue implements the ingestion pipeline's bounded MPMC work
// queue (C5): a capacity-bounded buffer of SequenceRecord values shared
// between the ingress readers (producers) and the worker pool
// (consumers).
package queue

import (
	"sync"

	"github.com/inchrosil/dnapipe/internal/pipeerr"
)

// Queue is a bounded multi-producer, multi-consumer queue of
// SequenceRecord values. It is safe for concurrent use by any number of
// producers and consumers.
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	items    []SequenceRecord
	capacity int
	closed   bool
}

// New creates a Queue with the given bounded capacity.
func New(capacity int) *Queue {
	q := &Queue{capacity: capacity}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Push blocks until space is available or the queue is closed. A push
// to a closed queue returns pipeerr.ErrClosed, as does a push that was
// blocked when Close was called. A push that observably completes
// before another push on the same goroutine is popped in that order.
func (q *Queue) Push(rec SequenceRecord) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) >= q.capacity && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		return pipeerr.ErrClosed
	}

	q.items = append(q.items, rec)
	q.notEmpty.Signal()
	return nil
}

// Pop blocks until a record is available. It returns ok=false — the
// ShutdownNoMoreWork signal — only once the queue has been closed and
// drained.
func (q *Queue) Pop() (SequenceRecord, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if len(q.items) == 0 {
		return SequenceRecord{}, false
	}

	rec := q.items[0]
	q.items = q.items[1:]
	q.notFull.Signal()
	return rec, true
}

// Close is idempotent and wakes every blocked Push and Pop. Pops
// continue to drain any buffered records before returning
// ShutdownNoMoreWork.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Len returns the current number of buffered records, for status
// reporting and metrics.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
