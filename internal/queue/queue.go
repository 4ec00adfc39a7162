// Package queue is the FIFO of pending job names shared by the notifier
// (producer) and the dispatcher (consumer).
package queue

import (
	"container/list"
	"sync/atomic"

	"seqmap/internal/gate"
)

// Queue is an unbounded FIFO of job names guarded by two gates: access
// (mutual exclusion, starts at 1) and avail (pending items, starts at the
// seeded count). After Terminate, Pop returns ok=false without dequeuing.
type Queue struct {
	items      *list.List
	access     *gate.Gate
	avail      *gate.Gate
	terminated atomic.Bool
	size       atomic.Int64
}

// New returns a queue holding seed in order.
func New(seed []string) *Queue {
	q := &Queue{items: list.New(), access: gate.New(1), avail: gate.New(uint64(len(seed)))}
	for _, s := range seed {
		q.items.PushBack(s)
	}
	q.size.Store(int64(len(seed)))
	return q
}

// Push appends name and signals one pending item.
func (q *Queue) Push(name string) {
	q.access.Wait()
	q.items.PushBack(name)
	q.size.Add(1)
	q.access.Post()
	q.avail.Post()
}

// Pop blocks until an item is pending or the queue is terminated.
func (q *Queue) Pop() (string, bool) {
	q.avail.Wait()
	if q.terminated.Load() {
		q.avail.Post() // chain the wake-up to any other waiter
		return "", false
	}
	q.access.Wait()
	front := q.items.Front()
	q.items.Remove(front)
	q.size.Add(-1)
	q.access.Post()
	return front.Value.(string), true
}

// Terminate makes the current and every later Pop return ok=false.
// Safe to call more than once.
func (q *Queue) Terminate() {
	q.terminated.Store(true)
	q.avail.Post()
}

// Terminated reports whether Terminate was called.
func (q *Queue) Terminated() bool { return q.terminated.Load() }

// Len is the number of pending items.
func (q *Queue) Len() int { return int(q.size.Load()) }
