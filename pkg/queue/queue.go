package queue

import (
	"sync"
)

// Queue is an unbounded FIFO safe for concurrent use. Consumers wait on
// NotifyCh and drain with Next.
type Queue[T any] struct {
	queue    []T
	mu       sync.Mutex
	notifyCh chan struct{}
}

// New creates a new Queue
func New[T any]() *Queue[T] {
	return &Queue[T]{
		queue:    make([]T, 0),
		notifyCh: make(chan struct{}, 1),
	}
}

// Add appends an item and wakes one waiting consumer.
func (q *Queue[T]) Add(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queue = append(q.queue, item)
	q.signal()
}

// Next pops the oldest item, or returns false when the queue is empty. If
// items remain after the pop the notification is re-armed, so several
// consumers sharing NotifyCh all make progress.
func (q *Queue[T]) Next() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if len(q.queue) == 0 {
		return zero, false
	}
	item := q.queue[0]
	q.queue[0] = zero
	q.queue = q.queue[1:]
	if len(q.queue) > 0 {
		q.signal()
	}
	return item, true
}

// NotifyCh returns the notification channel
func (q *Queue[T]) NotifyCh() <-chan struct{} {
	return q.notifyCh
}

// IsEmpty checks if the queue is empty
func (q *Queue[T]) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue) == 0
}

// Len returns the current length of the queue
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// Drain removes and returns every queued item.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.queue
	q.queue = make([]T, 0)
	return items
}

func (q *Queue[T]) signal() {
	select {
	case q.notifyCh <- struct{}{}:
	default:
	}
}
