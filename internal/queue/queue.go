package queue

import "sync"

// Queue is an unbounded FIFO. Push never blocks, so a producer reading off a
// socket is never held up by slow consumers.
type Queue struct {
	mu    sync.Mutex
	items []interface{}

	// ready holds a token whenever items may be non-empty
	ready chan struct{}
}

func New() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

func (q *Queue) Push(v interface{}) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()

	q.signal()
}

// TryPop removes the oldest item without blocking.
func (q *Queue) TryPop() (interface{}, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}

	v := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]

	if len(q.items) > 0 {
		q.signal()
	}

	return v, true
}

// Ready receives a token after a Push. A token only means the queue may be
// non-empty; consumers must still TryPop.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
