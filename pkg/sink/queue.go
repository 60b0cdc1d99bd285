package sink

import "sync"

// ringQueue is a bounded FIFO that evicts the oldest item when full.
type ringQueue[T any] struct {
	mu      sync.Mutex
	items   []T
	head    int
	size    int
	dropped uint64
	ready   chan struct{}
}

func newRingQueue[T any](capacity int) *ringQueue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &ringQueue[T]{
		items: make([]T, capacity),
		ready: make(chan struct{}, 1),
	}
}

// push adds v and reports whether an older item was evicted.
func (q *ringQueue[T]) push(v T) bool {
	q.mu.Lock()
	evicted := false
	if q.size == len(q.items) {
		q.head = (q.head + 1) % len(q.items)
		q.size--
		q.dropped++
		evicted = true
	}
	q.items[(q.head+q.size)%len(q.items)] = v
	q.size++
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return evicted
}

// drain appends up to max items to dst (max <= 0 takes everything).
func (q *ringQueue[T]) drain(dst []T, max int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.size
	if max > 0 && max < n {
		n = max
	}
	var zero T
	for i := 0; i < n; i++ {
		dst = append(dst, q.items[q.head])
		q.items[q.head] = zero
		q.head = (q.head + 1) % len(q.items)
	}
	q.size -= n
	if q.size > 0 {
		select {
		case q.ready <- struct{}{}:
		default:
		}
	}
	return dst
}

// popWhile removes items from the front while keep accepts them.
func (q *ringQueue[T]) popWhile(dst []T, keep func(T) bool) []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	for q.size > 0 && keep(q.items[q.head]) {
		dst = append(dst, q.items[q.head])
		q.items[q.head] = zero
		q.head = (q.head + 1) % len(q.items)
		q.size--
	}
	return dst
}

func (q *ringQueue[T]) reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	for i := range q.items {
		q.items[i] = zero
	}
	q.head, q.size = 0, 0
}

func (q *ringQueue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

func (q *ringQueue[T]) droppedCount() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
