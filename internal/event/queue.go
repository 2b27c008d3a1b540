package event

import (
	"sync"
)

// DefaultCapacity is used when a queue is created with a non-positive capacity.
const DefaultCapacity = 1024

// DropReason says why the queue discarded an event.
type DropReason string

const (
	// DropFullSyncEvicted: an old FULL_SYNC was evicted to make room.
	DropFullSyncEvicted DropReason = "full_sync_evicted"
	// DropCoalesced: an older UPDATE was replaced by a newer one for the same object.
	DropCoalesced DropReason = "update_coalesced"
	// DropRejected: the queue was full and the incoming event was discardable.
	DropRejected DropReason = "rejected"
	// DropClosed: the queue was closed.
	DropClosed DropReason = "closed"
)

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithDropHook registers a callback invoked (under the queue lock) for every
// discarded event. The hook must not call back into the queue.
func WithDropHook(fn func(Event, DropReason)) QueueOption {
	return func(q *Queue) {
		q.onDrop = fn
	}
}

// WithIDGenerator overrides the UUIDv7 id generator.
func WithIDGenerator(g IDGenerator) QueueOption {
	return func(q *Queue) {
		q.ids = g
	}
}

// Queue is a bounded, thread-safe FIFO with a single consumer.
//
// Producers (bus subscribers, schedulers) call Enqueue from any goroutine;
// the reconciler drains it with TryDequeue and Wait. Events are stamped with
// an arrival Seq and an id on admission.
//
// On overflow the queue never blocks a producer:
//  1. the oldest queued FULL_SYNC is evicted first;
//  2. failing that, an incoming UPDATE replaces the queued UPDATE for the
//     same (origin, kind, id) and moves to the tail;
//  3. CREATE and DELETE are always admitted, even beyond capacity;
//  4. any other UPDATE or FULL_SYNC is rejected.
type Queue struct {
	mu       sync.Mutex
	events   []Event
	capacity int
	closed   bool
	signal   chan struct{} // buffered, size 1
	clock    Clock
	ids      IDGenerator
	onDrop   func(Event, DropReason)
}

// NewQueue creates an empty queue bounded at capacity.
func NewQueue(capacity int, opts ...QueueOption) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	q := &Queue{
		events:   make([]Event, 0, min(capacity, 64)),
		capacity: capacity,
		signal:   make(chan struct{}, 1),
		ids:      UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue adds e at the tail subject to the overflow policy.
// It reports whether e was admitted.
func (q *Queue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.drop(e, DropClosed)
		return false
	}

	if len(q.events) >= q.capacity && !q.makeRoom(e) {
		return false
	}

	if e.ID == "" {
		e.ID = q.ids.Generate()
	}
	e.Seq = q.clock.Next()
	q.events = append(q.events, e)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// makeRoom applies the overflow policy for incoming e on a full queue.
// It returns false when e must be rejected.
func (q *Queue) makeRoom(e Event) bool {
	if i := q.indexOf(func(x Event) bool { return x.Type == TypeFullSync }); i >= 0 {
		q.drop(q.events[i], DropFullSyncEvicted)
		q.removeAt(i)
		return true
	}

	switch e.Type {
	case TypeCreate, TypeDelete:
		return true
	case TypeUpdate:
		i := q.indexOf(func(x Event) bool {
			return x.Type == TypeUpdate && x.Origin == e.Origin && x.Kind == e.Kind && x.ObjectID == e.ObjectID
		})
		if i >= 0 {
			q.drop(q.events[i], DropCoalesced)
			q.removeAt(i)
			return true
		}
	}

	q.drop(e, DropRejected)
	return false
}

func (q *Queue) indexOf(pred func(Event) bool) int {
	for i, e := range q.events {
		if pred(e) {
			return i
		}
	}
	return -1
}

func (q *Queue) removeAt(i int) {
	copy(q.events[i:], q.events[i+1:])
	q.events[len(q.events)-1] = Event{}
	q.events = q.events[:len(q.events)-1]
}

func (q *Queue) drop(e Event, reason DropReason) {
	if q.onDrop != nil {
		q.onDrop(e, reason)
	}
}

// TryDequeue removes and returns the head without blocking.
// Returns (Event{}, false) if the queue is empty.
func (q *Queue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]
	// Clear the slot so the backing array does not retain object attributes.
	q.events[0] = Event{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Wait returns a channel that signals when events may be available.
// Use with select for context-aware waiting:
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-q.Wait():
//	    // TryDequeue
//	}
func (q *Queue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Capacity returns the configured bound.
func (q *Queue) Capacity() int {
	return q.capacity
}

// Close stops admission and wakes any waiter. Queued events stay drainable.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// Drained reports whether the queue is closed and empty.
func (q *Queue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.events) == 0
}
