// Package queue provides the bounded FIFO that connects block producers to
// block consumers.
//
// The total number of items that will ever pass through a Queue is fixed at
// construction. Consumers learn that no more work exists from that count
// rather than from a sentinel item: once the consumed count reaches the
// total, Pop returns ErrDrained.
package queue

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrDrained is returned by Pop once every planned item has been consumed.
	ErrDrained = errors.New("queue drained")
	// ErrAborted wraps the cause passed to Abort.
	ErrAborted = errors.New("queue aborted")
	// ErrOverflow is returned by Push beyond the planned total.
	ErrOverflow = errors.New("push beyond planned total")
)

// MinCapacity is the smallest accepted queue capacity.
const MinCapacity = 2

// Stats is a snapshot of queue counters.
type Stats struct {
	Capacity  int
	Total     int
	Produced  int
	Consumed  int
	Occupied  int
	HighWater int
	PushWaits uint64
	PopWaits  uint64
}

// Queue is a fixed-capacity FIFO with blocking Push and Pop.
//
// The mutex guards only the slot ring and counters. Items are moved in and
// out by assignment; producers fill and consumers process items outside the
// lock.
type Queue[T any] struct {
	mu       sync.Mutex
	notFull  sync.Cond
	notEmpty sync.Cond

	slots []T
	head  int
	count int

	total    int
	produced int
	consumed int
	err      error

	highWater int
	pushWaits uint64
	popWaits  uint64
}

// New creates a queue of the given capacity through which exactly total
// items will pass.
func New[T any](capacity, total int) (*Queue[T], error) {
	if capacity < MinCapacity {
		return nil, fmt.Errorf("queue capacity %d below minimum %d", capacity, MinCapacity)
	}
	if total < 0 {
		return nil, fmt.Errorf("negative planned total %d", total)
	}
	q := &Queue[T]{slots: make([]T, capacity), total: total}
	q.notFull.L = &q.mu
	q.notEmpty.L = &q.mu
	return q, nil
}

// Push appends item, blocking while the queue is full. It fails if the queue
// was aborted or every planned item has already been pushed.
func (q *Queue[T]) Push(item T) error {
	q.mu.Lock()
	for q.count == len(q.slots) && q.err == nil {
		q.pushWaits++
		q.notFull.Wait()
	}
	if q.err != nil {
		err := q.err
		q.mu.Unlock()
		return err
	}
	if q.produced == q.total {
		q.mu.Unlock()
		return fmt.Errorf("%w (%d)", ErrOverflow, q.total)
	}

	q.slots[(q.head+q.count)%len(q.slots)] = item
	q.count++
	q.produced++
	if q.count > q.highWater {
		q.highWater = q.count
	}
	q.mu.Unlock()

	q.notEmpty.Signal()
	return nil
}

// Pop removes the oldest item, blocking while the queue is empty and more
// items are still to be produced. It returns ErrDrained once all planned
// items have been consumed.
func (q *Queue[T]) Pop() (T, error) {
	var zero T

	q.mu.Lock()
	for q.count == 0 && q.err == nil && q.consumed < q.total {
		q.popWaits++
		q.notEmpty.Wait()
	}
	if q.err != nil {
		err := q.err
		q.mu.Unlock()
		return zero, err
	}
	if q.count == 0 {
		q.mu.Unlock()
		// Wake other consumers so they observe the drained state too.
		q.notEmpty.Broadcast()
		return zero, ErrDrained
	}

	item := q.slots[q.head]
	q.slots[q.head] = zero
	q.head = (q.head + 1) % len(q.slots)
	q.count--
	q.consumed++
	q.mu.Unlock()

	q.notFull.Signal()
	return item, nil
}

// Abort wakes every blocked Push and Pop and makes all further calls fail
// with an error wrapping ErrAborted and cause. Only the first cause is kept.
func (q *Queue[T]) Abort(cause error) {
	q.mu.Lock()
	if q.err == nil {
		if cause == nil {
			q.err = ErrAborted
		} else {
			q.err = fmt.Errorf("%w: %w", ErrAborted, cause)
		}
	}
	q.mu.Unlock()

	q.notFull.Broadcast()
	q.notEmpty.Broadcast()
}

// Drain removes and returns every item still queued, without counting them
// as consumed. It is used to recycle items after an abort.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	items := make([]T, 0, q.count)
	for q.count > 0 {
		items = append(items, q.slots[q.head])
		q.slots[q.head] = zero
		q.head = (q.head + 1) % len(q.slots)
		q.count--
	}
	return items
}

// Drained reports whether every planned item has been consumed.
func (q *Queue[T]) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.consumed == q.total
}

// Stats returns a snapshot of the queue counters.
func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Capacity:  len(q.slots),
		Total:     q.total,
		Produced:  q.produced,
		Consumed:  q.consumed,
		Occupied:  q.count,
		HighWater: q.highWater,
		PushWaits: q.pushWaits,
		PopWaits:  q.popWaits,
	}
}
