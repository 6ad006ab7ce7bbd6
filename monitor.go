package ringbuffer

import (
	"context"
	"fmt"
	"sync"
)

// Monitor is the classic monitor-style blocking ring buffer: one mutex
// guards the head/tail/count/slot state directly (no atomics, no CAS) and
// two wait-conditions park full producers ("slot became free") and empty
// consumers ("slot became filled"). The simplest strategy to verify, and
// the correctness reference for the other two.
//
// The conditions are broadcast channels that are closed and replaced on
// every state transition, so a waiter can select on the condition and
// ctx.Done() at once. Every waiter re-checks its predicate after waking;
// the wait loop, not a single wait, is what tolerates multi-waiter races.
// Go mutexes hand off in FIFO order once a waiter is delayed, which keeps
// a fast producer/consumer pair from starving a blocked goroutine.
type Monitor[T any] struct {
	mu       sync.Mutex
	slots    []T
	head     int
	tail     int
	count    int
	notFull  chan struct{}
	notEmpty chan struct{}
}

// NewMonitor creates a monitor-based blocking ring buffer with the given
// capacity.
func NewMonitor[T any](capacity int) (*Monitor[T], error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &Monitor[T]{
		slots:    make([]T, capacity),
		notFull:  make(chan struct{}),
		notEmpty: make(chan struct{}),
	}, nil
}

var _ Ring[int] = (*Monitor[int])(nil)

// Put inserts item at the logical tail, suspending while the buffer is
// full. A cancelled wait returns with the lock released and no state
// change.
func (b *Monitor[T]) Put(ctx context.Context, item T) error {
	if isNil(item) {
		return ErrNilItem
	}

	b.mu.Lock()
	for b.count == len(b.slots) {
		free := b.notFull
		b.mu.Unlock()
		select {
		case <-free:
		case <-ctx.Done():
			return fmt.Errorf("ringbuffer: put interrupted: %w", ctx.Err())
		}
		b.mu.Lock()
	}

	b.slots[b.tail] = item
	b.tail = (b.tail + 1) % len(b.slots)
	b.count++

	// Slot became filled.
	close(b.notEmpty)
	b.notEmpty = make(chan struct{})
	b.mu.Unlock()
	return nil
}

// Take removes and returns the logical head item, suspending while the
// buffer is empty.
func (b *Monitor[T]) Take(ctx context.Context) (T, error) {
	var zero T

	b.mu.Lock()
	for b.count == 0 {
		filled := b.notEmpty
		b.mu.Unlock()
		select {
		case <-filled:
		case <-ctx.Done():
			return zero, fmt.Errorf("ringbuffer: take interrupted: %w", ctx.Err())
		}
		b.mu.Lock()
	}

	item := b.slots[b.head]
	b.slots[b.head] = zero // drop the reference, the slot is vacated
	b.head = (b.head + 1) % len(b.slots)
	b.count--

	// Slot became free.
	close(b.notFull)
	b.notFull = make(chan struct{})
	b.mu.Unlock()
	return item, nil
}

// Size returns the current occupancy. Always within [0, Capacity].
func (b *Monitor[T]) Size() int {
	b.mu.Lock()
	n := b.count
	b.mu.Unlock()
	return n
}

// IsEmpty reports whether the buffer currently holds no items.
func (b *Monitor[T]) IsEmpty() bool {
	return b.Size() == 0
}

// IsFull reports whether the buffer is currently at capacity.
func (b *Monitor[T]) IsFull() bool {
	return b.Size() == len(b.slots)
}

// Capacity returns the fixed buffer capacity.
func (b *Monitor[T]) Capacity() int {
	return len(b.slots)
}
