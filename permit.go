package ringbuffer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Permit is a permit-gated lock-free ring buffer. Two counting permit
// pools provide backpressure: free starts at capacity, filled at zero.
// Put blocks acquiring a free permit, so it can make no progress before a
// slot is actually available; Take blocks acquiring a filled permit. The
// cursor update itself stays a CAS on an immutable snapshot, but the
// install-and-write sequence is serialized by a coarse guard so a consumer
// can never observe an incremented count before the slot write is visible.
//
// No busy-waiting, no spurious failure; the guard serializes installers.
type Permit[T any] struct {
	capacity int
	slots    []atomic.Pointer[T]
	state    atomic.Pointer[cursor]

	mu     sync.Mutex // serializes CAS success with the slot write
	free   *semaphore.Weighted
	filled *semaphore.Weighted
}

// NewPermit creates a permit-gated ring buffer with the given capacity.
func NewPermit[T any](capacity int) (*Permit[T], error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}

	b := &Permit[T]{
		capacity: capacity,
		slots:    make([]atomic.Pointer[T], capacity),
		free:     semaphore.NewWeighted(int64(capacity)),
		filled:   semaphore.NewWeighted(int64(capacity)),
	}
	b.state.Store(&cursor{})

	// filled starts drained: no item, no permit.
	if !b.filled.TryAcquire(int64(capacity)) {
		panic("unreached")
	}
	return b, nil
}

var _ Ring[int] = (*Permit[int])(nil)

// Put inserts item at the logical tail, blocking until a slot is free or
// ctx is done. A cancelled wait consumes no permit and mutates nothing.
func (b *Permit[T]) Put(ctx context.Context, item T) error {
	if isNil(item) {
		return ErrNilItem
	}

	if err := b.free.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("ringbuffer: put interrupted: %w", err)
	}

	b.mu.Lock()
	for {
		cur := b.state.Load()
		next := cur.pushed(b.capacity)
		if b.state.CompareAndSwap(cur, next) {
			v := item
			b.slots[cur.tail].Store(&v)
			break
		}
	}
	b.mu.Unlock()

	// Wake one blocked consumer.
	b.filled.Release(1)
	return nil
}

// Take removes and returns the logical head item, blocking until an item
// is present or ctx is done.
func (b *Permit[T]) Take(ctx context.Context) (T, error) {
	var zero T

	if err := b.filled.Acquire(ctx, 1); err != nil {
		return zero, fmt.Errorf("ringbuffer: take interrupted: %w", err)
	}

	var item T
	b.mu.Lock()
	for {
		cur := b.state.Load()
		p := b.slots[cur.head].Load()
		if p == nil {
			// Put publishes the slot before releasing the filled permit,
			// so a held permit implies a visible head slot.
			panic("unreached")
		}
		next := cur.popped(b.capacity)
		if b.state.CompareAndSwap(cur, next) {
			b.slots[cur.head].Store(nil)
			item = *p
			break
		}
	}
	b.mu.Unlock()

	// Wake one blocked producer.
	b.free.Release(1)
	return item, nil
}

// Size returns the occupancy of the current snapshot. May be immediately
// stale, never outside [0, Capacity].
func (b *Permit[T]) Size() int {
	return b.state.Load().count
}

// IsEmpty reports whether the current snapshot holds no items.
func (b *Permit[T]) IsEmpty() bool {
	return b.Size() == 0
}

// IsFull reports whether the current snapshot is at capacity.
func (b *Permit[T]) IsFull() bool {
	return b.Size() == b.capacity
}

// Capacity returns the fixed buffer capacity.
func (b *Permit[T]) Capacity() int {
	return b.capacity
}
