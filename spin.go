package ringbuffer

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync/atomic"

	"github.com/valyala/fastrand"
)

const yieldEvery = 64 // reduce runtime.Gosched() frequency in hot retry loops

// Spin is a bounded-retry lock-free ring buffer. Producers and consumers
// race via CAS on a single immutable cursor snapshot; on contention or a
// full/empty buffer they busy-retry up to the configured attempt budget,
// then fail with ErrFull or ErrEmpty instead of blocking.
//
// An exhausted budget does not distinguish "genuinely full/empty" from
// "lost too many CAS races". That ambiguity is the price of never taking
// a lock: tune the budget to the expected contention, or leave it at the
// effectively-unbounded default.
type Spin[T any] struct {
	// Optional padding to avoid false sharing between hot fields.
	_           [64]byte
	capacity    int
	maxAttempts uint64
	slots       []atomic.Pointer[T]
	_           [64]byte
	state       atomic.Pointer[cursor]
	_           [64]byte

	putAttempts  atomic.Uint64
	putRaceLost  atomic.Uint64
	putFull      atomic.Uint64
	takeAttempts atomic.Uint64
	takeRaceLost atomic.Uint64
	takeNotReady atomic.Uint64
	takeEmpty    atomic.Uint64
}

// SpinStats is a snapshot of the Spin retry counters.
type SpinStats struct {
	PutAttempts  uint64
	PutRaceLost  uint64
	PutFull      uint64
	TakeAttempts uint64
	TakeRaceLost uint64
	TakeNotReady uint64
	TakeEmpty    uint64
}

type spinConfig struct {
	maxAttempts uint64
}

// SpinOption configures a Spin buffer at construction.
type SpinOption func(*spinConfig)

// WithMaxAttempts bounds the number of attempts a single Put or Take may
// spend before failing with ErrFull or ErrEmpty. Exhausting the budget is
// a designed outcome, not an exceptional one. The default budget is
// effectively unbounded.
func WithMaxAttempts(n uint64) SpinOption {
	return func(c *spinConfig) {
		c.maxAttempts = n
	}
}

// NewSpin creates a bounded-retry lock-free ring buffer with the given
// capacity.
func NewSpin[T any](capacity int, opts ...SpinOption) (*Spin[T], error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}

	cfg := spinConfig{maxAttempts: math.MaxUint64}
	for _, opt := range opts {
		opt(&cfg)
	}

	b := &Spin[T]{
		capacity:    capacity,
		maxAttempts: cfg.maxAttempts,
		slots:       make([]atomic.Pointer[T], capacity),
	}
	b.state.Store(&cursor{})
	return b, nil
}

var _ Ring[int] = (*Spin[int])(nil)

// Put inserts item at the logical tail. It never suspends: a full buffer
// or a lost CAS race burns one attempt and retries. After maxAttempts the
// call fails with ErrFull, leaving the buffer untouched.
func (b *Spin[T]) Put(ctx context.Context, item T) error {
	if isNil(item) {
		return ErrNilItem
	}

	b.putAttempts.Add(1)
	var spins uint32
	for attempt := uint64(0); attempt < b.maxAttempts; attempt++ {
		cur := b.state.Load()

		if cur.count == b.capacity {
			// Full right now. The attempt is unproductive; look again.
			if err := pause(ctx, &spins); err != nil {
				return fmt.Errorf("ringbuffer: put interrupted: %w", err)
			}
			continue
		}

		next := cur.pushed(b.capacity)
		if b.state.CompareAndSwap(cur, next) {
			// We won the slot at the old tail; publish the value.
			v := item
			b.slots[cur.tail].Store(&v)
			return nil
		}

		// Another goroutine mutated state first.
		b.putRaceLost.Add(1)
		if err := pause(ctx, &spins); err != nil {
			return fmt.Errorf("ringbuffer: put interrupted: %w", err)
		}
	}

	b.putFull.Add(1)
	return ErrFull
}

// Take removes and returns the logical head item. Symmetric to Put: an
// empty buffer, a head slot whose write is not yet visible, or a lost CAS
// race each burn one attempt. After maxAttempts the call fails with
// ErrEmpty.
//
// The item is claimed out of the slot before the cursor is advanced. A
// slot therefore never changes once its position has been published, so a
// producer wrapping around to the same physical slot can never collide
// with a consumer still vacating it.
func (b *Spin[T]) Take(ctx context.Context) (T, error) {
	var zero T

	b.takeAttempts.Add(1)
	var spins uint32
	for attempt := uint64(0); attempt < b.maxAttempts; attempt++ {
		cur := b.state.Load()

		if cur.count == 0 {
			if err := pause(ctx, &spins); err != nil {
				return zero, fmt.Errorf("ringbuffer: take interrupted: %w", err)
			}
			continue
		}

		p := b.slots[cur.head].Load()
		if p == nil {
			// Either the producer's slot write is not yet visible, or
			// another consumer holds the item mid-claim. Give it a moment.
			b.takeNotReady.Add(1)
			if err := pause(ctx, &spins); err != nil {
				return zero, fmt.Errorf("ringbuffer: take interrupted: %w", err)
			}
			continue
		}

		if !b.slots[cur.head].CompareAndSwap(p, nil) {
			// Another consumer claimed this item first.
			b.takeRaceLost.Add(1)
			if err := pause(ctx, &spins); err != nil {
				return zero, fmt.Errorf("ringbuffer: take interrupted: %w", err)
			}
			continue
		}

		next := cur.popped(b.capacity)
		if b.state.CompareAndSwap(cur, next) {
			return *p, nil
		}

		// We hold the item but lost the position race: the cursor moved
		// under us. Put the item back; no other goroutine touches a nil
		// head slot, so the restore cannot clobber anything.
		b.slots[cur.head].Store(p)
		b.takeRaceLost.Add(1)
		if err := pause(ctx, &spins); err != nil {
			return zero, fmt.Errorf("ringbuffer: take interrupted: %w", err)
		}
	}

	b.takeEmpty.Add(1)
	return zero, ErrEmpty
}

// Size returns the occupancy of the current snapshot. May be immediately
// stale, never outside [0, Capacity].
func (b *Spin[T]) Size() int {
	return b.state.Load().count
}

// IsEmpty reports whether the current snapshot holds no items.
func (b *Spin[T]) IsEmpty() bool {
	return b.Size() == 0
}

// IsFull reports whether the current snapshot is at capacity.
func (b *Spin[T]) IsFull() bool {
	return b.Size() == b.capacity
}

// Capacity returns the fixed buffer capacity.
func (b *Spin[T]) Capacity() int {
	return b.capacity
}

// Stats retrieves the current retry counters.
func (b *Spin[T]) Stats() SpinStats {
	return SpinStats{
		PutAttempts:  b.putAttempts.Load(),
		PutRaceLost:  b.putRaceLost.Load(),
		PutFull:      b.putFull.Load(),
		TakeAttempts: b.takeAttempts.Load(),
		TakeRaceLost: b.takeRaceLost.Load(),
		TakeNotReady: b.takeNotReady.Load(),
		TakeEmpty:    b.takeEmpty.Load(),
	}
}

// pause throttles a busy-retry loop. Most iterations pure-spin; yields
// happen on a fixed cadence plus a random jitter so contending goroutines
// do not march in lockstep. Context errors are checked on the same cadence
// so an abandoned caller stops early instead of spinning its budget down.
func pause(ctx context.Context, spins *uint32) error {
	*spins++
	if *spins%yieldEvery == 0 || fastrand.Uint32n(4*yieldEvery) == 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		runtime.Gosched()
	}
	return nil
}
