// Package ringbuffer provides a bounded, thread-safe circular buffer for
// handing items from producer goroutines to consumer goroutines, in three
// interchangeable synchronization strategies:
//
//   - Spin: lock-free CAS with a bounded retry budget; fails fast instead
//     of blocking.
//   - Permit: lock-free CAS gated by counting permits; blocks with
//     backpressure instead of busy-retrying.
//   - Monitor: classic mutex-plus-conditions blocking; the reference
//     implementation for correctness.
//
// All three satisfy the same Ring contract and manage the same logical
// state: a head index, a tail index, an authoritative occupancy count and
// a fixed array of slots.
package ringbuffer

import (
	"context"
	"errors"
	"reflect"
)

var (
	// ErrInvalidCapacity is returned by constructors for capacity <= 0.
	ErrInvalidCapacity = errors.New("ringbuffer: capacity must be positive")

	// ErrNilItem is returned by Put before any synchronization when the
	// item is a nil value of a nilable kind.
	ErrNilItem = errors.New("ringbuffer: nil item")

	// ErrFull is returned by Spin.Put when the retry budget is exhausted
	// while the buffer appeared full.
	ErrFull = errors.New("ringbuffer: buffer full")

	// ErrEmpty is returned by Spin.Take when the retry budget is exhausted
	// while the buffer appeared empty.
	ErrEmpty = errors.New("ringbuffer: buffer empty")
)

// Ring is the shared contract of all buffer strategies.
//
// Put and Take may block (Permit, Monitor) or busy-retry (Spin) when the
// buffer is full or empty; ctx cancels a blocked call, which then leaves
// shared state exactly as if it had never started. Size is a snapshot that
// may be immediately stale under concurrent mutation but is always within
// [0, Capacity]. IsEmpty and IsFull carry the same staleness caveat.
type Ring[T any] interface {
	Put(ctx context.Context, item T) error
	Take(ctx context.Context) (T, error)
	Size() int
	IsEmpty() bool
	IsFull() bool
	Capacity() int
}

// cursor is one immutable snapshot of buffer occupancy. head is the next
// slot to consume, tail the next slot to fill, both in [0, capacity).
// count is the authoritative occupancy: head == tail is ambiguous between
// empty and full, so the triple is always read and replaced as a unit.
type cursor struct {
	head  int
	tail  int
	count int
}

// pushed returns the snapshot after one insert at tail.
func (c cursor) pushed(capacity int) *cursor {
	return &cursor{head: c.head, tail: (c.tail + 1) % capacity, count: c.count + 1}
}

// popped returns the snapshot after one removal at head.
func (c cursor) popped(capacity int) *cursor {
	return &cursor{head: (c.head + 1) % capacity, tail: c.tail, count: c.count - 1}
}

// isNil reports whether item is a nil value of a nilable kind. Values of
// non-nilable kinds can never be absent and always pass.
func isNil(item any) bool {
	if item == nil {
		return true
	}
	v := reflect.ValueOf(item)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return v.IsNil()
	default:
		return false
	}
}
