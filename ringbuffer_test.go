package ringbuffer

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastrand"
)

// strategies builds one buffer of each strategy for contract tests that
// must hold uniformly.
func strategies(capacity int) map[string]func() (Ring[int], error) {
	return map[string]func() (Ring[int], error){
		"spin":    func() (Ring[int], error) { return NewSpin[int](capacity) },
		"permit":  func() (Ring[int], error) { return NewPermit[int](capacity) },
		"monitor": func() (Ring[int], error) { return NewMonitor[int](capacity) },
	}
}

func TestConstructInvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		_, err := NewSpin[int](capacity)
		require.ErrorIs(t, err, ErrInvalidCapacity, "spin capacity=%d", capacity)

		_, err = NewPermit[int](capacity)
		require.ErrorIs(t, err, ErrInvalidCapacity, "permit capacity=%d", capacity)

		_, err = NewMonitor[int](capacity)
		require.ErrorIs(t, err, ErrInvalidCapacity, "monitor capacity=%d", capacity)
	}
}

func TestPutNilItemRejected(t *testing.T) {
	nilable := map[string]func() (Ring[*int], error){
		"spin":    func() (Ring[*int], error) { return NewSpin[*int](4) },
		"permit":  func() (Ring[*int], error) { return NewPermit[*int](4) },
		"monitor": func() (Ring[*int], error) { return NewMonitor[*int](4) },
	}

	for name, construct := range nilable {
		t.Run(name, func(t *testing.T) {
			buf, err := construct()
			require.NoError(t, err)

			err = buf.Put(context.Background(), nil)
			require.ErrorIs(t, err, ErrNilItem)
			assert.Equal(t, 0, buf.Size(), "failed Put must leave size unchanged")

			v := 42
			require.NoError(t, buf.Put(context.Background(), &v))
			assert.Equal(t, 1, buf.Size())
		})
	}
}

func TestIsNilKinds(t *testing.T) {
	var p *int
	var m map[string]int
	var s []int
	var ch chan int
	var fn func()
	var iface error

	assert.True(t, isNil(p))
	assert.True(t, isNil(m))
	assert.True(t, isNil(s))
	assert.True(t, isNil(ch))
	assert.True(t, isNil(fn))
	assert.True(t, isNil(iface))
	assert.True(t, isNil(nil))

	v := 1
	assert.False(t, isNil(&v))
	assert.False(t, isNil(0))
	assert.False(t, isNil(""))
	assert.False(t, isNil(struct{}{}))
}

// Round-trip: insert 0..capacity-1 into an empty buffer, drain fully,
// expect the same items in the same relative order.
func TestRoundTripOrder(t *testing.T) {
	const capacity = 64
	ctx := context.Background()

	for name, construct := range strategies(capacity) {
		t.Run(name, func(t *testing.T) {
			buf, err := construct()
			require.NoError(t, err)
			require.Equal(t, capacity, buf.Capacity())

			for i := 0; i < capacity; i++ {
				require.NoError(t, buf.Put(ctx, i))
			}
			require.True(t, buf.IsFull())
			require.Equal(t, capacity, buf.Size())

			for i := 0; i < capacity; i++ {
				v, err := buf.Take(ctx)
				require.NoError(t, err)
				require.Equal(t, i, v, "FIFO violated at %d", i)
			}
			require.True(t, buf.IsEmpty())
			require.Equal(t, 0, buf.Size())
		})
	}
}

// Repeated queries with no intervening mutation return the same result.
func TestQueryIdempotence(t *testing.T) {
	const capacity = 4
	ctx := context.Background()

	for name, construct := range strategies(capacity) {
		t.Run(name, func(t *testing.T) {
			buf, err := construct()
			require.NoError(t, err)

			for i := 0; i < 3; i++ {
				assert.True(t, buf.IsEmpty())
				assert.False(t, buf.IsFull())
				assert.Equal(t, 0, buf.Size())
			}

			require.NoError(t, buf.Put(ctx, 7))
			for i := 0; i < 3; i++ {
				assert.False(t, buf.IsEmpty())
				assert.False(t, buf.IsFull())
				assert.Equal(t, 1, buf.Size())
			}
		})
	}
}

// testTenByThousand runs the heavy multi-producer/multi-consumer scenario:
// 10 producers insert 1000 items each, numbered 0..9999 through a shared
// atomic counter, while 10 consumers drain concurrently. Exactly 10000
// items must be collected, each number exactly once.
func testTenByThousand(t *testing.T, construct func() (Ring[int], error)) {
	t.Helper()
	const (
		producers   = 10
		consumers   = 10
		perProducer = 1000
		total       = producers * perProducer
	)
	ctx := context.Background()

	buf, err := construct()
	require.NoError(t, err)

	seen := make([]int32, total)
	var next atomic.Int64    // shared numbering across producers
	var tickets atomic.Int64 // consumer take claims

	var wg sync.WaitGroup
	wg.Add(consumers)
	for c := 0; c < consumers; c++ {
		go func() {
			defer wg.Done()
			for {
				if tickets.Add(1) > total {
					return
				}
				v, err := buf.Take(ctx)
				if err != nil {
					t.Errorf("consumer: take failed: %v", err)
					return
				}
				atomic.AddInt32(&seen[v], 1)
			}
		}()
	}

	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				v := int(next.Add(1) - 1)
				if err := buf.Put(ctx, v); err != nil {
					t.Errorf("producer: put failed: %v", err)
					return
				}
			}
		}()
	}

	wg.Wait()

	for i := 0; i < total; i++ {
		if seen[i] != 1 {
			t.Fatalf("value %d seen %d times (expected 1)", i, seen[i])
		}
	}
	if n := buf.Size(); n < 0 || n > buf.Capacity() {
		t.Fatalf("final size out of bounds: %d", n)
	}
}

// Concurrent test: many producers with disjoint ranges, many consumers.
// The union of consumed values must equal the union produced, with no
// duplicates and no omissions, while size stays within bounds throughout.
func TestConcurrentNoLossNoDup(t *testing.T) {
	const (
		capacity    = 64
		producers   = 8
		consumers   = 4
		perProducer = 2000
		total       = producers * perProducer
	)
	ctx := context.Background()

	for name, construct := range strategies(capacity) {
		t.Run(name, func(t *testing.T) {
			buf, err := construct()
			require.NoError(t, err)

			seen := make([]int32, total)
			done := make(chan struct{})

			// Bounds observer: size must stay within [0, capacity] at
			// every observation point.
			go func() {
				for {
					select {
					case <-done:
						return
					default:
					}
					if n := buf.Size(); n < 0 || n > capacity {
						t.Errorf("size out of bounds: %d", n)
						return
					}
					runtime.Gosched()
				}
			}()

			var wg sync.WaitGroup

			// Consumers claim a ticket first so exactly `total` takes run.
			var tickets atomic.Int64
			wg.Add(consumers)
			for c := 0; c < consumers; c++ {
				go func() {
					defer wg.Done()
					for {
						if tickets.Add(1) > total {
							return
						}
						v, err := buf.Take(ctx)
						if err != nil {
							t.Errorf("consumer: take failed: %v", err)
							return
						}
						if v < 0 || v >= total {
							t.Errorf("consumer: out-of-range value %d", v)
							return
						}
						atomic.AddInt32(&seen[v], 1)
					}
				}()
			}

			// Producers each insert a disjoint range.
			wg.Add(producers)
			for p := 0; p < producers; p++ {
				start := p * perProducer
				go func(from, to int) {
					defer wg.Done()
					for i := from; i < to; i++ {
						if err := buf.Put(ctx, i); err != nil {
							t.Errorf("producer: put failed: %v", err)
							return
						}
						if fastrand.Uint32n(64) == 0 {
							runtime.Gosched()
						}
					}
				}(start, start+perProducer)
			}

			wg.Wait()
			close(done)

			for i := 0; i < total; i++ {
				if seen[i] != 1 {
					t.Fatalf("value %d seen %d times (expected 1)", i, seen[i])
				}
			}
			require.Equal(t, 0, buf.Size(), "buffer must end empty")
		})
	}
}
