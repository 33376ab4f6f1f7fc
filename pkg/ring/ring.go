// Package ring implements a fixed-capacity FIFO buffer that evicts its
// oldest element when a push arrives while it is full.
//
// A Ring is not safe for concurrent use. Callers serialize access; the
// channel package wraps each Ring in a sync.RWMutex.
package ring

import (
	"fmt"
	"iter"

	"github.com/nicktill/metricring/pkg/metrics"
)

// Ring stores up to Cap() elements in a single slice.
// Slots are addressed by index; no per-element allocation happens on push.
type Ring[T any] struct {
	data []T
	head int // next write position
	size int // number of retained elements
}

// New creates a ring holding at most capacity elements
func New[T any](capacity int) (*Ring[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("ring capacity %d: %w", capacity, metrics.ErrInvalidCapacity)
	}
	return &Ring[T]{data: make([]T, capacity)}, nil
}

// Push appends v. When the ring is full the oldest element is removed first,
// its slot cleared, and it is returned with ok=true.
func (r *Ring[T]) Push(v T) (evicted T, ok bool) {
	if r.size == len(r.data) {
		evicted, ok = r.data[r.head], true
		var zero T
		r.data[r.head] = zero
		r.size--
	}
	r.data[r.head] = v
	r.head = (r.head + 1) % len(r.data)
	r.size++
	return evicted, ok
}

// Len returns the number of retained elements
func (r *Ring[T]) Len() int { return r.size }

// Cap returns the fixed capacity
func (r *Ring[T]) Cap() int { return len(r.data) }

// IsEmpty reports whether nothing is retained
func (r *Ring[T]) IsEmpty() bool { return r.size == 0 }

// IsFull reports whether the next push will evict
func (r *Ring[T]) IsFull() bool { return r.size == len(r.data) }

// tail is the slot of the oldest retained element
func (r *Ring[T]) tail() int {
	return (r.head - r.size + len(r.data)) % len(r.data)
}

// Get returns the element at index, where 0 is the oldest retained element.
func (r *Ring[T]) Get(index int) (T, error) {
	if index < 0 || index >= r.size {
		var zero T
		return zero, fmt.Errorf("ring index %d with length %d: %w", index, r.size, metrics.ErrOutOfRange)
	}
	return r.data[(r.tail()+index)%len(r.data)], nil
}

// Oldest returns the element that the next eviction would remove
func (r *Ring[T]) Oldest() (T, bool) {
	if r.size == 0 {
		var zero T
		return zero, false
	}
	return r.data[r.tail()], true
}

// Newest returns the most recently pushed element
func (r *Ring[T]) Newest() (T, bool) {
	if r.size == 0 {
		var zero T
		return zero, false
	}
	return r.data[(r.head-1+len(r.data))%len(r.data)], true
}

// All yields (index, element) pairs from oldest to newest.
// The sequence is evaluated lazily and may be ranged over any number of times;
// it must not be consumed across a concurrent Push.
func (r *Ring[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		start := r.tail()
		for i := 0; i < r.size; i++ {
			if !yield(i, r.data[(start+i)%len(r.data)]) {
				return
			}
		}
	}
}

// Tail copies out the newest n elements, oldest first.
// n is clipped to Len(); n <= 0 yields an empty slice.
func (r *Ring[T]) Tail(n int) []T {
	if n > r.size {
		n = r.size
	}
	if n <= 0 {
		return []T{}
	}
	out := make([]T, n)
	start := (r.head - n + len(r.data)) % len(r.data)
	for i := 0; i < n; i++ {
		out[i] = r.data[(start+i)%len(r.data)]
	}
	return out
}

// Reset drops every element and clears all slots
func (r *Ring[T]) Reset() {
	clear(r.data)
	r.head = 0
	r.size = 0
}
