// File: internal/concurrency/ring.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Ring is a bounded single-producer/single-consumer FIFO. The producer is a
// source goroutine, the consumer the dispatch goroutine.

package concurrency

import "sync/atomic"

// Ring is safe for exactly one producer and one consumer.
type Ring[T any] struct {
	data []T
	mask uint64
	head atomic.Uint64
	_    [56]byte // keep head and tail on separate cache lines
	tail atomic.Uint64
	_    [56]byte
}

// NewRing allocates a ring holding at least capacity items, rounded up to
// a power of two.
func NewRing[T any](capacity int) *Ring[T] {
	size := 1
	for size < capacity {
		size <<= 1
	}
	return &Ring[T]{data: make([]T, size), mask: uint64(size - 1)}
}

// Push appends item; false when full.
func (r *Ring[T]) Push(item T) bool {
	tail := r.tail.Load()
	if tail-r.head.Load() >= uint64(len(r.data)) {
		return false
	}
	r.data[tail&r.mask] = item
	r.tail.Store(tail + 1)
	return true
}

// Pop removes the oldest item.
func (r *Ring[T]) Pop() (T, bool) {
	var zero T
	head := r.head.Load()
	if head >= r.tail.Load() {
		return zero, false
	}
	item := r.data[head&r.mask]
	r.data[head&r.mask] = zero
	r.head.Store(head + 1)
	return item, true
}

// Len returns the number of buffered items.
func (r *Ring[T]) Len() int { return int(r.tail.Load() - r.head.Load()) }

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int { return len(r.data) }
