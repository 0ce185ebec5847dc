package utils

import (
	"sync/atomic"
)

// Enqueuer : Producer
// Dequeuer : Consumer
// Single producer, single consumer.

type RingBuffSPSC[T any] struct {
	_           [0]atomic.Int64
	enqueue     uint64
	enqDeqCache uint64
	enqMask     uint64
	enqEntries  []T
	_           [2]uint64
	dequeue     uint64
	deqEnqCache uint64
	deqMask     uint64
	deqEntries  []T
	status      uint64
	_           [1]uint64
}

// Will allocate and initialize the ring buffer with the specified size.
func (rb *RingBuffSPSC[T]) Init(size uint64) {
	size = RoundUpPow(size)
	rb.enqMask = (size - 1)
	rb.deqMask = rb.enqMask
	rb.enqEntries = make([]T, size)
	rb.deqEntries = rb.enqEntries
}

// Should be called by the enqueuer.
func (rb *RingBuffSPSC[T]) Close() {
	atomic.StoreUint64(&rb.status, 1)
}

// To be called by dequeuer after it sees close (and has dequeued everything).
func (rb *RingBuffSPSC[T]) End() {
	rb.enqEntries = nil
	rb.deqEntries = nil
}

// Returns the total capacity of the ring buffer. Call this if you are the enqueuer (to avoid loading the dequeuer cache line).
func (rb *RingBuffSPSC[T]) EnqCap() uint64 {
	return rb.enqMask + 1
}

// Returns the total capacity of the ring buffer. Call this if you are the dequeuer (to avoid loading the enqueuer cache line).
func (rb *RingBuffSPSC[T]) DeqCap() uint64 {
	return rb.deqMask + 1
}

// Dequeuer: Return the next item, or false if empty.
func (rb *RingBuffSPSC[T]) Accept() (item T, ok bool) {
	pos := rb.dequeue
	enqPos := rb.deqEnqCache
	if pos >= enqPos {
		enqPos = atomic.LoadUint64(&rb.enqueue)
		rb.deqEnqCache = enqPos
	}
	if pos < enqPos {
		item = rb.deqEntries[pos&rb.deqMask]
		atomic.StoreUint64(&rb.dequeue, pos+1)
		return item, true
	}
	return item, false
}

// Dequeuer: Blocking get of the item part 1.
func (rb *RingBuffSPSC[T]) GetFast() (item T, ok bool, pos uint64) {
	pos = rb.dequeue
	enqPos := rb.deqEnqCache
	if pos >= enqPos {
		enqPos = atomic.LoadUint64(&rb.enqueue)
		rb.deqEnqCache = enqPos
	}
	if pos < enqPos {
		item = rb.deqEntries[pos&rb.deqMask]
		atomic.StoreUint64(&rb.dequeue, pos+1)
		return item, true, pos
	}
	return item, false, pos
}

// Dequeuer: Blocking get of the item part 2, from the position (from GetFast). Blocks until retrieved.
// Returns the number of times the attempt had to be retried (if any), or if the buffer becomes closed.
func (rb *RingBuffSPSC[T]) GetSlow(pos uint64) (item T, closed bool, fails int) {
	n := &rb.deqEntries[pos&rb.deqMask]
	enqPos := atomic.LoadUint64(&rb.enqueue)
	for ; ; fails++ {
		if pos < enqPos {
			rb.deqEnqCache = enqPos
			item = *n
			atomic.StoreUint64(&rb.dequeue, pos+1)
			return item, false, fails
		}
		if atomic.LoadUint64(&rb.status) == 1 {
			return item, true, fails
		}
		BackOff(fails) // Empty
		enqPos = atomic.LoadUint64(&rb.enqueue)
	}
}

// Enqueuer: Offers the item. Returns false if there is no space.
func (rb *RingBuffSPSC[T]) Offer(item T) (ok bool) {
	pos := rb.enqueue
	deqPos := rb.enqDeqCache
	if pos > (deqPos + rb.enqMask) {
		deqPos = atomic.LoadUint64(&rb.dequeue)
		rb.enqDeqCache = deqPos
	}
	if pos <= (deqPos + rb.enqMask) {
		rb.enqEntries[pos&rb.enqMask] = item
		atomic.StoreUint64(&rb.enqueue, pos+1)
		return true
	}
	return false
}

// Enqueuer: Offers the item. Returns false if there is no space, giving the desired position in the buffer.
func (rb *RingBuffSPSC[T]) PutFast(item T) (pos uint64, ok bool) {
	pos = rb.enqueue
	deqPos := rb.enqDeqCache
	if pos > (deqPos + rb.enqMask) {
		deqPos = atomic.LoadUint64(&rb.dequeue)
		rb.enqDeqCache = deqPos
	}
	if pos <= (deqPos + rb.enqMask) {
		rb.enqEntries[pos&rb.enqMask] = item
		atomic.StoreUint64(&rb.enqueue, pos+1)
		return pos, true
	}
	return pos, false
}

// Enqueuer: Adds the item. Blocks until added.
// Call after PutFast fails, giving the desired position in the buffer.
func (rb *RingBuffSPSC[T]) PutSlow(item T, pos uint64) (fails int) {
	n := &rb.enqEntries[pos&rb.enqMask]
	deqPos := atomic.LoadUint64(&rb.dequeue)
	for ; ; fails++ {
		if pos <= (deqPos + rb.enqMask) {
			rb.enqDeqCache = deqPos
			*n = item
			atomic.StoreUint64(&rb.enqueue, pos+1)
			return fails
		}
		BackOff(fails) // Full
		deqPos = atomic.LoadUint64(&rb.dequeue)
	}
}
