package shmem

// Double-buffered frontier queue, replicated on every PE so each can scan the
// window locally. Appends aren't visible until SlideWindow. Use QueueBuffer
// for parallel appends: PEs buffer locally and broadcast in bulk.
type SlidingQueue[T any] struct {
	shared   *Vector[T]
	in       *Atomics // one replicated tail cell per PE
	outStart []int64  // per-PE window, each PE touches only its own slot
	outEnd   []int64
}

// NewSlidingQueue collectively allocates the replicated queue.
func NewSlidingQueue[T any](pe *PE, capacity int) *SlidingQueue[T] {
	shared := NewVector[T](pe, capacity)
	in := NewAtomics(pe, 1)
	return collectiveGet(pe, func() *SlidingQueue[T] {
		return &SlidingQueue[T]{
			shared:   shared,
			in:       in,
			outStart: make([]int64, pe.world.npes),
			outEnd:   make([]int64, pe.world.npes),
		}
	})
}

// PushBack appends to this PE's replica only. Bulk flushes through a
// QueueBuffer are what keep replicas in step.
func (q *SlidingQueue[T]) PushBack(pe *PE, v T) {
	tail := q.in.FetchAdd(pe.rank, 0, 1)
	q.shared.Set(pe.rank, tail, v)
}

func (q *SlidingQueue[T]) Empty(pe *PE) bool {
	return q.outStart[pe.rank] == q.outEnd[pe.rank]
}

func (q *SlidingQueue[T]) Size(pe *PE) int64 {
	return q.outEnd[pe.rank] - q.outStart[pe.rank]
}

// Window returns this PE's view of the readable region.
func (q *SlidingQueue[T]) Window(pe *PE) []T {
	return q.shared.Local(pe)[q.outStart[pe.rank]:q.outEnd[pe.rank]]
}

// SlideWindow makes everything appended so far readable on this PE. Call on
// every PE (after a barrier) to advance the shared view together.
func (q *SlidingQueue[T]) SlideWindow(pe *PE) {
	q.outStart[pe.rank] = q.outEnd[pe.rank]
	q.outEnd[pe.rank] = q.in.Load(pe.rank, 0)
}

// Reset empties this PE's view and tail.
func (q *SlidingQueue[T]) Reset(pe *PE) {
	q.outStart[pe.rank] = 0
	q.outEnd[pe.rank] = 0
	q.in.Store(pe.rank, 0, 0)
}

// QueueBuffer batches a PE's appends and flushes them to every replica at
// once, reserving space in the shared tail under the group lock.
type QueueBuffer[T any] struct {
	q    *SlidingQueue[T]
	lock *Lock
	buf  []T
	n    int
}

const DEFAULT_QUEUE_BUFFER = 16384

// NewQueueBuffer is per-PE local, not collective.
func NewQueueBuffer[T any](q *SlidingQueue[T], lock *Lock, size int) *QueueBuffer[T] {
	if size <= 0 {
		size = DEFAULT_QUEUE_BUFFER
	}
	return &QueueBuffer[T]{q: q, lock: lock, buf: make([]T, size)}
}

func (b *QueueBuffer[T]) PushBack(pe *PE, v T) {
	if b.n == len(b.buf) {
		b.Flush(pe)
	}
	b.buf[b.n] = v
	b.n++
}

// Flush reserves a block at the shared tail and broadcasts the buffered
// entries into every PE's replica, keeping all tail copies in agreement.
func (b *QueueBuffer[T]) Flush(pe *PE) {
	if b.n == 0 {
		return
	}
	b.lock.Acquire()
	n := int64(b.n)
	copyStart := b.q.in.FetchAdd(pe.rank, 0, n)
	b.q.shared.Put(pe.rank, copyStart, b.buf[:b.n])
	for i := 0; i < pe.world.npes; i++ {
		if i != pe.rank {
			b.q.shared.Put(i, copyStart, b.buf[:b.n])
			b.q.in.Store(i, 0, copyStart+n)
		}
	}
	b.n = 0
	b.lock.Release()
}
