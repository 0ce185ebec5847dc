package shmem

import (
	"sync/atomic"
	"unsafe"

	"github.com/lockstep-graph/lockstep/utils"
)

// Atomics is a symmetric array of int64 cells meant for contended access:
// remote increments, fetch-and-adds, and compare-and-swaps land directly on
// the owner's cells. Mixed plain/atomic access to the same cell without a
// barrier in between is a race.
type Atomics struct {
	w      *World
	shards [][]int64
	capa   int
	bytes  int64
}

// NewAtomics collectively allocates symmetric atomic cells, zeroed. Every PE
// must request the same capacity.
func NewAtomics(pe *PE, capacity int) *Atomics {
	w := pe.world
	bytes := int64(capacity) * int64(unsafe.Sizeof(int64(0)))
	w.reserve(pe, bytes)
	return collectiveGet(pe, func() *Atomics {
		atomic.AddInt64(&w.heapUsed, bytes)
		shards := make([][]int64, w.npes)
		for i := range shards {
			shards[i] = make([]int64, capacity)
		}
		return &Atomics{w: w, shards: shards, capa: capacity, bytes: bytes}
	})
}

// Free collectively releases the cells.
func (a *Atomics) Free(pe *PE) {
	pe.Barrier()
	if pe.rank == 0 {
		a.w.release(a.bytes)
		a.shards = nil
	}
	pe.Barrier()
}

func (a *Atomics) Cap() int { return a.capa }

// Local returns the calling PE's cells. Cells touched by remote atomics must
// still be read with Load until a barrier separates the accesses.
func (a *Atomics) Local(pe *PE) []int64 { return a.shards[pe.rank] }

// FillLocal plainly overwrites the calling PE's cells; barrier before letting
// remote atomics at them.
func (a *Atomics) FillLocal(pe *PE, val int64) {
	shard := a.shards[pe.rank]
	for i := range shard {
		shard[i] = val
	}
}

func (a *Atomics) Load(rank int, idx int64) int64 {
	return atomic.LoadInt64(&a.shards[rank][idx])
}

func (a *Atomics) Store(rank int, idx int64, val int64) {
	atomic.StoreInt64(&a.shards[rank][idx], val)
}

// Inc atomically increments a cell on the target PE.
func (a *Atomics) Inc(rank int, idx int64) {
	atomic.AddInt64(&a.shards[rank][idx], 1)
}

// FetchAdd atomically adds delta on the target PE and returns the old value.
func (a *Atomics) FetchAdd(rank int, idx int64, delta int64) int64 {
	return atomic.AddInt64(&a.shards[rank][idx], delta) - delta
}

// CAS installs desired if the target cell still holds expected.
func (a *Atomics) CAS(rank int, idx int64, expected int64, desired int64) bool {
	return atomic.CompareAndSwapInt64(&a.shards[rank][idx], expected, desired)
}

// MinExchange lowers the target cell to val if val is smaller, retrying the
// compare-and-swap until it wins or observes an even smaller value. Returns
// whether val was installed.
func (a *Atomics) MinExchange(rank int, idx int64, val int64) bool {
	cell := &a.shards[rank][idx]
	for {
		old := atomic.LoadInt64(cell)
		if val >= old {
			return false
		}
		if atomic.CompareAndSwapInt64(cell, old, val) {
			return true
		}
	}
}

// WaitLocalUntil spins until the calling PE's own cell holds val. The analog
// of a symmetric wait-until; backs off between polls and bails if the job
// aborts.
func (a *Atomics) WaitLocalUntil(pe *PE, idx int64, val int64) {
	cell := &a.shards[pe.rank][idx]
	for fails := 0; atomic.LoadInt64(cell) != val; fails++ {
		if pe.world.aborted() {
			panic("job aborted")
		}
		utils.BackOff(fails)
	}
}
