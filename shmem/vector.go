package shmem

import (
	"sync/atomic"
	"unsafe"

	"github.com/rs/zerolog/log"

	"github.com/lockstep-graph/lockstep/utils"
)

// Vector is a symmetric array: every PE holds a shard of the same capacity.
// Puts and gets are one-sided and unsynchronized; callers separate conflicting
// accesses with barriers. Contended cells belong in Atomics instead.
type Vector[T any] struct {
	w      *World
	shards [][]T
	capa   int
	bytes  int64
}

// NewVector collectively allocates a symmetric vector. Every PE must call with
// the same capacity; a mismatch is a fatal error on all PEs.
func NewVector[T any](pe *PE, capacity int) *Vector[T] {
	lo := pe.MinAll(int64(capacity))
	hi := pe.MaxAll(int64(capacity))
	if lo != hi {
		log.Panic().Msg("PE " + utils.V(pe.rank) + " symmetric capacity mismatch: " +
			utils.V(capacity) + " vs global [" + utils.V(lo) + ", " + utils.V(hi) + "]")
	}
	return allocVector[T](pe, capacity)
}

// NewVectorMax collectively allocates with capacity max over every PE's
// request. A PE asking for 0 while another asks for more still gets the
// global max, so the shards stay symmetric.
func NewVectorMax[T any](pe *PE, localCapacity int) *Vector[T] {
	capacity := int(pe.MaxAll(int64(localCapacity)))
	return allocVector[T](pe, capacity)
}

func allocVector[T any](pe *PE, capacity int) *Vector[T] {
	w := pe.world
	var zero T
	bytes := int64(capacity) * int64(unsafe.Sizeof(zero))
	w.reserve(pe, bytes)
	return collectiveGet(pe, func() *Vector[T] {
		atomic.AddInt64(&w.heapUsed, bytes)
		shards := make([][]T, w.npes)
		for i := range shards {
			shards[i] = make([]T, capacity)
		}
		return &Vector[T]{w: w, shards: shards, capa: capacity, bytes: bytes}
	})
}

// Free collectively releases the vector. Any later use panics.
func (v *Vector[T]) Free(pe *PE) {
	pe.Barrier()
	if pe.rank == 0 {
		v.w.release(v.bytes)
		v.shards = nil
	}
	pe.Barrier()
}

func (v *Vector[T]) Cap() int { return v.capa }

// Local returns the calling PE's shard.
func (v *Vector[T]) Local(pe *PE) []T { return v.shards[pe.rank] }

// Set writes one element into the target PE's shard.
func (v *Vector[T]) Set(rank int, idx int64, val T) {
	v.shards[rank][idx] = val
}

// GetOne reads one element from the target PE's shard.
func (v *Vector[T]) GetOne(rank int, idx int64) T {
	return v.shards[rank][idx]
}

// Put copies src into the target PE's shard starting at off.
func (v *Vector[T]) Put(rank int, off int64, src []T) {
	copy(v.shards[rank][off:], src)
}

// Get copies len(dst) elements out of the target PE's shard starting at off.
func (v *Vector[T]) Get(rank int, off int64, dst []T) {
	copy(dst, v.shards[rank][off:])
}

// FillLocal sets every element of the calling PE's shard.
func (v *Vector[T]) FillLocal(pe *PE, val T) {
	shard := v.shards[pe.rank]
	for i := range shard {
		shard[i] = val
	}
}
