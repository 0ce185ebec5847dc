package shmem

import (
	"sync"

	"github.com/lockstep-graph/lockstep/utils"
)

// Reductions follow the symmetric scatter-and-scan shape: each PE lands its
// contribution in the shared row, then every PE scans the row itself, so all
// PEs hold the result with no designated root.

func (pe *PE) allReduce(v int64, pick func(int64, int64) int64) int64 {
	w := pe.world
	w.scratch[pe.rank] = v
	pe.Barrier()
	acc := w.scratch[0]
	for i := 1; i < w.npes; i++ {
		acc = pick(acc, w.scratch[i])
	}
	pe.Barrier() // row reusable after
	return acc
}

// MaxAll returns the maximum contribution over every PE, on every PE.
func (pe *PE) MaxAll(v int64) int64 {
	return pe.allReduce(v, utils.Max[int64])
}

// MinAll returns the minimum contribution over every PE, on every PE.
func (pe *PE) MinAll(v int64) int64 {
	return pe.allReduce(v, utils.Min[int64])
}

// SumAll returns the sum of contributions over every PE, on every PE.
func (pe *PE) SumAll(v int64) int64 {
	return pe.allReduce(v, func(a, b int64) int64 { return a + b })
}

// Broadcast64 hands the root's value to every PE.
func (pe *PE) Broadcast64(root int, v int64) int64 {
	w := pe.world
	if pe.rank == root {
		w.scratch[root] = v
	}
	pe.Barrier()
	out := w.scratch[root]
	pe.Barrier()
	return out
}

// Token serializes a critical section in PE order: rank 0 holds it first,
// each holder hands it to whichever rank it names next. The wait spins on the
// PE's own symmetric cell.
type Token struct {
	cells *Atomics
}

// NewToken collectively creates a token initially held by rank 0.
func NewToken(pe *PE) *Token {
	return &Token{cells: NewAtomics(pe, 1)}
}

// Wait blocks until this PE is handed the token. Rank 0 passes immediately on
// a fresh token.
func (t *Token) Wait(pe *PE) {
	t.cells.WaitLocalUntil(pe, 0, int64(pe.rank))
	t.cells.Store(pe.rank, 0, -1) // consumed; blocks re-entry until passed again
}

// Pass hands the token to the named rank.
func (t *Token) Pass(pe *PE, next int) {
	t.cells.Store(next, 0, int64(next))
}

// Lock is a global mutual-exclusion lock shared by the whole group, for
// serializing structure updates that span PEs.
type Lock struct {
	mu *sync.Mutex
}

// NewLock collectively creates one shared lock.
func NewLock(pe *PE) *Lock {
	return collectiveGet(pe, func() *Lock {
		return &Lock{mu: new(sync.Mutex)}
	})
}

func (l *Lock) Acquire() { l.mu.Lock() }
func (l *Lock) Release() { l.mu.Unlock() }
