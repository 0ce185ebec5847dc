package shmem

import (
	"github.com/lockstep-graph/lockstep/utils"
)

// SymBitmap is a symmetric bitmap: every PE holds a full-length replica and
// sets bits locally, then MergeAll ORs the replicas so all PEs see the union.
type SymBitmap struct {
	words *Vector[uint64]
	bits  int64
}

// NewSymBitmap collectively allocates a replica of nbits per PE, zeroed.
func NewSymBitmap(pe *PE, nbits int64) *SymBitmap {
	words := NewVector[uint64](pe, int(utils.CeilDiv(nbits, 64)))
	words.FillLocal(pe, 0)
	return collectiveGet(pe, func() *SymBitmap {
		return &SymBitmap{words: words, bits: nbits}
	})
}

func (b *SymBitmap) Free(pe *PE) { b.words.Free(pe) }

func (b *SymBitmap) Bits() int64 { return b.bits }

// Local exposes this PE's replica with the usual bit operations. Only safe
// between collectives; remote replicas do not see local mutation.
func (b *SymBitmap) Local(pe *PE) utils.Bitmap {
	return utils.Bitmap(b.words.Local(pe))
}

// Set marks bit x in the local replica. The replica is fixed-size, so this
// never grows the backing shard.
func (b *SymBitmap) Set(pe *PE, x uint32) {
	bm := b.Local(pe)
	bm.QuickSet(x)
}

func (b *SymBitmap) Get(pe *PE, x uint32) bool { return b.Local(pe).Get(x) }

func (b *SymBitmap) ZeroLocal(pe *PE) {
	b.words.FillLocal(pe, 0)
}

// MergeAll ORs every replica into every replica. On return each PE reads the
// union of all bits set anywhere before the call.
func (b *SymBitmap) MergeAll(pe *PE) {
	pe.Barrier()
	// All replicas are frozen now; each PE folds the others into a scratch
	// copy so no replica is read while being rewritten.
	local := b.words.Local(pe)
	merged := make([]uint64, len(local))
	copy(merged, local)
	for r := 0; r < pe.world.npes; r++ {
		if r == pe.rank {
			continue
		}
		for i, w := range b.words.shards[r] {
			merged[i] |= w
		}
	}
	pe.Barrier()
	copy(local, merged)
	pe.Barrier()
}
