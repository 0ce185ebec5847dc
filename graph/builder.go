package graph

import (
	"github.com/rs/zerolog/log"

	"github.com/lockstep-graph/lockstep/shmem"
	"github.com/lockstep-graph/lockstep/utils"
)

// Degree counting barriers this often to keep remote-increment backpressure
// bounded on big edge lists.
const DEFAULT_FLUSH_EVERY = 10000

const prefixBlockSize = 1 << 20

// Builder folds per-PE round-robin edge slices into a partitioned CSR. Every
// PE calls Build collectively with its own slice; Symmetrize stores both
// directions in one CSR, otherwise the transpose is built alongside.
type Builder[D EP[D]] struct {
	Symmetrize bool
	FlushEvery int // 0 means DEFAULT_FLUSH_EVERY
}

func (b Builder[D]) Build(pe *shmem.PE, edges []Edge[D]) *CSR[D] {
	watch := utils.Watch{}
	watch.Start()

	n := b.FindMaxNodeID(pe, edges) + 1
	part := shmem.NewPartition(n, pe.NumPEs())
	g := &CSR[D]{Directed: !b.Symmetrize, N: n, Part: part}

	rawIndex, rawNeigh := b.makeCSR(pe, edges, part, false)
	g.index, g.neigh, g.EdgesDirected = squishCSR(pe, part, rawIndex, rawNeigh)
	rawIndex.Free(pe)
	rawNeigh.Free(pe)
	if g.Directed {
		rawInIndex, rawInNeigh := b.makeCSR(pe, edges, part, true)
		g.inIndex, g.inNeigh, _ = squishCSR(pe, part, rawInIndex, rawInNeigh)
		rawInIndex.Free(pe)
		rawInNeigh.Free(pe)
	}

	if pe.Rank() == 0 {
		log.Info().Msg("Built: |V| " + utils.V(g.N) + " |E| " + utils.V(g.NumEdges()) +
			" (directed " + utils.V(g.EdgesDirected) + "), " +
			utils.F("%.3f", watch.Elapsed().Seconds()) + "s")
	}
	return g
}

// FindMaxNodeID scans every PE's slice and agrees on the global max.
func (b Builder[D]) FindMaxNodeID(pe *shmem.PE, edges []Edge[D]) int64 {
	maxID := int64(-1)
	for _, e := range edges {
		if int64(e.Src) > maxID {
			maxID = int64(e.Src)
		}
		if t := int64(e.Dst.Target()); t > maxID {
			maxID = t
		}
	}
	return pe.MaxAll(maxID)
}

// makeCSR runs degree counting, prefix sums, symmetric allocation, and edge
// placement for one direction. The result still holds duplicates and self
// loops; squishCSR compacts it.
func (b Builder[D]) makeCSR(pe *shmem.PE, edges []Edge[D], part shmem.Partition, transpose bool) (*shmem.Vector[int64], *shmem.Vector[D]) {
	degrees := b.countDegrees(pe, edges, part, transpose)
	pe.Barrier()

	offsets := prefixSum(degrees.Local(pe))
	local := offsets[len(offsets)-1]

	// Shards must line up on every PE even though local totals differ, so
	// everyone takes the widest request. A PE with no edges at all still
	// allocates the global max.
	neigh := shmem.NewVectorMax[D](pe, int(local))
	index := shmem.NewVector[int64](pe, len(offsets))

	// Placement burns the offsets as reservation cursors, so it gets its own
	// cells; the index is rebuilt from the untouched degrees afterwards.
	cursor := shmem.NewAtomics(pe, len(offsets))
	copy(cursor.Local(pe), offsets)
	pe.Barrier()

	for _, e := range edges {
		if b.Symmetrize || !transpose {
			owner := part.Owner(int64(e.Src))
			slot := cursor.FetchAdd(owner, part.LocalPos(int64(e.Src)), 1)
			neigh.Set(owner, slot, e.Dst)
		}
		if b.Symmetrize || transpose {
			r := e.Reverse()
			owner := part.Owner(int64(r.Src))
			slot := cursor.FetchAdd(owner, part.LocalPos(int64(r.Src)), 1)
			neigh.Set(owner, slot, r.Dst)
		}
	}
	pe.Barrier()

	copy(index.Local(pe), prefixSum(degrees.Local(pe)))
	pe.Barrier()

	cursor.Free(pe)
	degrees.Free(pe)
	return index, neigh
}

// countDegrees increments the owner's degree cell for each endpoint that
// stores the edge. Every PE walks the same number of flush rounds so the
// backpressure barriers pair up even when slice lengths differ.
func (b Builder[D]) countDegrees(pe *shmem.PE, edges []Edge[D], part shmem.Partition, transpose bool) *shmem.Atomics {
	degrees := shmem.NewAtomics(pe, int(part.Width()))
	flushEvery := b.FlushEvery
	if flushEvery <= 0 {
		flushEvery = DEFAULT_FLUSH_EVERY
	}
	rounds := utils.CeilDiv(pe.MaxAll(int64(len(edges))), int64(flushEvery))
	pe.Barrier()
	at := 0
	for round := int64(0); round < rounds; round++ {
		stop := utils.Min(at+flushEvery, len(edges))
		for ; at < stop; at++ {
			e := edges[at]
			if b.Symmetrize || !transpose {
				degrees.Inc(part.Owner(int64(e.Src)), part.LocalPos(int64(e.Src)))
			}
			if b.Symmetrize || transpose {
				t := int64(e.Dst.Target())
				degrees.Inc(part.Owner(t), part.LocalPos(t))
			}
		}
		pe.Barrier()
	}
	return degrees
}

// prefixSum is the blocked two-pass scan: per-block totals, a base scan over
// the blocks, then in-block prefixes. Output has one extra slot holding the
// grand total.
func prefixSum(counts []int64) []int64 {
	numBlocks := (len(counts) + prefixBlockSize - 1) / prefixBlockSize
	blockSums := make([]int64, numBlocks)
	for block := 0; block < numBlocks; block++ {
		sum := int64(0)
		end := utils.Min((block+1)*prefixBlockSize, len(counts))
		for i := block * prefixBlockSize; i < end; i++ {
			sum += counts[i]
		}
		blockSums[block] = sum
	}
	base := make([]int64, numBlocks+1)
	total := int64(0)
	for block := 0; block < numBlocks; block++ {
		base[block] = total
		total += blockSums[block]
	}
	base[numBlocks] = total

	prefix := make([]int64, len(counts)+1)
	for block := 0; block < numBlocks; block++ {
		at := base[block]
		end := utils.Min((block+1)*prefixBlockSize, len(counts))
		for i := block * prefixBlockSize; i < end; i++ {
			prefix[i] = at
			at += counts[i]
		}
	}
	prefix[len(counts)] = base[numBlocks]
	return prefix
}
