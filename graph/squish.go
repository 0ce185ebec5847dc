package graph

import (
	"sort"

	"github.com/lockstep-graph/lockstep/shmem"
)

// squishCSR sorts every owned neighbor segment, drops duplicate targets and
// self loops, and rebuilds a compacted index/neigh pair. Sorting puts the
// lightest entry of a duplicate run first, so that is the one kept. Returns
// the global stored-entry count.
func squishCSR[D EP[D]](pe *shmem.PE, part shmem.Partition, index *shmem.Vector[int64], neigh *shmem.Vector[D]) (*shmem.Vector[int64], *shmem.Vector[D], int64) {
	width := part.Width()
	idx := index.Local(pe)
	ns := neigh.Local(pe)
	lo, hi := part.Start(pe.Rank()), part.End(pe.Rank())

	diffs := make([]int64, width)
	for v := lo; v < hi; v++ {
		lp := part.LocalPos(v)
		seg := ns[idx[lp]:idx[lp+1]]
		sort.Slice(seg, func(i, j int) bool { return seg[i].Before(seg[j]) })
		keep := 0
		for i := range seg {
			if int64(seg[i].Target()) == v {
				continue
			}
			if keep > 0 && seg[keep-1].Target() == seg[i].Target() {
				continue
			}
			seg[keep] = seg[i]
			keep++
		}
		diffs[lp] = int64(keep)
	}

	sqOffsets := prefixSum(diffs)
	local := sqOffsets[len(sqOffsets)-1]
	sqNeigh := shmem.NewVectorMax[D](pe, int(local))
	sqIndex := shmem.NewVector[int64](pe, len(sqOffsets))
	copy(sqIndex.Local(pe), sqOffsets)
	pe.Barrier()

	dst := sqNeigh.Local(pe)
	for v := lo; v < hi; v++ {
		lp := part.LocalPos(v)
		copy(dst[sqOffsets[lp]:sqOffsets[lp]+diffs[lp]], ns[idx[lp]:idx[lp]+diffs[lp]])
	}
	total := pe.SumAll(local)
	pe.Barrier()
	return sqIndex, sqNeigh, total
}
