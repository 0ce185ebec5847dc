package graph

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/lockstep-graph/lockstep/shmem"
	"github.com/lockstep-graph/lockstep/utils"
)

// RelabelByDegree renumbers vertices in descending degree order: new ID 0 is
// the highest-degree vertex. The global order comes from a k-way merge of the
// PEs' locally sorted runs, drained serially under a rank-ordered leader
// token. Degrees are preserved as a multiset and neighbor segments come back
// sorted. Undirected graphs only.
func RelabelByDegree[D EP[D]](pe *shmem.PE, g *CSR[D]) *CSR[D] {
	if g.Directed {
		log.Panic().Msg("Cannot relabel a directed graph")
	}
	watch := utils.Watch{}
	watch.Start()
	part := g.Part
	lo, hi := part.Start(pe.Rank()), part.End(pe.Rank())
	width := part.Width()

	// Phase 1: sort the owned (degree, vertex) pairs descending.
	pairs := shmem.NewVector[degPair](pe, int(width))
	run := pairs.Local(pe)[:hi-lo]
	for v := lo; v < hi; v++ {
		run[part.LocalPos(v)] = degPair{First: g.OutDegree(pe, uint32(v)), Second: uint32(v)}
	}
	sort.Slice(run, func(i, j int) bool { return pairGreater(run[i], run[j]) })
	pe.Barrier()

	// Phase 2: tournament merge, drained leader by leader. Each PE in rank
	// order pops the winners for its own vertex range, then hands the tree
	// state to its successor.
	m := newMerger(pe, part, pairs)
	tok := shmem.NewToken(pe)
	merged := make([]degPair, hi-lo)
	tok.Wait(pe)
	m.drain(pe, merged)
	if pe.Rank()+1 < pe.NumPEs() {
		m.transfer(pe, pe.Rank()+1)
		tok.Pass(pe, pe.Rank()+1)
	}
	pe.Barrier()

	// Phase 3: merged[k] is the vertex ranked lo+k globally, so lo+k is its
	// new ID; scatter it to the old owner and keep the new degree sequence.
	newIDs := shmem.NewVector[uint32](pe, int(width))
	degrees := make([]int64, width)
	for v := lo; v < hi; v++ {
		lp := part.LocalPos(v)
		old := int64(merged[lp].Second)
		degrees[lp] = merged[lp].First
		newIDs.Set(part.Owner(old), part.LocalPos(old), uint32(v))
	}
	pe.Barrier()

	// Phase 4: rebuild the CSR under the permutation. Offsets follow the new
	// degree sequence; each old owner pushes its entries to the new owner via
	// fetch-inc reservations.
	offsets := prefixSum(degrees)
	local := offsets[len(offsets)-1]
	neigh := shmem.NewVectorMax[D](pe, int(local))
	index := shmem.NewVector[int64](pe, len(offsets))
	copy(index.Local(pe), offsets)
	cursor := shmem.NewAtomics(pe, len(offsets))
	copy(cursor.Local(pe), offsets)
	pe.Barrier()

	myNewIDs := newIDs.Local(pe)
	oldIdx := g.index.Local(pe)
	oldNeigh := g.neigh.Local(pe)
	for u := lo; u < hi; u++ {
		lp := part.LocalPos(u)
		newU := int64(myNewIDs[lp])
		owner := part.Owner(newU)
		for _, d := range oldNeigh[oldIdx[lp]:oldIdx[lp+1]] {
			slot := cursor.FetchAdd(owner, part.LocalPos(newU), 1)
			v := int64(d.Target())
			var newV uint32
			if vOwner := part.Owner(v); vOwner == pe.Rank() {
				newV = myNewIDs[part.LocalPos(v)]
			} else {
				newV = newIDs.GetOne(vOwner, part.LocalPos(v))
			}
			neigh.Set(owner, slot, d.Renumber(newV))
		}
	}
	pe.Barrier()

	// Restore the per-segment sort order.
	ns := neigh.Local(pe)
	for v := lo; v < hi; v++ {
		lp := part.LocalPos(v)
		seg := ns[offsets[lp]:offsets[lp+1]]
		sort.Slice(seg, func(i, j int) bool { return seg[i].Before(seg[j]) })
	}
	pe.Barrier()

	pairs.Free(pe)
	m.free(pe)
	newIDs.Free(pe)
	cursor.Free(pe)

	if pe.Rank() == 0 {
		log.Info().Msg("Relabeled by degree: " + utils.F("%.3f", watch.Elapsed().Seconds()) + "s")
	}
	return &CSR[D]{
		Directed:      false,
		N:             g.N,
		EdgesDirected: g.EdgesDirected,
		Part:          part,
		index:         index,
		neigh:         neigh,
	}
}
