package main

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/lockstep-graph/lockstep/cmd/common"
	"github.com/lockstep-graph/lockstep/graph"
	"github.com/lockstep-graph/lockstep/shmem"
	"github.com/lockstep-graph/lockstep/utils"
)

// Delta-stepping over the symmetric runtime. Distances live in a symmetric
// array over the vertex partition; the frontier is a symmetric array over the
// edge-count partition, refilled each iteration from per-PE bins. Each
// iteration relaxes the current shared bucket, fuses small follow-up buckets
// locally, votes on the next bucket, then redistributes the chosen bins into
// the shared frontier.
//
// Once a vertex lands in a bin it is never removed; a stale entry is skipped
// at processing time when its distance has already dropped below the bucket.

const kDistInf = int64(math.MaxInt64) / 2
const kMaxBin = int64(math.MaxInt64) / 2
const kBinSizeThreshold = 1000

// localBins file improved vertices under their destination bucket.
type localBins [][]uint32

func (b *localBins) put(bin int64, v uint32) {
	for int64(len(*b)) <= bin {
		*b = append(*b, nil)
	}
	(*b)[bin] = append((*b)[bin], v)
}

// relaxEdges tries to improve every out-neighbor of u. A win on the owner's
// distance cell files the neighbor under its new bucket.
func relaxEdges(pe *shmem.PE, g *graph.WGraph, dist *shmem.Atomics, u uint32, delta int64, bins *localBins, scratch []graph.Weighted) []graph.Weighted {
	vp := g.Part
	uOwner, uLp := vp.Owner(int64(u)), vp.LocalPos(int64(u))
	var neigh []graph.Weighted
	neigh, scratch = g.OutNeigh(pe, u, scratch)
	for _, wn := range neigh {
		vOwner, vLp := vp.Owner(int64(wn.To)), vp.LocalPos(int64(wn.To))
		newDist := dist.Load(uOwner, uLp) + int64(wn.W)
		if dist.MinExchange(vOwner, vLp, newDist) {
			bins.put(newDist/delta, wn.To)
		}
	}
	return scratch
}

// DeltaStep computes shortest-path distances from source. Collective; the
// returned symmetric array holds each PE's owned slice of distances, with
// unreached vertices left at kDistInf. The caller frees it.
func DeltaStep(pe *shmem.PE, g *graph.WGraph, source uint32, delta int64) *shmem.Atomics {
	if delta <= 0 {
		log.Panic().Msg("Delta must be positive, given: " + utils.V(delta))
	}
	vp := g.Part
	dist := shmem.NewAtomics(pe, int(vp.Width()))
	dist.FillLocal(pe, kDistInf)
	if vp.Owner(int64(source)) == pe.Rank() {
		dist.Store(pe.Rank(), vp.LocalPos(int64(source)), 0)
	}
	if g.EdgesDirected == 0 {
		// Nothing to relax; only the source is reached. Every PE agrees on the
		// edge count, so everyone takes this exit together.
		pe.Barrier()
		return dist
	}

	ep := shmem.NewPartition(g.EdgesDirected, pe.NumPEs())
	frontier := shmem.NewVector[uint32](pe, int(ep.Width()))
	tails := shmem.NewAtomics(pe, 2)
	tails.Store(pe.Rank(), 0, 1)
	indexes := [2]int64{0, kMaxBin} // every PE's replica moves in step
	if pe.Rank() == 0 {
		frontier.Set(0, 0, source) // rank 0 owns slot 0 of any non-empty tail partition
	}
	pe.Barrier()

	bins := localBins{}
	var scratch []graph.Weighted
	iter := int64(0)

	for ; indexes[iter&1] != kMaxBin; iter++ {
		curr, next := iter&1, (iter+1)&1
		currIdx := indexes[curr]
		currTail := tails.Load(pe.Rank(), curr)

		fp := shmem.NewPartition(currTail, pe.NumPEs())
		for i := int64(0); i < fp.End(pe.Rank())-fp.Start(pe.Rank()); i++ {
			u := frontier.Local(pe)[i]
			udist := dist.Load(vp.Owner(int64(u)), vp.LocalPos(int64(u)))
			if udist >= delta*currIdx { // else u moved to an earlier bucket already
				scratch = relaxEdges(pe, g, dist, u, delta, &bins, scratch)
			}
		}
		pe.Barrier()

		// Bucket fusion: drain a small current bin right away instead of
		// paying a full global round for it.
		for currIdx < int64(len(bins)) && len(bins[currIdx]) != 0 && len(bins[currIdx]) < kBinSizeThreshold {
			currBin := bins[currIdx]
			bins[currIdx] = nil
			for _, u := range currBin {
				scratch = relaxEdges(pe, g, dist, u, delta, &bins, scratch)
			}
		}
		pe.Barrier()

		localMin := indexes[next]
		for i := currIdx; i < int64(len(bins)); i++ {
			if len(bins[i]) != 0 {
				localMin = utils.Min(localMin, i)
				break
			}
		}
		nextIdx := pe.MinAll(localMin)
		indexes[next] = nextIdx
		indexes[curr] = kMaxBin
		tails.Store(pe.Rank(), curr, 0)
		pe.Barrier()

		copyStart := int64(0)
		if nextIdx < int64(len(bins)) {
			copyStart = tails.FetchAdd(0, next, int64(len(bins[nextIdx])))
		}
		pe.Barrier()
		nextTail := pe.Broadcast64(0, tails.Load(pe.Rank(), next))
		tails.Store(pe.Rank(), next, nextTail)
		pe.Barrier()

		// Scatter the chosen bin into the shared frontier, splitting any
		// chunk that straddles an owner boundary of the new tail's partition.
		if nextIdx < int64(len(bins)) {
			nftp := shmem.NewPartition(nextTail, pe.NumPEs())
			bin := bins[nextIdx]
			localStart := nftp.LocalPos(copyStart)
			prior := int64(0)
			for i := nftp.Owner(copyStart); i < pe.NumPEs(); i++ {
				binRemainder := int64(len(bin)) - prior
				partRemainder := nftp.Width() - localStart
				if i == pe.NumPEs()-1 {
					partRemainder = int64(frontier.Cap()) - localStart
				}
				if partRemainder < binRemainder {
					frontier.Put(i, localStart, bin[prior:prior+partRemainder])
					prior += partRemainder
					localStart = 0
				} else {
					frontier.Put(i, localStart, bin[prior:])
					break
				}
			}
			bins[nextIdx] = nil
		}
		pe.Barrier()
	}

	if pe.Rank() == 0 {
		log.Debug().Msg("Delta-stepping took " + utils.V(iter) + " iterations")
	}
	frontier.Free(pe)
	tails.Free(pe)
	return dist
}

// ReachedCount reports how many vertices ended with a finite distance.
func ReachedCount(pe *shmem.PE, g *graph.WGraph, dist *shmem.Atomics) int64 {
	local := int64(0)
	owned := g.Part.End(pe.Rank()) - g.Part.Start(pe.Rank())
	for _, d := range dist.Local(pe)[:owned] {
		if d != kDistInf {
			local++
		}
	}
	total := pe.SumAll(local)
	if pe.Rank() == 0 {
		log.Info().Msg("SSSP tree reaches " + utils.V(total) + " nodes")
	}
	return total
}

// WriteDistances appends every vertex's distance in id order, "inf" for
// vertices the source never reached.
func WriteDistances(pe *shmem.PE, g *graph.WGraph, dist *shmem.Atomics, path string) {
	common.WriteVertexResults(pe, g, path, func(v uint32) string {
		d := dist.Load(pe.Rank(), g.Part.LocalPos(int64(v)))
		if d == kDistInf {
			return "inf"
		}
		return utils.V(d)
	})
}
