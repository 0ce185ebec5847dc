package main

import (
	"sort"

	"github.com/rs/zerolog/log"

	"gonum.org/v1/gonum/stat"

	"github.com/lockstep-graph/lockstep/cmd/common"
	"github.com/lockstep-graph/lockstep/graph"
	"github.com/lockstep-graph/lockstep/shmem"
	"github.com/lockstep-graph/lockstep/utils"
)

// Triangle counting over the symmetric runtime. Each triangle is counted
// exactly once by only accepting it at its largest vertex: for every local u,
// the walk looks for u > v > w with all three edges present. Construction
// already sorted the neighborhoods and dropped duplicates and self loops,
// which the early breaks and the intersection walk rely on.

const DEGREE_SAMPLES = 1000

// OrderedCount counts triangles led by this PE's vertices, then reduces.
func OrderedCount(pe *shmem.PE, g *graph.Graph) int64 {
	vp := g.Part
	total := int64(0)
	var uScratch, vScratch []graph.Simple
	for gu := vp.Start(pe.Rank()); gu < vp.End(pe.Rank()); gu++ {
		u := graph.Simple(gu)
		var neighU, neighV []graph.Simple
		neighU, uScratch = g.OutNeigh(pe, uint32(u), uScratch)
		for _, v := range neighU {
			if v > u {
				break
			}
			it := 0
			neighV, vScratch = g.OutNeigh(pe, uint32(v), vScratch)
			for _, w := range neighV {
				if w > v {
					break
				}
				for neighU[it] < w {
					it++
				}
				if w == neighU[it] {
					total++
				}
			}
		}
	}
	return pe.SumAll(total)
}

// WorthRelabelling samples degrees to guess whether the graph is dense and
// skewed enough for a degree reordering to pay off. Sparse graphs are never
// worth it; otherwise relabel when the sampled mean outruns the median.
// Deterministic, so every PE reaches the same verdict.
func WorthRelabelling(pe *shmem.PE, g *graph.Graph) bool {
	averageDegree := g.NumEdges() / g.N
	if averageDegree < 10 {
		return false
	}
	sp := common.NewSourcePicker(g, -1)
	numSamples := utils.Min(int64(DEGREE_SAMPLES), g.N)
	nodes := make([]uint32, numSamples)
	for i := range nodes {
		nodes[i] = sp.PickNext(pe) // identical sequence on every PE
	}
	samplePart := shmem.NewPartition(numSamples, pe.NumPEs())
	samples := shmem.NewVector[int64](pe, int(samplePart.Width()))
	for trial := samplePart.Start(pe.Rank()); trial < samplePart.End(pe.Rank()); trial++ {
		samples.Set(pe.Rank(), samplePart.LocalPos(trial), g.OutDegree(pe, nodes[trial]))
	}
	pe.Barrier()

	dest := make([]float64, 0, numSamples)
	buf := make([]int64, samplePart.Width())
	for r := 0; r < pe.NumPEs(); r++ {
		owned := samplePart.End(r) - samplePart.Start(r)
		samples.Get(r, 0, buf[:owned])
		for _, d := range buf[:owned] {
			dest = append(dest, float64(d))
		}
	}
	sort.Float64s(dest)
	samples.Free(pe)

	worth := stat.Mean(dest, nil)/1.3 > stat.Quantile(0.5, stat.Empirical, dest, nil)
	if pe.Rank() == 0 {
		log.Debug().Msg("Relabelling worth it: " + utils.V(worth))
	}
	return worth
}

// Hybrid reorders by degree first when the heuristic says it pays off.
func Hybrid(pe *shmem.PE, g *graph.Graph) int64 {
	if WorthRelabelling(pe, g) {
		rg := graph.RelabelByDegree(pe, g)
		total := OrderedCount(pe, rg)
		rg.Free(pe)
		return total
	}
	return OrderedCount(pe, g)
}
