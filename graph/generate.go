package graph

import (
	"math/rand"

	"github.com/rs/zerolog/log"

	"github.com/lockstep-graph/lockstep/shmem"
	"github.com/lockstep-graph/lockstep/utils"
)

const RAND_SEED = 27491095

const MAX_WEIGHT = 255

// Uniform generates this PE's round-robin share of a uniform random graph:
// 2^scale vertices, avgDegree edges per vertex on average. Each PE draws its
// own share from a rank-mixed seed.
func Uniform[D EP[D], PD EPP[D]](pe *shmem.PE, scale int64, avgDegree int64) []Edge[D] {
	if scale < 0 || scale > 40 {
		log.Panic().Msg("Bad generator scale: " + utils.V(scale))
	}
	n := int64(1) << scale
	m := n * avgDegree
	count := m / int64(pe.NumPEs())
	if int64(pe.Rank()) < m%int64(pe.NumPEs()) {
		count++
	}
	rng := rand.New(rand.NewSource(RAND_SEED ^ int64(pe.Rank())))
	edges := make([]Edge[D], count)
	for i := range edges {
		var d D
		PD(&d).Replace(uint32(rng.Int63n(n)), DEFAULT_WEIGHT)
		edges[i] = Edge[D]{Src: uint32(rng.Int63n(n)), Dst: d}
	}
	if pe.Rank() == 0 {
		log.Info().Msg("Generated uniform: 2^" + utils.V(scale) + " vertices, " +
			utils.V(m) + " edges over " + utils.V(pe.NumPEs()) + " PEs")
	}
	return edges
}

// InsertWeights overwrites every edge weight with a draw from [1, MAX_WEIGHT].
// Used when an unweighted input feeds a weighted kernel.
func InsertWeights[D EP[D], PD EPP[D]](pe *shmem.PE, edges []Edge[D]) {
	rng := rand.New(rand.NewSource(RAND_SEED ^ int64(pe.Rank())))
	for i := range edges {
		d := edges[i].Dst
		PD(&d).Replace(d.Target(), int32(1+rng.Intn(MAX_WEIGHT)))
		edges[i].Dst = d
	}
}
