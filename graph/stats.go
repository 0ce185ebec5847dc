package graph

import (
	"sort"

	"github.com/rs/zerolog/log"

	"gonum.org/v1/gonum/stat"

	"github.com/lockstep-graph/lockstep/shmem"
	"github.com/lockstep-graph/lockstep/utils"
)

const STATS_SAMPLE = 1000

// Stats logs the topology: counts, average degree, and degree quantiles from
// an evenly spaced sample. Collective; rank 0 does the reads and the talking.
func Stats[D EP[D]](pe *shmem.PE, g *CSR[D]) {
	pe.Barrier()
	if pe.Rank() == 0 && g.N > 0 {
		samples := utils.Min(g.N, int64(STATS_SAMPLE))
		step := g.N / samples
		degs := make([]float64, 0, samples)
		maxDeg := int64(0)
		for v := int64(0); v < g.N; v += step {
			d := g.OutDegree(pe, uint32(v))
			degs = append(degs, float64(d))
			if d > maxDeg {
				maxDeg = d
			}
		}
		sort.Float64s(degs)
		avg := float64(g.EdgesDirected) / float64(g.N)
		log.Info().Msg("Topology: |V| " + utils.V(g.N) + " |E| " + utils.V(g.NumEdges()) +
			" avg_deg " + utils.F("%.2f", avg) +
			" p50 " + utils.F("%.0f", stat.Quantile(0.5, stat.Empirical, degs, nil)) +
			" p90 " + utils.F("%.0f", stat.Quantile(0.9, stat.Empirical, degs, nil)) +
			" p99 " + utils.F("%.0f", stat.Quantile(0.99, stat.Empirical, degs, nil)) +
			" sampled_max " + utils.V(maxDeg))
		utils.MemoryStats()
	}
	pe.Barrier()
}
