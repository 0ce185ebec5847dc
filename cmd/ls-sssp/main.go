package main

import (
	"github.com/rs/zerolog/log"

	"github.com/lockstep-graph/lockstep/cmd/common"
	"github.com/lockstep-graph/lockstep/graph"
	"github.com/lockstep-graph/lockstep/shmem"
)

// Launch point. Parses command line arguments, builds the weighted graph, and
// runs delta-stepping trials.
func main() {
	opts := graph.FlagsToOptions()

	if err := shmem.Run(opts.NPEs, func(pe *shmem.PE) error {
		g := graph.Make[graph.Weighted, *graph.Weighted](pe, opts, true)
		if opts.Relabel {
			old := g
			g = graph.RelabelByDegree(pe, old)
			old.Free(pe)
		}
		graph.Stats(pe, g)

		sp := common.NewSourcePicker(g, opts.Source)
		dist := common.RunTrials(pe, opts.Trials, func(int) *shmem.Atomics {
			return DeltaStep(pe, g, sp.PickNext(pe), opts.Delta)
		}, func(d *shmem.Atomics) { d.Free(pe) })

		ReachedCount(pe, g, dist)
		if opts.Out != "" {
			WriteDistances(pe, g, dist, opts.Out)
		}
		dist.Free(pe)
		g.Free(pe)
		return nil
	}); err != nil {
		log.Fatal().Err(err).Msg("SSSP job failed.")
	}
}
