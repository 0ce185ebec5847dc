package main

import (
	"github.com/rs/zerolog/log"

	"github.com/lockstep-graph/lockstep/cmd/common"
	"github.com/lockstep-graph/lockstep/graph"
	"github.com/lockstep-graph/lockstep/shmem"
	"github.com/lockstep-graph/lockstep/utils"
)

// Launch point. Parses command line arguments, builds the graph, and runs
// triangle counting trials. Relabelling is forced with -relabel, otherwise
// the heuristic decides per trial.
func main() {
	opts := graph.FlagsToOptions()

	if err := shmem.Run(opts.NPEs, func(pe *shmem.PE) error {
		g := graph.Make[graph.Simple, *graph.Simple](pe, opts, false)
		if g.Directed {
			log.Panic().Msg("Input graph is directed but triangle counting requires undirected")
		}
		graph.Stats(pe, g)

		kernel := func(int) int64 { return Hybrid(pe, g) }
		if opts.Relabel {
			rg := graph.RelabelByDegree(pe, g)
			g.Free(pe)
			g = rg
			kernel = func(int) int64 { return OrderedCount(pe, g) }
		}
		total := common.RunTrials(pe, opts.Trials, kernel, func(int64) {})

		if pe.Rank() == 0 {
			log.Info().Msg(utils.V(total) + " triangles")
			if opts.Out != "" {
				f := utils.CreateFile(opts.Out)
				f.WriteString(utils.V(total) + "\n")
				f.Close()
			}
		}
		g.Free(pe)
		return nil
	}); err != nil {
		log.Fatal().Err(err).Msg("TC job failed.")
	}
}
