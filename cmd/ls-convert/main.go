package main

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/lockstep-graph/lockstep/cmd/common"
	"github.com/lockstep-graph/lockstep/graph"
	"github.com/lockstep-graph/lockstep/shmem"
	"github.com/lockstep-graph/lockstep/utils"
)

// Converts an edge list (or a generated graph) into the serialized format, so
// later runs skip parsing and construction. Weighted inputs stay weighted.
// Note a serialized graph stores the PE layout it was written with, so run
// this with the same -p you will run the kernels with.
func convert[D graph.EP[D], PD graph.EPP[D]](pe *shmem.PE, opts graph.Options, suffix string) {
	g := graph.Make[D, PD](pe, opts, suffix == ".wsg")
	if opts.Relabel {
		old := g
		g = graph.RelabelByDegree(pe, old)
		old.Free(pe)
	}
	graph.Stats(pe, g)

	out := opts.Out
	if out == "" {
		if opts.File == "" {
			out = "uniform-" + utils.V(opts.Scale) + suffix
		} else {
			out = common.ExtractGraphName(opts.File) + suffix
		}
	}
	graph.WriteSerialized(pe, g, out)
	if pe.Rank() == 0 {
		log.Info().Msg("Wrote " + out)
	}
	g.Free(pe)
}

func main() {
	opts := graph.FlagsToOptions()
	weighted := strings.HasSuffix(opts.File, ".wel") || strings.HasSuffix(opts.File, ".wsg")

	if err := shmem.Run(opts.NPEs, func(pe *shmem.PE) error {
		if weighted {
			convert[graph.Weighted, *graph.Weighted](pe, opts, ".wsg")
		} else {
			convert[graph.Simple, *graph.Simple](pe, opts, ".sg")
		}
		return nil
	}); err != nil {
		log.Fatal().Err(err).Msg("Convert job failed.")
	}
}
