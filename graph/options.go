package graph

import (
	"flag"
	"net/http"
	_ "net/http/pprof"
	"os"
	"runtime"

	"github.com/rs/zerolog/log"

	"github.com/lockstep-graph/lockstep/utils"
)

type Options struct {
	File       string // Input graph: .el/.wel edge list or .sg/.wsg serialized. Empty means synthetic.
	Out        string // If set, results are appended to this file.
	Scale      int64  // Synthetic input: 2^Scale vertices. -1 means no synthetic input.
	AvgDegree  int64  // Synthetic input: average degree.
	Symmetrize bool   // Treat the input as undirected (store both directions of every edge).
	Relabel    bool   // Renumber vertices by descending degree before running the kernel.
	Trials     int    // Kernel repetitions for timing.
	Source     int64  // Fixed source vertex. -1 picks a fresh random non-isolated source per trial.
	Delta      int64  // Bucket width for delta-stepping.
	FlushEvery int    // Degree-count backpressure cadence during construction.
	NPEs       int    // Processing elements (goroutines) in the group.
	DebugLevel int    // Extra log output. 1 for debug, 2 for trace.
}

// Declare your own flags before you call this function.
func FlagsToOptions() (opts Options) {
	filePtr := flag.String("f", "", "Graph file (.el, .wel, .sg, .wsg).")
	uniformPtr := flag.Int64("u", -1, "Generate a uniform random graph with 2^u vertices instead of loading a file.")
	degreePtr := flag.Int64("k", 16, "Average degree for a generated graph.")
	symPtr := flag.Bool("s", false, "Symmetrize the input: treat every edge as undirected.")
	relabelPtr := flag.Bool("relabel", false, "Relabel vertices by descending degree before running.")
	trialsPtr := flag.Int("n", 16, "Number of trials to run and average.")
	sourcePtr := flag.Int64("r", -1, "Source vertex for traversal kernels. -1 picks randomly, skipping isolated vertices.")
	deltaPtr := flag.Int64("d", 1, "Delta: bucket width for delta-stepping.")
	outPtr := flag.String("o", "", "Append per-vertex results to this file when the run finishes.")
	pePtr := flag.Int("p", utils.Min(runtime.GOMAXPROCS(0), 16), "Processing elements (group size).")
	flushPtr := flag.Int("flush", DEFAULT_FLUSH_EVERY, "Edges between backpressure barriers while counting degrees.")
	debugPtr := flag.Int("debug", 0, "Adds extra debug output. 1 for debug, 2 for trace.")
	colourPtr := flag.Bool("nc", false, "Removes the colouring from the log output.")
	pprofPtr := flag.String("pprof", "", "If set, will serve pprof on the given address:port. E.g.\"0.0.0.0:6060\".")
	flag.Parse()

	if *colourPtr {
		utils.SetLoggerConsole(true)
	}
	utils.SetLevel(*debugPtr)

	if *filePtr == "" && *uniformPtr < 0 {
		log.Info().Msg("Need an input: give a graph file (-f) or a synthetic scale (-u).")
		flag.Usage()
		os.Exit(1)
	}

	if *pprofPtr != "" {
		go func() {
			log.Info().Msg("pprof Starting on " + *pprofPtr)
			err := http.ListenAndServe(*pprofPtr, nil)
			if err != nil {
				log.Error().Err(err).Msg("pprof Failed to start.")
			}
		}()
	}

	npes := *pePtr
	if npes <= 0 {
		log.Panic().Msg("Invalid PE count.")
	} else if npes > runtime.NumCPU() {
		log.Warn().Msg("PE count is greater than CPU count?")
	}
	if *trialsPtr <= 0 {
		log.Panic().Msg("Invalid trial count.")
	}
	if *deltaPtr <= 0 {
		log.Panic().Msg("Invalid delta.")
	}

	opts = Options{
		File:       *filePtr,
		Out:        *outPtr,
		Scale:      *uniformPtr,
		AvgDegree:  *degreePtr,
		Symmetrize: *symPtr,
		Relabel:    *relabelPtr,
		Trials:     *trialsPtr,
		Source:     *sourcePtr,
		Delta:      *deltaPtr,
		FlushEvery: *flushPtr,
		NPEs:       npes,
		DebugLevel: *debugPtr,
	}
	return opts
}
