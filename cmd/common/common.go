// Package common carries the pieces every kernel binary shares: source
// selection, the timed trial loop, and rank-ordered result writing.
package common

import (
	"bufio"
	"math/rand"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/lockstep-graph/lockstep/graph"
	"github.com/lockstep-graph/lockstep/shmem"
	"github.com/lockstep-graph/lockstep/utils"
)

// ExtractGraphName gives the bare graph name from a path, e.g.
// "data/road-usa.wel" becomes "road-usa".
func ExtractGraphName(graphFilename string) (graphName string) {
	gNameMainT := strings.Split(graphFilename, "/")
	gNameMain := gNameMainT[len(gNameMainT)-1]
	gNameMainTD := strings.Split(gNameMain, ".")
	if len(gNameMainTD) > 1 {
		return gNameMainTD[len(gNameMainTD)-2]
	} else {
		return gNameMainTD[0]
	}
}

// SourcePicker hands out source vertices for traversal kernels. A fixed
// source when given, otherwise seeded uniform draws skipping isolated
// vertices. Every PE builds one from the same options and draws in step, so
// the picks agree everywhere without communication.
type SourcePicker[D graph.EP[D]] struct {
	given int64
	rng   *rand.Rand
	g     *graph.CSR[D]
}

func NewSourcePicker[D graph.EP[D]](g *graph.CSR[D], given int64) *SourcePicker[D] {
	return &SourcePicker[D]{given: given, rng: rand.New(rand.NewSource(graph.RAND_SEED)), g: g}
}

func (sp *SourcePicker[D]) PickNext(pe *shmem.PE) uint32 {
	if sp.given >= 0 {
		return uint32(sp.given)
	}
	for {
		source := uint32(sp.rng.Int63n(sp.g.N))
		if sp.g.OutDegree(pe, source) != 0 {
			return source
		}
	}
}

// RunTrials runs the kernel the requested number of times, bracketing each
// run with barriers so rank 0's stopwatch covers the slowest PE. Results of
// earlier trials pass through drop so their symmetric storage comes back;
// the last result is returned for analysis.
func RunTrials[R any](pe *shmem.PE, trials int, kernel func(trial int) R, drop func(R)) R {
	watch := utils.Watch{}
	var result R
	totalMs := float64(0)
	for trial := 0; trial < trials; trial++ {
		if trial > 0 {
			drop(result)
		}
		pe.Barrier()
		watch.Start()
		result = kernel(trial)
		pe.Barrier()
		elapsedMs := watch.Elapsed().Seconds() * 1000
		totalMs += elapsedMs
		if pe.Rank() == 0 {
			log.Info().Msg("Trial " + utils.V(trial) + " time (ms): " + utils.F("%.3f", elapsedMs))
			log.Trace().Msg(", trial, " + utils.V(trial) + ", " + utils.F("%.3f", elapsedMs))
		}
	}
	if pe.Rank() == 0 {
		log.Info().Msg("Average time (ms): " + utils.F("%.3f", totalMs/float64(trials)))
		log.Trace().Msg(", average, " + utils.F("%.3f", totalMs/float64(trials)))
	}
	return result
}

// WriteVertexResults appends one line per vertex, PE by PE in rank order
// under the leader token. Rank 0 truncates the file first so reruns do not
// accumulate.
func WriteVertexResults[D graph.EP[D]](pe *shmem.PE, g *graph.CSR[D], path string, line func(v uint32) string) {
	tok := shmem.NewToken(pe)
	tok.Wait(pe)
	if pe.Rank() == 0 {
		f := utils.CreateFile(path)
		f.Close()
	}
	f := utils.AppendFile(path)
	w := bufio.NewWriter(f)
	for v := g.Part.Start(pe.Rank()); v < g.Part.End(pe.Rank()); v++ {
		w.WriteString(line(uint32(v)))
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		log.Panic().Err(err).Msg("Write failed: " + path)
	}
	f.Close()
	if pe.Rank()+1 < pe.NumPEs() {
		tok.Pass(pe, pe.Rank()+1)
	}
	pe.Barrier()
}
