// Package graph holds the partitioned CSR structure and the collective
// pipeline that builds it from distributed edge lists.
package graph

import (
	"github.com/lockstep-graph/lockstep/shmem"
	"github.com/lockstep-graph/lockstep/utils"
)

const DEFAULT_WEIGHT = 1

// EP is the endpoint interface: one stored out-neighbor entry. Simple carries
// just the target; Weighted carries target and weight.
type EP[D any] interface {
	comparable
	Target() uint32
	Weight() int32
	Renumber(target uint32) D // same entry pointed at a new target, weight kept
	Before(D) bool            // segment sort order: target, then weight
}

// EPP is the pointer side, for building entries while parsing. "but but
// pointer receivers"
type EPP[D any] interface {
	Replace(target uint32, weight int32)
	*D
}

/* ------------------ Simple endpoint ------------------ */

type Simple uint32

func (e Simple) Target() uint32             { return uint32(e) }
func (e Simple) Weight() int32              { return DEFAULT_WEIGHT }
func (e Simple) Renumber(t uint32) Simple   { return Simple(t) }
func (e Simple) Before(o Simple) bool       { return e < o }
func (e *Simple) Replace(t uint32, _ int32) { *e = Simple(t) }

/* ------------------ Weighted endpoint ------------------ */

type Weighted struct {
	To uint32
	W  int32
}

func (e Weighted) Target() uint32 { return e.To }
func (e Weighted) Weight() int32  { return e.W }

func (e Weighted) Renumber(t uint32) Weighted { return Weighted{To: t, W: e.W} }

func (e Weighted) Before(o Weighted) bool {
	if e.To != o.To {
		return e.To < o.To
	}
	return e.W < o.W
}

func (e *Weighted) Replace(t uint32, w int32) { e.To = t; e.W = w }

/* ------------------ Edge ------------------ */

// Edge is one input edge before it is folded into the CSR.
type Edge[D EP[D]] struct {
	Src uint32
	Dst D
}

// Reverse flips the edge, keeping the weight on the flipped entry.
func (e Edge[D]) Reverse() Edge[D] {
	return Edge[D]{Src: e.Dst.Target(), Dst: e.Dst.Renumber(e.Src)}
}

func (e Edge[D]) String() string {
	return "(" + utils.V(e.Src) + "," + utils.V(e.Dst.Target()) + ")"
}

/* ------------------ CSR ------------------ */

// CSR is the partitioned graph: each PE owns a contiguous vertex block and
// stores the index and neighbor segments for its block. Remote segments are
// reached with one-sided reads.
type CSR[D EP[D]] struct {
	Directed      bool
	N             int64 // vertices
	EdgesDirected int64 // stored out entries over all PEs
	Part          shmem.Partition

	index *shmem.Vector[int64] // width+1 offsets into the local neigh shard
	neigh *shmem.Vector[D]
	// Directed graphs keep the transpose; undirected ones alias it to out.
	inIndex *shmem.Vector[int64]
	inNeigh *shmem.Vector[D]
}

// Graph is an unweighted CSR, WGraph a weighted one.
type Graph = CSR[Simple]
type WGraph = CSR[Weighted]

// NumEdges reports undirected edge count: symmetrized graphs store each edge
// twice.
func (g *CSR[D]) NumEdges() int64 {
	if g.Directed {
		return g.EdgesDirected
	}
	return g.EdgesDirected / 2
}

func (g *CSR[D]) OutDegree(pe *shmem.PE, u uint32) int64 {
	owner := g.Part.Owner(int64(u))
	lp := g.Part.LocalPos(int64(u))
	return g.index.GetOne(owner, lp+1) - g.index.GetOne(owner, lp)
}

// OutNeigh returns u's neighbor segment. Owned segments come back as a direct
// view into the shard; remote ones are fetched into scratch, which is grown
// as needed and returned for reuse. Do not write through the view.
func (g *CSR[D]) OutNeigh(pe *shmem.PE, u uint32, scratch []D) (view []D, buf []D) {
	return fetchSegment(pe, g.Part, g.index, g.neigh, u, scratch)
}

func (g *CSR[D]) InDegree(pe *shmem.PE, u uint32) int64 {
	if !g.Directed {
		return g.OutDegree(pe, u)
	}
	owner := g.Part.Owner(int64(u))
	lp := g.Part.LocalPos(int64(u))
	return g.inIndex.GetOne(owner, lp+1) - g.inIndex.GetOne(owner, lp)
}

func (g *CSR[D]) InNeigh(pe *shmem.PE, u uint32, scratch []D) (view []D, buf []D) {
	if !g.Directed {
		return g.OutNeigh(pe, u, scratch)
	}
	return fetchSegment(pe, g.Part, g.inIndex, g.inNeigh, u, scratch)
}

func fetchSegment[D EP[D]](pe *shmem.PE, part shmem.Partition, index *shmem.Vector[int64], neigh *shmem.Vector[D], u uint32, scratch []D) ([]D, []D) {
	owner := part.Owner(int64(u))
	lp := part.LocalPos(int64(u))
	start := index.GetOne(owner, lp)
	end := index.GetOne(owner, lp+1)
	if owner == pe.Rank() {
		return neigh.Local(pe)[start:end], scratch
	}
	n := int(end - start)
	if cap(scratch) < n {
		scratch = make([]D, n, utils.Max(n, 64))
	}
	scratch = scratch[:n]
	neigh.Get(owner, start, scratch)
	return scratch, scratch
}

// Free collectively releases the symmetric storage.
func (g *CSR[D]) Free(pe *shmem.PE) {
	g.index.Free(pe)
	g.neigh.Free(pe)
	if g.Directed {
		g.inIndex.Free(pe)
		g.inNeigh.Free(pe)
	}
}
