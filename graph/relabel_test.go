package graph

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/lockstep-graph/lockstep/shmem"
)

// Degrees here are [1, 3, 2, 3, 1]. Descending (degree, id) order is
// (3,3) (3,1) (2,2) (1,4) (1,0), so the relabeling is fully determined:
// old 3 becomes 0, old 1 stays 1, old 2 stays 2, old 4 becomes 3, old 0
// becomes 4.
func TestRelabelByDegreeSmall(t *testing.T) {
	all := simpleEdges([][2]uint32{{0, 1}, {1, 2}, {1, 3}, {2, 3}, {3, 4}})
	want := [][]uint32{{1, 2, 3}, {0, 2, 4}, {0, 1}, {0}, {1}}
	for tcount := 0; tcount < 10; tcount++ {
		npes := rand.Intn(8-1) + 1
		err := shmem.Run(npes, func(pe *shmem.PE) error {
			b := Builder[Simple]{Symmetrize: true}
			g := b.Build(pe, roundRobin(all, pe))
			rg := RelabelByDegree(pe, g)
			if rg.EdgesDirected != g.EdgesDirected {
				t.Error("relabeling changed stored entries: ", rg.EdgesDirected,
					" vs ", g.EdgesDirected)
			}
			expectAdjacency(t, pe, rg, want)
			rg.Free(pe)
			g.Free(pe)
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestRelabelByDegreeRandom(t *testing.T) {
	for tcount := 0; tcount < 10; tcount++ {
		n := uint32(rand.Intn(100) + 10)
		all := make([]Edge[Simple], rand.Intn(400)+50)
		for i := range all {
			all[i] = Edge[Simple]{Src: rand.Uint32() % n, Dst: Simple(rand.Uint32() % n)}
		}
		npes := rand.Intn(8-1) + 1
		err := shmem.Run(npes, func(pe *shmem.PE) error {
			b := Builder[Simple]{Symmetrize: true}
			g := b.Build(pe, roundRobin(all, pe))
			oldDegs := degreeSlice(pe, g)
			rg := RelabelByDegree(pe, g)
			newDegs := degreeSlice(pe, rg)

			if rg.EdgesDirected != g.EdgesDirected {
				t.Error("relabeling changed stored entries")
			}
			for i := 1; i < len(newDegs); i++ {
				if newDegs[i] > newDegs[i-1] {
					t.Error("degrees not descending at vertex ", i, ": ",
						newDegs[i-1], " then ", newDegs[i])
				}
			}
			// Same multiset of degrees as before, just reordered.
			sorted := append([]int64{}, oldDegs...)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })
			for i := range sorted {
				if sorted[i] != newDegs[i] {
					t.Error("degree multiset changed at position ", i)
					break
				}
			}
			expectSymmetric(t, pe, rg)
			rg.Free(pe)
			g.Free(pe)
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestRelabelDirectedPanics(t *testing.T) {
	all := simpleEdges([][2]uint32{{0, 1}, {1, 2}})
	err := shmem.Run(2, func(pe *shmem.PE) error {
		b := Builder[Simple]{}
		g := b.Build(pe, roundRobin(all, pe))
		RelabelByDegree(pe, g)
		return nil
	})
	if err == nil {
		t.Fatal("expected relabeling a directed graph to fail the job")
	}
}

func degreeSlice[D EP[D]](pe *shmem.PE, g *CSR[D]) []int64 {
	degs := make([]int64, g.N)
	for v := range degs {
		degs[v] = g.OutDegree(pe, uint32(v))
	}
	return degs
}

// expectSymmetric checks u is in v's list whenever v is in u's list, and
// that every segment is sorted.
func expectSymmetric(t *testing.T, pe *shmem.PE, g *Graph) {
	var scratch []Simple
	lists := make([][]uint32, g.N)
	for v := int64(0); v < g.N; v++ {
		var seg []Simple
		seg, scratch = g.OutNeigh(pe, uint32(v), scratch)
		lists[v] = make([]uint32, len(seg))
		for i := range seg {
			lists[v][i] = uint32(seg[i])
			if i > 0 && lists[v][i] <= lists[v][i-1] {
				t.Error("vertex ", v, " segment not sorted unique at ", i)
			}
		}
	}
	for v := range lists {
		for _, u := range lists[v] {
			found := false
			for _, w := range lists[u] {
				if w == uint32(v) {
					found = true
					break
				}
			}
			if !found {
				t.Error("edge ", v, "->", u, " has no reverse")
			}
		}
	}
}
