package graph

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/lockstep-graph/lockstep/shmem"
	"github.com/lockstep-graph/lockstep/utils"
)

func TestLoadEdgeListRoundRobin(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "small.el")
	content := "# five vertex graph\n0 1\n1 2\n\n2 3\n# midway comment\n3 4\n4 0\n0 2\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	all := simpleEdges([][2]uint32{{0, 1}, {1, 2}, {2, 3}, {3, 4}, {4, 0}, {0, 2}})
	for tcount := 0; tcount < 10; tcount++ {
		npes := rand.Intn(8-1) + 1
		err := shmem.Run(npes, func(pe *shmem.PE) error {
			edges := LoadEdges[Simple, *Simple](pe, path)
			want := roundRobin(all, pe)
			if len(edges) != len(want) {
				t.Error("rank ", pe.Rank(), " of ", npes, " read ", len(edges),
					" edges, expected ", len(want))
				return nil
			}
			for i := range edges {
				if edges[i] != want[i] {
					t.Error("rank ", pe.Rank(), " edge ", i, " is ", edges[i].String(),
						" expected ", want[i].String())
				}
			}
			if pe.SumAll(int64(len(edges))) != int64(len(all)) {
				t.Error("edges lost or duplicated across PEs")
			}
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

// A .wel line without a weight column falls back to the default weight.
func TestLoadWeightedEdgeList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "small.wel")
	content := "0 1 5\n1 2 3\n2 0 9\n3 0\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	want := []Edge[Weighted]{
		{Src: 0, Dst: Weighted{To: 1, W: 5}},
		{Src: 1, Dst: Weighted{To: 2, W: 3}},
		{Src: 2, Dst: Weighted{To: 0, W: 9}},
		{Src: 3, Dst: Weighted{To: 0, W: DEFAULT_WEIGHT}},
	}
	err := shmem.Run(1, func(pe *shmem.PE) error {
		edges := LoadEdges[Weighted, *Weighted](pe, path)
		if len(edges) != len(want) {
			t.Fatal("read ", len(edges), " edges, expected ", len(want))
		}
		for i := range edges {
			if edges[i] != want[i] {
				t.Error("edge ", i, " is ", edges[i].String(), " expected ", want[i].String())
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestSerializedRoundTripUndirected(t *testing.T) {
	dir := t.TempDir()
	all := simpleEdges([][2]uint32{{0, 1}, {1, 2}, {2, 3}, {3, 4}, {4, 0}, {0, 2}})
	want := [][]uint32{{1, 2, 4}, {0, 2}, {0, 1, 3}, {2, 4}, {0, 3}}
	for tcount := 0; tcount < 10; tcount++ {
		npes := rand.Intn(8-1) + 1
		path := filepath.Join(dir, "rt"+utils.V(tcount)+".sg")
		err := shmem.Run(npes, func(pe *shmem.PE) error {
			b := Builder[Simple]{Symmetrize: true}
			g := b.Build(pe, roundRobin(all, pe))
			WriteSerialized(pe, g, path)
			rg := ReadSerialized[Simple](pe, path)
			if rg.Directed != g.Directed || rg.N != g.N || rg.EdgesDirected != g.EdgesDirected {
				t.Error("round trip changed graph shape")
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

func TestSerializedRoundTripDirectedWeighted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rt.wsg")
	all := []Edge[Weighted]{
		{Src: 0, Dst: Weighted{To: 1, W: 4}},
		{Src: 0, Dst: Weighted{To: 2, W: 7}},
		{Src: 2, Dst: Weighted{To: 1, W: 1}},
	}
	err := shmem.Run(3, func(pe *shmem.PE) error {
		b := Builder[Weighted]{}
		g := b.Build(pe, roundRobin(all, pe))
		WriteSerialized(pe, g, path)
		rg := ReadSerialized[Weighted](pe, path)
		if !rg.Directed {
			t.Error("directed flag lost")
		}
		var sg, sr []Weighted // separate scratches so the two views never alias
		for v := uint32(0); v < 3; v++ {
			var a, bseg []Weighted
			a, sg = g.OutNeigh(pe, v, sg)
			bseg, sr = rg.OutNeigh(pe, v, sr)
			if len(a) != len(bseg) {
				t.Error("vertex ", v, " out segment length changed")
				continue
			}
			for i := range a {
				if a[i] != bseg[i] {
					t.Error("vertex ", v, " out entry ", i, " changed")
				}
			}
		}
		inA, _ := g.InNeigh(pe, 1, nil)
		inB, _ := rg.InNeigh(pe, 1, nil)
		if len(inA) != 2 || len(inB) != 2 {
			t.Error("vertex 1 in segments: ", len(inA), " then ", len(inB), ", expected 2")
		}
		rg.Free(pe)
		g.Free(pe)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestSerializedRejectsCorruptHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.sg")
	all := simpleEdges([][2]uint32{{0, 1}, {1, 2}})
	err := shmem.Run(2, func(pe *shmem.PE) error {
		b := Builder[Simple]{Symmetrize: true}
		g := b.Build(pe, roundRobin(all, pe))
		WriteSerialized(pe, g, path)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	raw[len(SG_MAGIC)+4] ^= 0xff // inside the PE count field
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatal(err)
	}
	err = shmem.Run(2, func(pe *shmem.PE) error {
		ReadSerialized[Simple](pe, path)
		return nil
	})
	if err == nil {
		t.Fatal("expected the corrupted header to fail the job")
	}
}

func TestSerializedRejectsWrongPECount(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "two.sg")
	all := simpleEdges([][2]uint32{{0, 1}, {1, 2}})
	err := shmem.Run(2, func(pe *shmem.PE) error {
		b := Builder[Simple]{Symmetrize: true}
		g := b.Build(pe, roundRobin(all, pe))
		WriteSerialized(pe, g, path)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	err = shmem.Run(3, func(pe *shmem.PE) error {
		ReadSerialized[Simple](pe, path)
		return nil
	})
	if err == nil {
		t.Fatal("expected the PE count mismatch to fail the job")
	}
}

func TestMakeRejectsUnknownSuffix(t *testing.T) {
	err := shmem.Run(1, func(pe *shmem.PE) error {
		Make[Simple, *Simple](pe, Options{File: "graph.xyz"}, false)
		return nil
	})
	if err == nil {
		t.Fatal("expected an unknown suffix to fail the job")
	}
}
