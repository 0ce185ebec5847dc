package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lockstep-graph/lockstep/graph"
	"github.com/lockstep-graph/lockstep/shmem"
)

func TestConvertEdgeListToSerialized(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "tiny.el")
	out := filepath.Join(dir, "tiny.sg")
	content := "0 1\n1 2\n2 3\n3 0\n"
	if err := os.WriteFile(in, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	opts := graph.Options{File: in, Out: out, Symmetrize: true, NPEs: 2}
	err := shmem.Run(opts.NPEs, func(pe *shmem.PE) error {
		convert[graph.Simple, *graph.Simple](pe, opts, ".sg")
		g := graph.ReadSerialized[graph.Simple](pe, out)
		if g.N != 4 || g.NumEdges() != 4 || g.Directed {
			t.Error("converted graph has |V| ", g.N, " |E| ", g.NumEdges(),
				" directed ", g.Directed)
		}
		g.Free(pe)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestConvertRelabelled(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "star.el")
	out := filepath.Join(dir, "star.sg")
	content := "0 3\n1 3\n2 3\n3 4\n"
	if err := os.WriteFile(in, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	opts := graph.Options{File: in, Out: out, Symmetrize: true, Relabel: true, NPEs: 3}
	err := shmem.Run(opts.NPEs, func(pe *shmem.PE) error {
		convert[graph.Simple, *graph.Simple](pe, opts, ".sg")
		g := graph.ReadSerialized[graph.Simple](pe, out)
		// Vertex 0 now has the highest degree: the old hub 3.
		if d := g.OutDegree(pe, 0); d != 4 {
			t.Error("relabelled vertex 0 has degree ", d, " expected 4")
		}
		g.Free(pe)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
