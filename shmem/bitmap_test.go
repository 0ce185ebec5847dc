package shmem

import (
	"math/rand"
	"testing"
)

func TestSymBitmapMergeAll(t *testing.T) {
	for tcount := 0; tcount < 10; tcount++ {
		npes := rand.Intn(8-1) + 1
		nbits := int64(500)
		err := Run(npes, func(pe *PE) error {
			bm := NewSymBitmap(pe, nbits)
			// Each PE sets its own residue class; the union covers everything.
			for x := uint32(pe.Rank()); int64(x) < nbits; x += uint32(npes) {
				bm.Set(pe, x)
			}
			bm.MergeAll(pe)
			for x := uint32(0); int64(x) < nbits; x++ {
				if !bm.Get(pe, x) {
					t.Error("rank ", pe.Rank(), " missing bit ", x, " after merge")
					return nil
				}
			}
			if got := bm.Local(pe).Count(); got != int(nbits) {
				t.Error("rank ", pe.Rank(), " counts ", got, " bits")
			}

			// A second round only adds what was newly set.
			bm.ZeroLocal(pe)
			pe.Barrier()
			if pe.Rank() == 0 {
				bm.Set(pe, 42)
			}
			bm.MergeAll(pe)
			if !bm.Get(pe, 42) || bm.Local(pe).Count() != 1 {
				t.Error("rank ", pe.Rank(), " sees ", bm.Local(pe).Count(), " bits, expected just 42")
			}
			bm.Free(pe)
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}
