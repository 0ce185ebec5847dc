package shmem

import (
	"math/rand"
	"sort"
	"testing"
)

func TestQueueBufferBroadcastsToAllReplicas(t *testing.T) {
	for tcount := 0; tcount < 10; tcount++ {
		npes := rand.Intn(8-1) + 1
		perPE := 50
		err := Run(npes, func(pe *PE) error {
			q := NewSlidingQueue[int64](pe, npes*perPE)
			lock := NewLock(pe)
			// A tiny buffer forces several flush rounds per PE.
			buf := NewQueueBuffer(q, lock, 7)
			for i := 0; i < perPE; i++ {
				buf.PushBack(pe, int64(pe.Rank()*1000+i))
			}
			buf.Flush(pe)
			pe.Barrier()
			q.SlideWindow(pe)

			window := q.Window(pe)
			if len(window) != npes*perPE {
				t.Error("rank ", pe.Rank(), " window has ", len(window), " entries, expected ", npes*perPE)
				return nil
			}
			got := make([]int64, len(window))
			copy(got, window)
			sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
			at := 0
			for r := 0; r < npes; r++ {
				for i := 0; i < perPE; i++ {
					if got[at] != int64(r*1000+i) {
						t.Error("rank ", pe.Rank(), " missing entry ", r*1000+i, " found ", got[at])
						return nil
					}
					at++
				}
			}

			// Every replica must hold the identical sequence, not just the
			// same multiset.
			other := make([]int64, len(window))
			for r := 0; r < npes; r++ {
				q.shared.Get(r, 0, other)
				for i := range window {
					if other[i] != window[i] {
						t.Error("replica ", r, " diverges at ", i, ": ", other[i], " vs ", window[i])
						return nil
					}
				}
			}
			pe.Barrier()
			q.Reset(pe)
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestSlidingWindowAdvances(t *testing.T) {
	err := Run(1, func(pe *PE) error {
		q := NewSlidingQueue[int64](pe, 16)
		if !q.Empty(pe) {
			t.Error("fresh queue not empty")
		}
		q.PushBack(pe, 5)
		q.PushBack(pe, 6)
		if !q.Empty(pe) {
			t.Error("pushes visible before the window slides")
		}
		q.SlideWindow(pe)
		if q.Size(pe) != 2 {
			t.Error("window size is ", q.Size(pe))
		}
		q.PushBack(pe, 7)
		q.SlideWindow(pe)
		w := q.Window(pe)
		if len(w) != 1 || w[0] != 7 {
			t.Error("second window is ", w)
		}
		q.SlideWindow(pe)
		if !q.Empty(pe) {
			t.Error("drained queue not empty")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
