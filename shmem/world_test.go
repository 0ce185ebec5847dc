package shmem

import (
	"errors"
	"math/rand"
	"sync/atomic"
	"testing"
)

func TestBarrierSeparatesPhases(t *testing.T) {
	for tcount := 0; tcount < 10; tcount++ {
		npes := rand.Intn(8-1) + 1
		var entered int64
		err := Run(npes, func(pe *PE) error {
			for round := int64(1); round <= 20; round++ {
				atomic.AddInt64(&entered, 1)
				pe.Barrier()
				if got := atomic.LoadInt64(&entered); got != round*int64(npes) {
					t.Error("after barrier round ", round, " saw ", got, " arrivals, expected ", round*int64(npes))
				}
				pe.Barrier()
			}
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestReductionsAgreeOnAllPEs(t *testing.T) {
	for tcount := 0; tcount < 10; tcount++ {
		npes := rand.Intn(8-1) + 1
		err := Run(npes, func(pe *PE) error {
			v := int64(pe.Rank() + 1)
			if got := pe.MaxAll(v); got != int64(npes) {
				t.Error("MaxAll on rank ", pe.Rank(), " is ", got, " expected ", npes)
			}
			if got := pe.MinAll(v); got != 1 {
				t.Error("MinAll on rank ", pe.Rank(), " is ", got)
			}
			want := int64(npes) * int64(npes+1) / 2
			if got := pe.SumAll(v); got != want {
				t.Error("SumAll on rank ", pe.Rank(), " is ", got, " expected ", want)
			}
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestBroadcastFromEveryRoot(t *testing.T) {
	npes := 5
	err := Run(npes, func(pe *PE) error {
		for root := 0; root < npes; root++ {
			v := int64(-1)
			if pe.Rank() == root {
				v = int64(100 + root)
			}
			if got := pe.Broadcast64(root, v); got != int64(100+root) {
				t.Error("broadcast from ", root, " gave ", got, " on rank ", pe.Rank())
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestTokenVisitsRanksInOrder(t *testing.T) {
	for tcount := 0; tcount < 10; tcount++ {
		npes := rand.Intn(8-1) + 1
		order := make([]int, 0, npes)
		err := Run(npes, func(pe *PE) error {
			tok := NewToken(pe)
			tok.Wait(pe)
			order = append(order, pe.Rank())
			if pe.Rank()+1 < pe.NumPEs() {
				tok.Pass(pe, pe.Rank()+1)
			}
			pe.Barrier()
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
		if len(order) != npes {
			t.Fatal("token admitted ", len(order), " ranks, expected ", npes)
		}
		for r := 0; r < npes; r++ {
			if order[r] != r {
				t.Error("token order position ", r, " is rank ", order[r])
			}
		}
	}
}

func TestPanicOnOnePEAbortsTheJob(t *testing.T) {
	npes := 4
	err := Run(npes, func(pe *PE) error {
		if pe.Rank() == 2 {
			panic("synthetic failure")
		}
		// Everyone else parks in a collective; the abort must release them.
		for i := 0; i < 1000; i++ {
			pe.Barrier()
		}
		return nil
	})
	if err == nil {
		t.Fatal("expected an error after a PE panicked")
	}
}

func TestKernelErrorIsReturned(t *testing.T) {
	boom := errors.New("boom")
	err := Run(1, func(pe *PE) error { return boom })
	if !errors.Is(err, boom) {
		t.Error("got ", err)
	}
}
